package boltstore

import (
	"encoding/json"
	"fmt"
	"strconv"

	bolt "go.etcd.io/bbolt"

	"ticketline/internal/transport"
)

// Step names the position of a user inside a multi-step flow.
type Step string

const (
	StepNone             Step = ""
	StepChoosingCategory Step = "choosing_category"
	StepWritingIssue     Step = "writing_issue"
	StepReviewAlias      Step = "review_alias"
	StepReviewRating     Step = "review_rating"
	StepReviewComment    Step = "review_comment"
	StepBroadcasting     Step = "broadcasting"
	StepBroadcastConfirm Step = "broadcast_confirm"
)

// Conversation is the persisted state of one user's flow.
type Conversation struct {
	Step         Step               `json:"step"`
	Category     string             `json:"category,omitempty"`
	ReviewAlias  string             `json:"review_alias,omitempty"`
	ReviewRating int                `json:"review_rating,omitempty"`
	Broadcast    *transport.Content `json:"broadcast,omitempty"`
}

// ConversationStore persists conversation state in BoltDB.
type ConversationStore struct {
	db *bolt.DB
}

func conversationKey(userID int64) []byte {
	return []byte(strconv.FormatInt(userID, 10))
}

// Get returns the conversation state for a user. A user with no stored
// state is at StepNone.
func (s *ConversationStore) Get(userID int64) (Conversation, error) {
	var conv Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketConversations)
		if bucket == nil {
			return fmt.Errorf("conversation bucket not found")
		}
		data := bucket.Get(conversationKey(userID))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &conv)
	})
	return conv, err
}

// Put persists the conversation state for a user (upsert).
func (s *ConversationStore) Put(userID int64, conv Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketConversations)
		if bucket == nil {
			return fmt.Errorf("conversation bucket not found")
		}
		return bucket.Put(conversationKey(userID), data)
	})
}

// Clear removes a user's conversation state. Clearing absent state is
// not an error.
func (s *ConversationStore) Clear(userID int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketConversations)
		if bucket == nil {
			return fmt.Errorf("conversation bucket not found")
		}
		return bucket.Delete(conversationKey(userID))
	})
}
