package transport

import "context"

// Sentiment signals delivery outcome without a full text reply.
type Sentiment int

const (
	SentimentPositive Sentiment = iota
	SentimentNegative
)

// Transport is the message-transport port consumed by the relay core.
// Implementations must translate platform errors into the error kinds
// declared in this package; the core's retry and absorb policy is keyed
// on exactly those kinds.
type Transport interface {
	// CreateThread opens a new scoped sub-conversation in the staff
	// group and returns its thread id.
	CreateThread(ctx context.Context, title string) (int64, error)

	// CopyToThread copies content into a staff-group thread,
	// preserving the content kind. An optional header line is
	// prepended to text and captions.
	CopyToThread(ctx context.Context, threadID int64, header string, content Content) (MessageRef, error)

	// CopyToUser copies content into a user's private channel with the
	// same type-preserving semantics.
	CopyToUser(ctx context.Context, userID int64, content Content) (MessageRef, error)

	// SetReaction attaches a sentiment marker to a delivered message.
	SetReaction(ctx context.Context, ref MessageRef, sentiment Sentiment) error

	// Notify sends a plain text notice to a user.
	Notify(ctx context.Context, userID int64, text string) error
}
