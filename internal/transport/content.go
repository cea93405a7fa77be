// Package transport defines the message-transport port consumed by the
// relay core: type-preserving content copies, thread creation, delivery
// reactions and user notices. The core is agnostic to the platform behind
// it; the telegram subpackage provides the production adapter.
package transport

// ContentKind is a closed set of content variants, decided once at
// ingestion so the copy routines can match exhaustively instead of
// probing attributes.
type ContentKind int

const (
	KindText ContentKind = iota
	KindPhoto
	KindVideo
	KindDocument
	KindAudio
	KindVoice
	KindSticker
	KindAnimation
	KindVideoNote
	KindLocation
	KindContact
	KindPoll
	// KindOther covers anything the ingestion step does not recognize.
	// Only the kind descriptor and caption survive the copy; media
	// bytes are dropped. Known limitation carried over from the
	// previous implementation.
	KindOther
)

var kindNames = map[ContentKind]string{
	KindText:      "text",
	KindPhoto:     "photo",
	KindVideo:     "video",
	KindDocument:  "document",
	KindAudio:     "audio",
	KindVoice:     "voice",
	KindSticker:   "sticker",
	KindAnimation: "animation",
	KindVideoNote: "video_note",
	KindLocation:  "location",
	KindContact:   "contact",
	KindPoll:      "poll",
	KindOther:     "other",
}

func (k ContentKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "other"
}

// Content is one relayable message, ingested into the closed variant.
// Text holds the message text for KindText and the caption for media
// kinds, with rich-text markup passed through untouched.
type Content struct {
	Kind   ContentKind
	Text   string
	FileID string

	Latitude  float32
	Longitude float32

	ContactPhone     string
	ContactFirstName string
	ContactLastName  string

	Poll *PollSpec

	// Descriptor holds the platform's name for the content type when
	// Kind is KindOther.
	Descriptor string

	// Origin references the inbound message this content was ingested
	// from, for attaching delivery reactions. Zero for synthesized
	// content.
	Origin MessageRef
}

// PollSpec carries enough of a poll to re-create it on the other side
// with the same options, anonymity and type.
type PollSpec struct {
	Question  string
	Options   []string
	Anonymous bool
	Type      string
}

// Text returns a Content of KindText.
func TextContent(text string) Content {
	return Content{Kind: KindText, Text: text}
}

// Preview returns a short human-readable descriptor of the content,
// used for broadcast confirmations and audit summaries.
func (c Content) Preview(max int) string {
	s := c.Text
	if s == "" {
		s = "[" + c.Kind.String() + "]"
	}
	// Truncation counts runes so a cut never splits a multibyte
	// character.
	if r := []rune(s); max > 0 && len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}

// MessageRef identifies a delivered message on the platform, for
// attaching reactions.
type MessageRef struct {
	ChatID    int64
	MessageID int
}
