package transport

// The platform only accepts reactions from a fixed emoji allow-list.
// Anything outside it is coerced to the closest sentiment default.
var allowedReactions = map[string]struct{}{
	"👍": {}, "👎": {}, "❤": {}, "🔥": {}, "🥰": {}, "👏": {},
	"😁": {}, "🤔": {}, "🤯": {}, "😱": {}, "🎉": {}, "🤩": {},
	"🙏": {}, "👌": {}, "🕊": {}, "💯": {}, "⚡": {}, "🏆": {},
	"💔": {}, "😢": {}, "😭": {}, "👀": {}, "🤝": {}, "🫡": {},
}

const (
	positiveDefault = "👍"
	negativeDefault = "👎"
)

// ReactionEmoji maps a sentiment to an allow-listed emoji. Unknown or
// disallowed candidates fall back to the sentiment default.
func ReactionEmoji(s Sentiment, candidate string) string {
	if candidate != "" {
		if _, ok := allowedReactions[candidate]; ok {
			return candidate
		}
	}
	if s == SentimentNegative {
		return negativeDefault
	}
	return positiveDefault
}
