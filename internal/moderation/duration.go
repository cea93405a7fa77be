package moderation

import (
	"strconv"
	"strings"
	"time"
)

// PermanentToken is the literal that requests an unbounded ban.
const PermanentToken = "permanent"

// InvalidDurationError reports an unparseable duration token.
type InvalidDurationError struct {
	Token string
}

func (e *InvalidDurationError) Error() string {
	return "invalid duration: " + e.Token
}

var unitSeconds = map[byte]int64{
	'd': 86400,
	'h': 3600,
	'm': 60,
	's': 1,
}

// ParseDuration parses the compact ban-duration grammar: digits
// followed by one of d, h, m, s, with tokens concatenated ("1d12h").
// The literal "permanent" yields permanent=true with a zero duration.
func ParseDuration(token string) (d time.Duration, permanent bool, err error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == PermanentToken {
		return 0, true, nil
	}

	var total int64
	var num int64
	haveNum := false
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= '0' && c <= '9':
			num = num*10 + int64(c-'0')
			haveNum = true
		default:
			mult, ok := unitSeconds[c]
			if !ok {
				return 0, false, &InvalidDurationError{Token: token}
			}
			if haveNum {
				total += num * mult
				num = 0
				haveNum = false
			}
		}
	}

	return time.Duration(total) * time.Second, false, nil
}

// FormatDuration renders a duration as days, hours and minutes,
// omitting zero components. A duration that rounds to nothing yields
// "0m".
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60

	var parts []string
	if days > 0 {
		parts = append(parts, strconv.FormatInt(days, 10)+"d")
	}
	if hours > 0 {
		parts = append(parts, strconv.FormatInt(hours, 10)+"h")
	}
	if minutes > 0 {
		parts = append(parts, strconv.FormatInt(minutes, 10)+"m")
	}
	if len(parts) == 0 {
		return "0m"
	}
	return strings.Join(parts, " ")
}
