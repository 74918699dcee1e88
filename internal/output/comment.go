package output

import (
	"strings"
	"unicode/utf8"
)

// DefaultCommentLimit stays under GitHub's 65536 character comment ceiling.
const DefaultCommentLimit = 65000

const truncationNotice = "\n\n_Briefing truncated to fit the comment size limit._\n"

// FitComment returns body unchanged when it has at most limit characters.
// Otherwise it cuts at the last line boundary that leaves room for a notice
// and reports true.
func FitComment(body string, limit int) (string, bool) {
	if limit <= 0 {
		limit = DefaultCommentLimit
	}
	if utf8.RuneCountInString(body) <= limit {
		return body, false
	}

	room := limit - utf8.RuneCountInString(truncationNotice)
	if room <= 0 {
		return truncateRunes(body, limit), true
	}

	cut := truncateRunes(body, room)
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut + truncationNotice, true
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
