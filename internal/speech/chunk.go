package speech

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nikhilbhutani/readaloud/internal/ocr"
)

// splitInput packs the sentences of text into chunks of at most limit
// characters. Text within the limit is returned unchanged.
func splitInput(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	n := 0
	flush := func() {
		if n > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			n = 0
		}
	}

	for _, sentence := range ocr.SplitSentences(text) {
		for _, part := range splitLong(sentence, limit) {
			m := utf8.RuneCountInString(part)
			if n > 0 && n+1+m > limit {
				flush()
			}
			if n > 0 {
				cur.WriteByte(' ')
				n++
			}
			cur.WriteString(part)
			n += m
		}
	}
	flush()
	return chunks
}

// splitLong cuts a sentence longer than limit at the last space that fits,
// or at limit when there is none.
func splitLong(s string, limit int) []string {
	var out []string
	for utf8.RuneCountInString(s) > limit {
		r := []rune(s)
		cut := limit
		for i := limit; i > 0; i-- {
			if unicode.IsSpace(r[i]) {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimSpace(string(r[:cut])))
		s = strings.TrimSpace(string(r[cut:]))
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
