package ocr

import (
	"regexp"
	"strings"
	"unicode"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

var abbreviations = map[string]bool{
	"mr.": true, "mrs.": true, "ms.": true, "dr.": true, "prof.": true,
	"sr.": true, "jr.": true, "st.": true, "vs.": true, "etc.": true,
	"e.g.": true, "i.e.": true, "no.": true, "fig.": true,
}

// SplitSentences breaks extracted text into sentences for per-sentence
// playback. Blank lines end a sentence; single line breaks are treated as
// layout wrapping.
func SplitSentences(text string) []string {
	var sentences []string
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}
		sentences = append(sentences, splitParagraph(para)...)
	}
	return sentences
}

func splitParagraph(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		switch {
		case isWideTerminal(r):
			for i+1 < len(runes) && isCloser(runes[i+1]) {
				i++
				current.WriteRune(runes[i])
			}
			flush()
		case r == '.' || r == '!' || r == '?':
			for i+1 < len(runes) && (isCloser(runes[i+1]) || isTerminal(runes[i+1])) {
				i++
				current.WriteRune(runes[i])
			}
			if i+1 < len(runes) && runes[i+1] != ' ' {
				continue
			}
			if r == '.' && isAbbreviation(lastWord(current.String())) {
				continue
			}
			flush()
		}
	}
	flush()

	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?' || isWideTerminal(r)
}

func isWideTerminal(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '」', '』':
		return true
	}
	return false
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimLeft(fields[len(fields)-1], `"'([“‘`)
}

// isAbbreviation reports whether word ends with a period that does not end
// the sentence: a known abbreviation or a single capital initial.
func isAbbreviation(word string) bool {
	if abbreviations[strings.ToLower(word)] {
		return true
	}
	r := []rune(word)
	return len(r) == 2 && r[1] == '.' && unicode.IsUpper(r[0])
}
