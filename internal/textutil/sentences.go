package textutil

import "unicode"

func isSentenceEnd(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// NearestSentenceEnd returns the index just past the sentence terminator
// closest to pos within radius. Terminators immediately followed by a letter
// or digit (decimals like "3.5", abbreviations) do not count. Returns pos
// unchanged when no boundary exists within the radius.
func NearestSentenceEnd(text string, pos, radius int) int {
	if pos <= 0 {
		return 0
	}
	if pos >= len(text) {
		return len(text)
	}
	if radius <= 0 {
		return pos
	}

	lo := pos - radius
	if lo < 0 {
		lo = 0
	}
	hi := pos + radius
	if hi > len(text) {
		hi = len(text)
	}

	best := -1
	bestDist := radius + 1
	for i := lo; i < hi; i++ {
		if !isSentenceEnd(text[i]) {
			continue
		}
		end := i + 1
		if end < len(text) {
			next := rune(text[end])
			if unicode.IsLetter(next) || unicode.IsDigit(next) {
				continue
			}
		}
		dist := end - pos
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist {
			bestDist = dist
			best = end
		}
	}
	if best < 0 {
		return pos
	}
	return best
}

// SplitSentences breaks text into trimmed sentences using the same terminator
// rules as NearestSentenceEnd. Used to check rewritten prose sentence by
// sentence against evidence entries.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		if !isSentenceEnd(text[i]) {
			continue
		}
		if i+1 < len(text) {
			next := rune(text[i+1])
			if unicode.IsLetter(next) || unicode.IsDigit(next) {
				continue
			}
		}
		if s := trimSentence(text[start : i+1]); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if s := trimSentence(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func trimSentence(s string) string {
	begin := 0
	for begin < len(s) && (s[begin] == ' ' || s[begin] == '\n' || s[begin] == '\t' || s[begin] == '\r') {
		begin++
	}
	end := len(s)
	for end > begin && (s[end-1] == ' ' || s[end-1] == '\n' || s[end-1] == '\t' || s[end-1] == '\r') {
		end--
	}
	return s[begin:end]
}
