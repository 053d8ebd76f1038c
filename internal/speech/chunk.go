// Package speech implements the speech pipeline and speech queue (§4.3).
package speech

import "strings"

// MaxChunkLength is the sentence-chunking threshold (§4.3): text longer
// than this is split on sentence terminators before synthesis.
const MaxChunkLength = 500

// Chunk splits text into pieces on sentence boundaries ('.', '!', '?'
// followed by a space or end of string), grouping sentences so that no
// chunk exceeds maxLength unless a single sentence itself exceeds it (in
// which case it is kept whole — a sentence is never broken mid-way).
// Ported from the original implementation's chunk_text.
func Chunk(text string, maxLength int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= maxLength {
		return []string{text}
	}

	var sentences []string
	var current strings.Builder
	runes := []byte(text)
	i := 0
	for i < len(runes) {
		current.WriteByte(runes[i])
		c := runes[i]
		if (c == '.' || c == '!' || c == '?') && (i+1 >= len(runes) || runes[i+1] == ' ') {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
			if i+1 < len(runes) && runes[i+1] == ' ' {
				i++
			}
		}
		i++
	}
	if strings.TrimSpace(current.String()) != "" {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}

	var chunks []string
	var chunk string
	for _, sentence := range sentences {
		switch {
		case chunk == "":
			chunk = sentence
		case len(chunk)+1+len(sentence) <= maxLength:
			chunk += " " + sentence
		default:
			chunks = append(chunks, chunk)
			chunk = sentence
		}
	}
	if chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}
