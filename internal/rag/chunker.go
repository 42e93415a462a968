package rag

import (
	"regexp"
	"strings"
)

const (
	// ChunkSize is the target chunk length in characters.
	ChunkSize = 1000
	// ChunkOverlap is carried between consecutive chunks so retrieval keeps
	// context that straddles a chunk boundary.
	ChunkOverlap = 200
)

var paragraphSplit = regexp.MustCompile(`\n{2,}`)

// ChunkText splits source text into paragraph chunks, windowing long
// paragraphs into overlapping ChunkSize pieces.
func ChunkText(text string) []string {
	var out []string
	for _, p := range paragraphSplit.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, splitLong(p, ChunkSize, ChunkOverlap)...)
	}
	return out
}

func splitLong(s string, max, overlap int) []string {
	if len(s) <= max {
		return []string{s}
	}
	var res []string
	for i := 0; i < len(s); i += max - overlap {
		end := i + max
		if end > len(s) {
			end = len(s)
		}
		res = append(res, strings.TrimSpace(s[i:end]))
		if end == len(s) {
			break
		}
	}
	return res
}
