// Package chunk implements C4: splitting extracted text into overlapping,
// offset-tracked windows using a splitter selected by file type (spec.md
// §4.2).
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
)

// Chunk is one window of extracted text, offset into the original text.
type Chunk struct {
	Index     int
	Content   string
	StartChar int
	EndChar   int
	Hash      string
}

// Config holds the chunk-size/overlap pair from settings.Settings.
type Config struct {
	Size    int
	Overlap int
}

// Splitter produces chunks for one document's extracted text.
type Splitter interface {
	Split(text string, cfg Config) []Chunk
}

// ForPath selects a splitter by file extension per spec.md §4.2's table.
func ForPath(path string) Splitter {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".markdown":
		return MarkdownSplitter{}
	case ".py":
		return CodeSplitter{Language: "python"}
	case ".js", ".ts", ".jsx", ".tsx":
		return CodeSplitter{Language: "javascript"}
	default:
		return RecursiveSplitter{Separators: defaultSeparators}
	}
}

var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// finalize assigns Index/Hash for a sequence of (content, start, end)
// windows built by any splitter, dropping whitespace-only windows. It keeps
// the windows in the order given and does not itself check that start_char
// is non-decreasing; each splitter builds its windows in that order.
func finalize(windows []window) []Chunk {
	chunks := make([]Chunk, 0, len(windows))
	for i, w := range windows {
		if strings.TrimSpace(w.content) == "" {
			continue
		}
		sum := sha256.Sum256([]byte(w.content))
		chunks = append(chunks, Chunk{
			Index:     i,
			Content:   w.content,
			StartChar: w.start,
			EndChar:   w.end,
			Hash:      hex.EncodeToString(sum[:]),
		})
	}
	// Re-index after dropping empties so Index stays contiguous.
	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks
}

type window struct {
	content    string
	start, end int
}

var headingRe = regexp.MustCompile(`(?m)^#{1,6} `)
