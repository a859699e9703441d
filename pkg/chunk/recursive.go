package chunk

// RecursiveSplitter windows text by rune count, preferring to break on the
// first separator (in priority order) found near the window edge so chunks
// end on natural boundaries (paragraph, line, sentence, word) rather than
// mid-token. This is the "default" splitter of spec.md §4.2's table and is
// also the fallback used by MarkdownSplitter and CodeSplitter for sections
// that don't fit their structural boundaries.
type RecursiveSplitter struct {
	Separators []string
}

func (s RecursiveSplitter) Split(text string, cfg Config) []Chunk {
	size := cfg.Size
	if size <= 0 {
		size = 1000
	}
	overlap := cfg.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}

	runes := []rune(text)
	total := len(runes)
	if total == 0 {
		return nil
	}

	var windows []window
	start := 0

	for start < total {
		end := min(start+size, total)

		if end < total {
			if adjusted := s.nearestBoundary(runes, start, end); adjusted > start {
				end = adjusted
			}
		}

		windows = append(windows, window{
			content: string(runes[start:end]),
			start:   start,
			end:     end,
		})

		if end >= total {
			break
		}

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return finalize(windows)
}

// nearestBoundary searches backward from target for the first configured
// separator, trying separators in priority order. Falls back to target
// (a hard cut) if none is found within a reasonable window.
func (s RecursiveSplitter) nearestBoundary(runes []rune, start, target int) int {
	maxSearch := (target - start) / 5
	if maxSearch < 50 {
		maxSearch = 50
	}
	if maxSearch > 500 {
		maxSearch = 500
	}

	for _, sep := range s.Separators {
		if sep == "" {
			continue
		}
		sepRunes := []rune(sep)
		lo := target - maxSearch
		if lo < start {
			lo = start
		}
		for pos := target; pos >= lo; pos-- {
			if matchesAt(runes, pos, sepRunes) {
				return pos + len(sepRunes)
			}
		}
	}

	return target
}

func matchesAt(runes []rune, pos int, sep []rune) bool {
	if pos+len(sep) > len(runes) {
		return false
	}
	for i, r := range sep {
		if runes[pos+i] != r {
			return false
		}
	}
	return true
}
