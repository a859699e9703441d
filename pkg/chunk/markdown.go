package chunk

// MarkdownSplitter first breaks text at heading boundaries (spec.md §4.2:
// "Heading-aware recursive"), then delegates any section still larger than
// the configured size to RecursiveSplitter so long sections still produce
// bounded windows.
type MarkdownSplitter struct{}

func (MarkdownSplitter) Split(text string, cfg Config) []Chunk {
	size := cfg.Size
	if size <= 0 {
		size = 1000
	}

	sections := splitAtHeadings(text)

	var windows []window
	for _, sec := range sections {
		if len([]rune(sec.content)) <= size {
			windows = append(windows, sec)
			continue
		}

		sub := RecursiveSplitter{Separators: defaultSeparators}.Split(sec.content, cfg)
		for _, c := range sub {
			windows = append(windows, window{
				content: c.Content,
				start:   sec.start + c.StartChar,
				end:     sec.start + c.EndChar,
			})
		}
	}

	return finalize(windows)
}

func splitAtHeadings(text string) []window {
	runes := []rune(text)
	locs := headingRe.FindAllStringIndex(text, -1)

	if len(locs) == 0 {
		return []window{{content: text, start: 0, end: len(runes)}}
	}

	// Convert byte offsets from the regexp match to rune offsets.
	byteToRune := buildByteToRuneIndex(text)

	var sections []window
	starts := make([]int, 0, len(locs)+1)
	if locs[0][0] > 0 {
		starts = append(starts, 0)
	}
	for _, loc := range locs {
		starts = append(starts, byteToRune[loc[0]])
	}
	starts = append(starts, len(runes))

	for i := 0; i < len(starts)-1; i++ {
		s, e := starts[i], starts[i+1]
		if s >= e {
			continue
		}
		sections = append(sections, window{content: string(runes[s:e]), start: s, end: e})
	}

	return sections
}

func buildByteToRuneIndex(text string) map[int]int {
	idx := make(map[int]int, len(text))
	runeIdx := 0
	for byteIdx := range text {
		idx[byteIdx] = runeIdx
		runeIdx++
	}
	idx[len(text)] = runeIdx
	return idx
}
