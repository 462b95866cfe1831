package subtitle

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Parse splits SRT content into blocks. Blocks with fewer than three lines
// or a non-integer first line are skipped; Parse never fails.
func Parse(content string) []Block {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var blocks []Block
	for _, raw := range splitBlocks(strings.TrimSpace(content)) {
		block, ok := parseBlock(raw)
		if !ok {
			continue
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// splitBlocks breaks content at runs of one or more blank lines. A line
// holding only whitespace counts as blank.
func splitBlocks(content string) []string {
	if content == "" {
		return nil
	}

	var (
		blocks  []string
		current []string
	)
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				blocks = append(blocks, strings.Join(current, "\n"))
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, "\n"))
	}
	return blocks
}

func parseBlock(raw string) (Block, bool) {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	if len(lines) < 3 {
		return Block{}, false
	}
	index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return Block{}, false
	}
	return Block{
		Index:  index,
		Timing: lines[1],
		Text:   strings.Join(lines[2:], "\n"),
	}, true
}

// SRT file loaded for in-place text edits
type SRTFile struct {
	blocks []Block
}

// Open reads and parses an SRT file. Only I/O failures are reported.
func Open(path string) (*SRTFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read SRT file: %w", err)
	}
	return &SRTFile{blocks: Parse(string(data))}, nil
}

func (f *SRTFile) Blocks() []Block {
	return f.blocks
}

// Cues decodes every block with a valid timing line, in file order.
func (f *SRTFile) Cues() []Cue {
	cues := make([]Cue, 0, len(f.blocks))
	for _, b := range f.blocks {
		c, err := b.Cue()
		if err != nil {
			continue
		}
		cues = append(cues, c)
	}
	return cues
}

func (f *SRTFile) SetText(index int, text string) error {
	if index < 0 || index >= len(f.blocks) {
		return fmt.Errorf(
			"index %d out of range (0-%d)",
			index,
			len(f.blocks)-1,
		)
	}
	f.blocks[index].Text = text
	return nil
}

// Write renders the blocks verbatim, keeping their original numbering.
func (f *SRTFile) Write(path string) error {
	return WriteFileAtomic(path, []byte(RenderBlocks(f.blocks)))
}
