package subtitle

import (
	"strings"
	"time"
)

// single timed caption
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// parsed SRT block, timing line carried verbatim
type Block struct {
	Index  int
	Timing string
	Text   string
}

// Cue decodes the block's timing line.
func (b Block) Cue() (Cue, error) {
	start, end, err := ParseTiming(b.Timing)
	if err != nil {
		return Cue{}, err
	}
	return Cue{
		Index: b.Index,
		Start: start,
		End:   end,
		Text:  b.Text,
	}, nil
}

// interface for writing cues to files
type Writer interface {
	Write(cues []Cue, path string) error
}

// NormalizeText collapses whitespace runs to single spaces and trims.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
