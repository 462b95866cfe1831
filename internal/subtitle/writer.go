package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SubRip format
type SRTWriter struct{}

func NewWriter() Writer {
	return &SRTWriter{}
}

// writes the cues to an SRT file, replacing any existing file atomically
func (w *SRTWriter) Write(cues []Cue, path string) error {
	return WriteFileAtomic(path, []byte(Render(cues)))
}

// Render numbers cues from 1 in slice order and normalizes their text.
// Blocks are separated by one blank line and the document ends with a
// single newline. No cues render as an empty document.
func Render(cues []Cue) string {
	if len(cues) == 0 {
		return ""
	}

	parts := make([]string, len(cues))
	for i, cue := range cues {
		parts[i] = renderBlock(
			strconv.Itoa(i+1),
			FormatTiming(cue.Start, cue.End),
			NormalizeText(cue.Text),
		)
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// RenderBlocks lays out parsed blocks without renumbering or touching their
// timing lines or text.
func RenderBlocks(blocks []Block) string {
	if len(blocks) == 0 {
		return ""
	}

	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = renderBlock(strconv.Itoa(b.Index), b.Timing, b.Text)
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func renderBlock(index, timing, text string) string {
	return index + "\n" + timing + "\n" + text
}

// WriteFileAtomic writes data next to path and renames it into place, so
// readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// subtitle path for a media file placed in outDir
func OutputPath(outDir, mediaPath string) string {
	base := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	return filepath.Join(outDir, base+".srt")
}
