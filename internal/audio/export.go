package audio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

const DefaultExportSampleRate = 16000

// encoded audio handed to a speech backend
type Clip struct {
	Path       string
	Data       []byte
	MIMEType   string
	SampleRate int
	Channels   int
}

// writes segments as mono 16-bit WAV files
type Exporter struct {
	Dir        string // empty uses the system temp dir
	SampleRate int
}

// Export writes seg to a uniquely named WAV file and loads it into a Clip.
// The returned cleanup removes the file and is safe to call more than once.
func (e *Exporter) Export(seg Segment) (*Clip, func(), error) {
	dir := e.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, func() {}, fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("segment-%03d-%s.wav", seg.Index, uuid.NewString()))
	cleanup := func() {
		_ = os.Remove(path)
	}

	if err := e.WriteWAV(seg, path); err != nil {
		cleanup()
		return nil, func() {}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("failed to read exported segment: %w", err)
	}

	return &Clip{
		Path:       path,
		Data:       data,
		MIMEType:   "audio/wav",
		SampleRate: e.sampleRate(),
		Channels:   1,
	}, cleanup, nil
}

// WriteWAV encodes seg to path, resampling to the exporter's rate.
func (e *Exporter) WriteWAV(seg Segment, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	src := seg.Format()
	target := beep.SampleRate(e.sampleRate())

	var s beep.Streamer = seg.Streamer()
	if src.SampleRate != target {
		s = beep.Resample(4, src.SampleRate, target, s)
	}

	format := beep.Format{SampleRate: target, NumChannels: 1, Precision: 2}
	if err := wav.Encode(file, s, format); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to encode segment %d: %w", seg.Index, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func (e *Exporter) sampleRate() int {
	if e.SampleRate > 0 {
		return e.SampleRate
	}
	return DefaultExportSampleRate
}
