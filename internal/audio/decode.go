package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/voxsrt/internal/ffmpeg"
)

// decodes MP3 and WAV in process
type NativeDecoder struct{}

func (d *NativeDecoder) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".wav":
		return true
	}
	return false
}

func (d *NativeDecoder) Decode(ctx context.Context, path string) (*Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !d.Supports(path) {
		return nil, &DecodeError{
			Path: path,
			Err:  fmt.Errorf("unsupported format %q", filepath.Ext(path)),
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		// mp3.Decode takes ownership of file
		streamer, format, err = mp3.Decode(file)
	default:
		streamer, format, err = wav.Decode(file)
	}
	if err != nil {
		_ = file.Close()
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer streamer.Close()

	track := NewTrack(path, format, streamer)
	if err := streamer.Err(); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return track, nil
}

// transcodes any container ffmpeg understands to WAV, then decodes it natively
type FFmpegDecoder struct {
	TempDir    string
	SampleRate int // 0 keeps 16kHz
}

func (d *FFmpegDecoder) Supports(path string) bool {
	return IsMediaFile(path)
}

func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (*Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	tempDir, err := os.MkdirTemp(d.TempDir, "voxsrt-decode-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	rate := d.SampleRate
	if rate <= 0 {
		rate = 16000
	}

	wavPath := filepath.Join(tempDir, "audio.wav")
	err = ffmpeg.Input(path).
		Output(wavPath, ffmpeg.KwArgs{
			"vn":     "",
			"ac":     1,
			"ar":     rate,
			"acodec": "pcm_s16le",
		}).
		OverWriteOutput().
		SetFfmpegPath(ffmpegPath).
		Run()
	if err != nil {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("ffmpeg transcode: %w", err)}
	}

	track, err := (&NativeDecoder{}).Decode(ctx, wavPath)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	track.Path = path
	return track, nil
}
