package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep"

	ffmpegbin "github.com/mgpai22/voxsrt/internal/ffmpeg"
)

// ErrDecode matches every *DecodeError via errors.Is.
var ErrDecode = errors.New("audio decode failed")

// DecodeError reports an audio file that could not be opened or decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// decoded PCM audio held in memory
type Track struct {
	Path   string
	Buffer *beep.Buffer
}

// NewTrack drains s into an in-memory buffer.
func NewTrack(path string, format beep.Format, s beep.Streamer) *Track {
	buf := beep.NewBuffer(format)
	buf.Append(s)
	return &Track{Path: path, Buffer: buf}
}

func (t *Track) Format() beep.Format {
	return t.Buffer.Format()
}

// number of samples per channel
func (t *Track) Len() int {
	return t.Buffer.Len()
}

// length truncated to whole milliseconds
func (t *Track) Duration() time.Duration {
	return time.Duration(t.LenMillis()) * time.Millisecond
}

// LenMillis is the track length in whole milliseconds.
func (t *Track) LenMillis() int64 {
	rate := int64(t.Format().SampleRate)
	if rate <= 0 {
		return 0
	}
	return int64(t.Len()) * 1000 / rate
}

// interface for turning a media file into a Track
type Decoder interface {
	Decode(ctx context.Context, path string) (*Track, error)
	Supports(path string) bool
}

// decoder backend
type DecoderKind string

const (
	DecoderNative DecoderKind = "native"
	DecoderFFmpeg DecoderKind = "ffmpeg"
)

// creates a Decoder for kind
func NewDecoder(kind DecoderKind, tempDir string) (Decoder, error) {
	switch kind {
	case DecoderNative, "":
		return &NativeDecoder{}, nil
	case DecoderFFmpeg:
		if _, err := ffmpegbin.Ensure(); err != nil {
			return nil, err
		}
		return &FFmpegDecoder{TempDir: tempDir}, nil
	default:
		return nil, fmt.Errorf("unsupported decoder: %s", kind)
	}
}

// JSON output from ffprobe
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// duration of an audio/video file
func GetDuration(ctx context.Context, filePath string) (time.Duration, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return 0, fmt.Errorf("file not found: %s", filePath)
	}

	ffprobePath, err := ffmpegbin.FFprobePath()
	if err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var seconds float64
	if _, err := fmt.Sscanf(probe.Format.Duration, "%f", &seconds); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// checks if the file is a video based on extension
func IsVideoFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	videoExts := map[string]bool{
		".mp4":  true,
		".mkv":  true,
		".avi":  true,
		".mov":  true,
		".webm": true,
		".m4v":  true,
		".mpeg": true,
		".mpg":  true,
	}
	return videoExts[ext]
}

// checks if the file is an audio file based on extension
func IsAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	audioExts := map[string]bool{
		".mp3":  true,
		".wav":  true,
		".aac":  true,
		".flac": true,
		".ogg":  true,
		".m4a":  true,
		".wma":  true,
		".aiff": true,
	}
	return audioExts[ext]
}

// checks if the file is either audio or video
func IsMediaFile(path string) bool {
	return IsAudioFile(path) || IsVideoFile(path)
}
