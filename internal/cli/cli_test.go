package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mgpai22/voxsrt/internal/audio"
	"github.com/mgpai22/voxsrt/internal/batch"
	"github.com/mgpai22/voxsrt/internal/logging"
	"github.com/mgpai22/voxsrt/internal/subtitle"
	"github.com/mgpai22/voxsrt/internal/transcribe"
	"github.com/mgpai22/voxsrt/internal/translate"
)

// resetFlags restores defaults so tests sharing rootCmd do not leak flags.
func resetFlags(cmds ...*cobra.Command) {
	for _, c := range cmds {
		for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			})
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithConfig(t, "", args...)
}

func executeWithConfig(t *testing.T, extra string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd, transcribeCmd, translateCmd, segmentCmd, checkCmd)
	t.Cleanup(func() { resetFlags(rootCmd, transcribeCmd, translateCmd, segmentCmd, checkCmd) })

	cfgFile := filepath.Join(t.TempDir(), "voxsrt.toml")
	if err := os.WriteFile(cfgFile, []byte("[logging]\nformat = \"console\"\nlevel = \"error\"\n"+extra), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", cfgFile))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTranscribeMissingInputDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "transcribe",
		"-i", filepath.Join(dir, "media"),
		"-o", filepath.Join(dir, "srt"),
		"--provider", "openai",
		"-k", "fake-key",
	)

	var dirErr *batch.DirectoryError
	if !errors.As(err, &dirErr) {
		t.Fatalf("expected *batch.DirectoryError, got %v", err)
	}
}

func TestTranscribeWithoutBackend(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	dir := t.TempDir()
	_, err := execute(t, "transcribe",
		"-i", dir,
		"-o", filepath.Join(dir, "srt"),
		"--provider", "openai",
	)
	if !errors.Is(err, transcribe.ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
}

func TestTranscribeRejectsInvalidLanguage(t *testing.T) {
	_, err := execute(t, "transcribe", "-l", "not a language", "--provider", "openai", "-k", "x")
	if err == nil || !strings.Contains(err.Error(), "language") {
		t.Fatalf("expected language error, got %v", err)
	}
}

func TestTranscribeEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "transcribe",
		"-i", dir,
		"-o", filepath.Join(dir, "srt"),
		"--provider", "gemini",
		"-k", "fake-key",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Transcribed 0/0 files") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestTranslateMissingInputDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "translate",
		"-i", filepath.Join(dir, "srt_spanish"),
		"-o", filepath.Join(dir, "srt_english"),
		"-k", "fake-key",
	)

	var dirErr *batch.DirectoryError
	if !errors.As(err, &dirErr) {
		t.Fatalf("expected *batch.DirectoryError, got %v", err)
	}
}

func TestTranslateWithoutBackend(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := execute(t, "translate", "--provider", "anthropic")
	if !errors.Is(err, translate.ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
}

func TestTranslateRejectsSameLanguages(t *testing.T) {
	_, err := execute(t, "translate", "-s", "en", "-t", "EN", "-k", "fake-key")
	if err == nil || !strings.Contains(err.Error(), "cannot be the same") {
		t.Fatalf("expected same-language error, got %v", err)
	}
}

func TestTranslateOutputLocked(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "srt_spanish")
	out := filepath.Join(dir, "srt_english")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(in, "a.srt"), []byte("1\n00:00:01,000 --> 00:00:02,000\nHola\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	lock, err := batch.LockDir(out)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Unlock()

	_, err = execute(t, "translate", "-i", in, "-o", out, "-k", "fake-key")
	if !errors.Is(err, batch.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

type stubRecognizer struct {
	text string
}

func (s *stubRecognizer) Name() string { return "stub" }

func (s *stubRecognizer) Recognize(_ context.Context, clip *audio.Clip, _ string) (string, error) {
	if clip == nil || len(clip.Data) == 0 {
		return "", transcribe.ErrNoSpeech
	}
	return s.text, nil
}

func toneStreamer(n int) beep.Streamer {
	return beep.Take(n, beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{0.5, 0.5}
		}
		return len(samples), true
	}))
}

func writeWAV(t *testing.T, path string, s beep.Streamer) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	format := beep.Format{SampleRate: 8000, NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, s, format); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
}

func newTestJob(t *testing.T, outDir string) *transcribeJob {
	t.Helper()
	return &transcribeJob{
		decoder:   &audio.NativeDecoder{},
		splitOpts: audio.DefaultSplitOptions(),
		writer:    subtitle.NewWriter(),
		outDir:    outDir,
		orchestrator: transcribe.Orchestrator{
			Recognizer: &stubRecognizer{text: " hola \n"},
			Exporter:   &audio.Exporter{Dir: t.TempDir()},
			Language:   "es-419",
			Timeline:   transcribe.TimelineSource,
		},
	}
}

func TestTranscribeJobWritesCues(t *testing.T) {
	logger = logging.Nop()
	dir := t.TempDir()
	media := filepath.Join(dir, "clase.wav")
	writeWAV(t, media, beep.Seq(toneStreamer(8000), beep.Silence(8000), toneStreamer(8000)))

	outDir := filepath.Join(dir, "srt_spanish")
	var res batch.FileResult
	if err := newTestJob(t, outDir).run(context.Background(), media, &res); err != nil {
		t.Fatalf("run() error: %v", err)
	}

	if res.Output != filepath.Join(outDir, "clase.srt") {
		t.Errorf("Output = %q", res.Output)
	}

	file, err := subtitle.Open(res.Output)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	cues := file.Cues()
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(cues))
	}
	for i, c := range cues {
		if c.Index != i+1 || c.Text != "hola" {
			t.Errorf("cue %d = %+v", i, c)
		}
	}
	if cues[0].Start != 0 || cues[1].Start <= cues[0].End {
		t.Errorf("cues out of order: %+v", cues)
	}
}

func TestTranscribeJobSilentFile(t *testing.T) {
	logger = logging.Nop()
	dir := t.TempDir()
	media := filepath.Join(dir, "silencio.wav")
	writeWAV(t, media, beep.Silence(16000))

	outDir := filepath.Join(dir, "srt_spanish")
	var res batch.FileResult
	err := newTestJob(t, outDir).run(context.Background(), media, &res)
	if !errors.Is(err, errNoCues) {
		t.Fatalf("expected errNoCues, got %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "silencio.srt"))
	if err != nil {
		t.Fatalf("empty SRT should still be written: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty SRT, got %q", data)
	}
}

func TestTranscribeJobDecodeFailure(t *testing.T) {
	logger = logging.Nop()
	dir := t.TempDir()
	media := filepath.Join(dir, "broken.wav")
	if err := os.WriteFile(media, []byte("not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	var res batch.FileResult
	err := newTestJob(t, dir).run(context.Background(), media, &res)
	if !errors.Is(err, audio.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

type stubFileRecognizer struct {
	stubRecognizer
	cues []subtitle.Cue
}

func (s *stubFileRecognizer) RecognizeFile(
	_ context.Context,
	_, _ string,
	_ time.Duration,
) ([]subtitle.Cue, error) {
	return s.cues, nil
}

func TestTranscribeJobWholeFile(t *testing.T) {
	logger = logging.Nop()
	dir := t.TempDir()
	// never decoded, the recognizer reads the upload itself
	media := filepath.Join(dir, "clase.mp3")
	if err := os.WriteFile(media, []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}

	outDir := filepath.Join(dir, "srt_spanish")
	job := newTestJob(t, outDir)
	job.wholeFile = true
	job.orchestrator.Timeline = transcribe.TimelineWhisper
	job.orchestrator.Recognizer = &stubFileRecognizer{cues: []subtitle.Cue{
		{Index: 1, Start: 1500 * time.Millisecond, End: 3200 * time.Millisecond, Text: "Hola a todos"},
		{Index: 2, Start: 4 * time.Second, End: 5 * time.Second, Text: "¿Cómo están?"},
	}}

	var res batch.FileResult
	if err := job.run(context.Background(), media, &res); err != nil {
		t.Fatalf("run() error: %v", err)
	}

	data, err := os.ReadFile(res.Output)
	if err != nil {
		t.Fatal(err)
	}
	want := "1\n00:00:01,500 --> 00:00:03,200\nHola a todos\n\n" +
		"2\n00:00:04,000 --> 00:00:05,000\n¿Cómo están?\n"
	if !strings.HasPrefix(string(data), want) {
		t.Errorf("unexpected SRT:\n%s", data)
	}
}

func TestTranscribeWhisperTimelineNeedsOpenAI(t *testing.T) {
	_, err := execute(t, "transcribe", "--timeline", "whisper", "--provider", "gemini", "-k", "x")
	if err == nil || !strings.Contains(err.Error(), "whisper") {
		t.Fatalf("expected whisper timeline error, got %v", err)
	}
}

func TestCheckReportsEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	dir := t.TempDir()
	media := filepath.Join(dir, "media")
	srt := filepath.Join(dir, "srt_spanish")
	for _, d := range []string{media, srt} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(media, "clase1.mp3"), []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(media, "notas.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	content := "1\n00:00:01,000 --> 00:00:02,000\nHola\n\n2\n00:00:03,000 --> 00:00:04,000\nAdiós\n"
	if err := os.WriteFile(filepath.Join(srt, "clase1.srt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	paths := fmt.Sprintf(
		"[paths]\nmedia_dir = %q\nsrt_dir = %q\ntranslated_dir = %q\n[transcribe]\nprovider = \"openai\"\n",
		media, srt, filepath.Join(dir, "srt_english"),
	)
	out, err := executeWithConfig(t, paths, "check")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	for _, want := range []string{
		"(1 audio files)",
		"(1 SRT files, 2 cues)",
		"clase1.srt",
		"missing",
		"unavailable",
		"OPENAI_API_KEY",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("check output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "notas.txt") {
		t.Errorf("non-audio file listed:\n%s", out)
	}
}

func TestCheckMissingMediaFolder(t *testing.T) {
	dir := t.TempDir()
	paths := fmt.Sprintf("[paths]\nmedia_dir = %q\n", filepath.Join(dir, "media"))
	_, err := executeWithConfig(t, paths, "check")

	var dirErr *batch.DirectoryError
	if !errors.As(err, &dirErr) {
		t.Fatalf("expected *batch.DirectoryError, got %v", err)
	}
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, "Translated", batch.Summary{
		Results: []batch.FileResult{
			{Path: "/x/a.srt", Detail: "3/3 cues translated"},
			{Path: "/x/b.srt", Err: errors.New("permission denied")},
		},
		Succeeded: 1,
		Total:     2,
	})

	got := out.String()
	for _, want := range []string{"a.srt", "b.srt", "failed", "permission denied", "Translated 1/2 files"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestLicense(t *testing.T) {
	out, err := execute(t, "license")
	if err != nil {
		t.Fatalf("license: %v", err)
	}
	if !strings.HasPrefix(out, "MIT License") {
		t.Errorf("unexpected license output: %q", out[:min(len(out), 40)])
	}
}
