package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mgpai22/voxsrt/internal/audio"
	"github.com/mgpai22/voxsrt/internal/batch"
	"github.com/mgpai22/voxsrt/internal/config"
	"github.com/mgpai22/voxsrt/internal/ffmpeg"
	"github.com/mgpai22/voxsrt/internal/subtitle"
	"github.com/mgpai22/voxsrt/internal/transcribe"
	"github.com/spf13/cobra"
)

// errNoCues marks a file whose SRT was written without any cue.
var errNoCues = errors.New("no cues recognized")

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe every audio file in a directory to SRT",
	Long: `Transcribe every audio file in the input directory to an SRT file of the
same base name in the output directory.

Each file is split on silence; every spoken segment is sent to the speech
service on its own. Segments that fail or contain no speech are left out
and the remaining cues keep their order.

With --timeline whisper (openai only) each file is uploaded whole and the
cues take Whisper's own segment timestamps; no silence splitting is done.

Examples:
  voxsrt transcribe
  voxsrt transcribe -i recordings -o subs -l es-MX
  voxsrt transcribe --provider openai --timeline cumulative
  voxsrt transcribe --provider openai --timeline whisper
  voxsrt transcribe --min-silence 700 --silence-thresh -35 --jobs 2`,
	Args: cobra.NoArgs,
	RunE: runTranscribe,
}

func init() {
	rootCmd.AddCommand(transcribeCmd)

	transcribeCmd.Flags().
		StringP("input", "i", "media", "Directory containing audio files")
	transcribeCmd.Flags().
		StringP("output", "o", "srt_spanish", "Directory for generated SRT files")
	transcribeCmd.Flags().
		StringP("language", "l", "es-419", "BCP 47 language of the speech")
	transcribeCmd.Flags().
		String("provider", "google", "Speech provider (google, openai, gemini)")
	transcribeCmd.Flags().
		String("model", "", "Provider model (uses sensible defaults)")
	transcribeCmd.Flags().
		StringP("api-key", "k", "", "API key (or set OPENAI_API_KEY/GEMINI_API_KEY env var)")
	transcribeCmd.Flags().
		String("timeline", "source", "Cue timing (source, cumulative, mean, whisper)")
	transcribeCmd.Flags().
		String("decoder", "native", "Audio decoder (native, ffmpeg)")
	transcribeCmd.Flags().
		Int("concurrency", 1, "Segments recognized in parallel per file")
	transcribeCmd.Flags().
		Int("jobs", 1, "Files processed in parallel")
	addSplitFlags(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	settings := *cfg
	if err := applyTranscribeFlags(cmd, &settings); err != nil {
		return err
	}
	tc := settings.Transcribe

	timeline, err := transcribe.ParseTimeline(tc.Timeline)
	if err != nil {
		return err
	}
	splitOpts := splitOptionsFrom(tc)

	provider := transcribe.Provider(tc.Provider)
	apiKey, _ := cmd.Flags().GetString("api-key")
	apiKey = transcribe.ResolveAPIKey(provider, apiKey)
	if err := transcribe.CheckAvailable(provider, apiKey); err != nil {
		return err
	}

	tempDir, err := os.MkdirTemp("", "voxsrt-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	decoder, err := audio.NewDecoder(audio.DecoderKind(tc.Decoder), tempDir)
	if err != nil {
		return err
	}

	supports := decoder.Supports
	if timeline == transcribe.TimelineWhisper {
		supports = transcribe.WhisperSupports
	}
	files, err := batch.Discover(settings.Paths.MediaDir, supports)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Infow("No audio files found", "input", settings.Paths.MediaDir)
		printSummary(cmd.OutOrStdout(), "Transcribed", batch.Summary{})
		return nil
	}

	lock, err := batch.LockDir(settings.Paths.SRTDir)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	recognizer, err := transcribe.Factory(ctx, provider, transcribe.Options{
		APIKey: apiKey,
		Model:  tc.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to create recognizer: %w", err)
	}
	if closer, ok := recognizer.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	logger.Infow("Starting transcription",
		"input", settings.Paths.MediaDir,
		"output", settings.Paths.SRTDir,
		"files", len(files),
		"provider", provider,
		"language", tc.Language,
		"timeline", timeline,
	)

	writer := subtitle.NewWriter()
	job := &transcribeJob{
		decoder:   decoder,
		splitOpts: splitOpts,
		writer:    writer,
		outDir:    settings.Paths.SRTDir,
		wholeFile: timeline == transcribe.TimelineWhisper,
		orchestrator: transcribe.Orchestrator{
			Recognizer: recognizer,
			Exporter: &audio.Exporter{
				Dir:        tempDir,
				SampleRate: tc.ExportSampleRate,
			},
			Language:    tc.Language,
			Timeline:    timeline,
			Timeout:     settings.RequestTimeout(),
			Concurrency: tc.Concurrency,
		},
	}

	summary := batch.Run(ctx, files, settings.Runtime.Jobs, job.run)
	printSummary(cmd.OutOrStdout(), "Transcribed", summary)
	return ctx.Err()
}

// everything needed to turn one audio file into one SRT file
type transcribeJob struct {
	decoder      audio.Decoder
	splitOpts    audio.SplitOptions
	writer       subtitle.Writer
	outDir       string
	wholeFile    bool
	orchestrator transcribe.Orchestrator
}

func (j *transcribeJob) run(ctx context.Context, path string, res *batch.FileResult) error {
	log := logger.With("file", path)
	orch := j.orchestrator
	orch.Logger = log

	var (
		result *transcribe.Result
		err    error
	)
	if j.wholeFile {
		result, err = j.recognizeWhole(ctx, path, &orch)
	} else {
		result, err = j.recognizeSegments(ctx, path, &orch)
	}
	if err != nil {
		return err
	}

	out := subtitle.OutputPath(j.outDir, path)
	if err := j.writer.Write(result.Cues, out); err != nil {
		return fmt.Errorf("failed to write subtitles: %w", err)
	}

	res.Output = out
	res.Detail = fmt.Sprintf(
		"%d cues, %d without speech, %d failed",
		len(result.Cues),
		result.NoSpeech,
		result.Failed,
	)
	log.Infow("Subtitles written",
		"output", out,
		"cues", len(result.Cues),
		"no_speech", result.NoSpeech,
		"failed", result.Failed,
	)

	if len(result.Cues) == 0 {
		return errNoCues
	}
	return nil
}

// recognizeWhole uploads the file as-is; the duration probe only backs a
// response that carries no segments.
func (j *transcribeJob) recognizeWhole(
	ctx context.Context,
	path string,
	orch *transcribe.Orchestrator,
) (*transcribe.Result, error) {
	var total time.Duration
	if ffmpeg.Available() {
		if d, err := audio.GetDuration(ctx, path); err == nil {
			total = d
		} else {
			orch.Logger.Debugw("Duration probe failed", "error", err)
		}
	}
	orch.Logger.Infow("Transcribing whole file", "duration", total.String())
	return orch.TranscribeFile(ctx, path, total)
}

func (j *transcribeJob) recognizeSegments(
	ctx context.Context,
	path string,
	orch *transcribe.Orchestrator,
) (*transcribe.Result, error) {
	log := orch.Logger
	log.Infow("Decoding audio")

	track, err := j.decoder.Decode(ctx, path)
	if err != nil {
		return nil, err
	}

	segments, err := audio.SplitOnSilence(track, j.splitOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to split audio: %w", err)
	}
	log.Infow("Audio split on silence",
		"duration", track.Duration().String(),
		"segments", len(segments),
	)
	return orch.Transcribe(ctx, segments, track.Duration())
}

// applyTranscribeFlags overlays explicitly set flags on the loaded config.
func applyTranscribeFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("input") {
		c.Paths.MediaDir, _ = flags.GetString("input")
	}
	if flags.Changed("output") {
		c.Paths.SRTDir, _ = flags.GetString("output")
	}
	if flags.Changed("language") {
		c.Transcribe.Language, _ = flags.GetString("language")
	}
	if flags.Changed("provider") {
		c.Transcribe.Provider, _ = flags.GetString("provider")
	}
	if flags.Changed("model") {
		c.Transcribe.Model, _ = flags.GetString("model")
	}
	if flags.Changed("timeline") {
		c.Transcribe.Timeline, _ = flags.GetString("timeline")
	}
	if flags.Changed("decoder") {
		c.Transcribe.Decoder, _ = flags.GetString("decoder")
	}
	if flags.Changed("concurrency") {
		c.Transcribe.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("jobs") {
		c.Runtime.Jobs, _ = flags.GetInt("jobs")
	}
	applySplitFlags(cmd, &c.Transcribe)
	if err := c.Normalize(); err != nil {
		return err
	}
	return c.Validate()
}

func addSplitFlags(cmd *cobra.Command) {
	cmd.Flags().
		Int("min-silence", 500, "Shortest pause in ms that splits speech")
	cmd.Flags().
		Float64("silence-thresh", -40, "Level in dBFS at or below which audio counts as silence")
	cmd.Flags().
		Int("keep-silence", 100, "Silence in ms kept around each segment")
}

func applySplitFlags(cmd *cobra.Command, tc *config.Transcribe) {
	flags := cmd.Flags()
	if flags.Changed("min-silence") {
		tc.MinSilenceMS, _ = flags.GetInt("min-silence")
	}
	if flags.Changed("silence-thresh") {
		tc.SilenceThreshDB, _ = flags.GetFloat64("silence-thresh")
	}
	if flags.Changed("keep-silence") {
		tc.KeepSilenceMS, _ = flags.GetInt("keep-silence")
	}
}

func splitOptionsFrom(tc config.Transcribe) audio.SplitOptions {
	opts := audio.DefaultSplitOptions()
	opts.MinSilenceLen = time.Duration(tc.MinSilenceMS) * time.Millisecond
	opts.SilenceThresh = tc.SilenceThreshDB
	opts.KeepSilence = time.Duration(tc.KeepSilenceMS) * time.Millisecond
	return opts
}
