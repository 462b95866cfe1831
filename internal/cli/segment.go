package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mgpai22/voxsrt/internal/audio"
	"github.com/mgpai22/voxsrt/internal/ffmpeg"
	"github.com/mgpai22/voxsrt/internal/subtitle"
	"github.com/spf13/cobra"
)

var segmentCmd = &cobra.Command{
	Use:   "segment [audio_file]",
	Short: "Split one audio file on silence and save the segments",
	Long: `Split one audio file on silence using the same settings as transcribe
and write every segment as a WAV file, followed by a table of segment
boundaries. Useful for tuning the silence flags before a batch run.

Examples:
  voxsrt segment media/clase1.mp3
  voxsrt segment media/clase1.mp3 -o /tmp/segments --min-silence 800
  voxsrt segment interview.m4a --decoder ffmpeg --silence-thresh -35`,
	Args: cobra.ExactArgs(1),
	RunE: runSegment,
}

func init() {
	rootCmd.AddCommand(segmentCmd)

	segmentCmd.Flags().
		StringP("output", "o", "", "Directory for segment WAV files (default <name>_segments)")
	segmentCmd.Flags().
		String("decoder", "native", "Audio decoder (native, ffmpeg)")
	segmentCmd.Flags().
		IntP("sample-rate", "r", audio.DefaultExportSampleRate, "Sample rate in Hz of the written segments")
	addSplitFlags(segmentCmd)
}

func runSegment(cmd *cobra.Command, args []string) error {
	audioPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(audioPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", audioPath)
	}

	settings := *cfg
	flags := cmd.Flags()
	if flags.Changed("decoder") {
		settings.Transcribe.Decoder, _ = flags.GetString("decoder")
	}
	if flags.Changed("sample-rate") {
		settings.Transcribe.ExportSampleRate, _ = flags.GetInt("sample-rate")
	}
	applySplitFlags(cmd, &settings.Transcribe)
	if err := settings.Normalize(); err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	outDir, _ := flags.GetString("output")
	if outDir == "" {
		outDir = strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + "_segments"
	}

	decoder, err := audio.NewDecoder(audio.DecoderKind(settings.Transcribe.Decoder), "")
	if err != nil {
		return err
	}
	if !decoder.Supports(audioPath) {
		return fmt.Errorf(
			"unsupported file type %q for the %s decoder",
			filepath.Ext(audioPath),
			settings.Transcribe.Decoder,
		)
	}

	logger.Infow("Decoding audio", "file", audioPath, "decoder", settings.Transcribe.Decoder)
	track, err := decoder.Decode(ctx, audioPath)
	if err != nil {
		return err
	}

	if ffmpeg.Available() {
		if probed, err := audio.GetDuration(ctx, audioPath); err == nil {
			logger.Debugw("Container duration",
				"probed", probed.String(),
				"decoded", track.Duration().String(),
			)
		}
	}

	segments, err := audio.SplitOnSilence(track, splitOptionsFrom(settings.Transcribe))
	if err != nil {
		return fmt.Errorf("failed to split audio: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	exporter := &audio.Exporter{SampleRate: settings.Transcribe.ExportSampleRate}
	rows := make([][]string, 0, len(segments))
	for _, seg := range segments {
		name := fmt.Sprintf("segment-%03d.wav", seg.Index+1)
		if err := exporter.WriteWAV(seg, filepath.Join(outDir, name)); err != nil {
			return fmt.Errorf("segment %d: %w", seg.Index+1, err)
		}
		rows = append(rows, []string{
			strconv.Itoa(seg.Index + 1),
			subtitle.FormatTimestamp(seg.Start),
			subtitle.FormatTimestamp(seg.End),
			seg.Duration().String(),
			name,
		})
	}

	out := cmd.OutOrStdout()
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"#", "Start", "End", "Duration", "File"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
		))
	}

	absOutput, _ := filepath.Abs(outDir)
	fmt.Fprintf(out, "%d segments from %s written to %s\n",
		len(segments), track.Duration(), absOutput)
	return nil
}
