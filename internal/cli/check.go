package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/mgpai22/voxsrt/internal/audio"
	"github.com/mgpai22/voxsrt/internal/batch"
	"github.com/mgpai22/voxsrt/internal/ffmpeg"
	"github.com/mgpai22/voxsrt/internal/subtitle"
	"github.com/mgpai22/voxsrt/internal/transcribe"
	"github.com/mgpai22/voxsrt/internal/translate"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check folders, tools and service credentials",
	Long: `Report whether the configured folders exist, how many audio and SRT files
they hold, whether ffmpeg is installed and whether the configured speech and
translation providers have credentials.

Only a missing media folder makes the command fail.

Examples:
  voxsrt check
  voxsrt check -c ./voxsrt.toml`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

const (
	statusOK      = "ok"
	statusMissing = "missing"
)

func runCheck(cmd *cobra.Command, args []string) error {
	settings := *cfg
	out := cmd.OutOrStdout()

	var (
		rows     [][]string
		fileRows [][]string
	)

	decoder, err := audio.NewDecoder(audio.DecoderKind(settings.Transcribe.Decoder), "")
	if err != nil {
		return err
	}
	media, mediaErr := batch.Discover(settings.Paths.MediaDir, decoder.Supports)
	if mediaErr != nil {
		rows = append(rows, []string{"Media folder", statusMissing, settings.Paths.MediaDir})
	} else {
		rows = append(rows, []string{
			"Media folder", statusOK,
			fmt.Sprintf("%s (%d audio files)", settings.Paths.MediaDir, len(media)),
		})
		for _, f := range media {
			fileRows = append(fileRows, []string{settings.Paths.MediaDir, filepath.Base(f), "-"})
		}
	}

	for _, dir := range []struct{ label, path string }{
		{"SRT folder", settings.Paths.SRTDir},
		{"Translated folder", settings.Paths.TranslatedDir},
	} {
		row, files := checkSRTDir(dir.label, dir.path)
		rows = append(rows, row)
		fileRows = append(fileRows, files...)
	}

	if ffmpeg.Available() {
		rows = append(rows, []string{"ffmpeg", statusOK, "found"})
	} else {
		rows = append(rows, []string{"ffmpeg", statusMissing, "only needed for --decoder ffmpeg"})
	}

	speech := transcribe.Provider(settings.Transcribe.Provider)
	rows = append(rows, backendRow(
		"Speech backend",
		string(speech),
		transcribe.CheckAvailable(speech, transcribe.ResolveAPIKey(speech, "")),
	))
	translator := translate.Provider(settings.Translate.Provider)
	rows = append(rows, backendRow(
		"Translation backend",
		string(translator),
		translate.CheckAvailable(translator, translate.ResolveAPIKey(translator, "")),
	))

	fmt.Fprintln(out, renderTable(
		[]string{"Check", "Status", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	))
	if len(fileRows) > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"Folder", "File", "Cues"},
			fileRows,
			[]columnAlignment{alignLeft, alignLeft, alignRight},
		))
	}

	logger.Debugw("Environment check finished", "media_ok", mediaErr == nil)
	return mediaErr
}

// checkSRTDir counts the cues of every SRT file in dir. A missing folder is
// reported but not an error; transcribe and translate create them.
func checkSRTDir(label, dir string) ([]string, [][]string) {
	files, err := batch.Discover(dir, batch.HasExt(".srt"))
	if err != nil {
		var dirErr *batch.DirectoryError
		if errors.As(err, &dirErr) {
			return []string{label, statusMissing, dir}, nil
		}
		return []string{label, "error", err.Error()}, nil
	}

	var (
		rows  [][]string
		total int
	)
	for _, f := range files {
		cues := "unreadable"
		if file, err := subtitle.Open(f); err == nil {
			n := len(file.Cues())
			total += n
			cues = strconv.Itoa(n)
		}
		rows = append(rows, []string{dir, filepath.Base(f), cues})
	}
	return []string{
		label, statusOK,
		fmt.Sprintf("%s (%d SRT files, %d cues)", dir, len(files), total),
	}, rows
}

func backendRow(label, provider string, err error) []string {
	if err != nil {
		return []string{label, "unavailable", err.Error()}
	}
	return []string{label, statusOK, provider}
}
