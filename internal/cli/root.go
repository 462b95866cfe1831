package cli

import (
	"context"
	"fmt"

	"github.com/mgpai22/voxsrt/internal/config"
	"github.com/mgpai22/voxsrt/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	logger     *logging.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "voxsrt",
	Short: "Turn spoken audio into SRT subtitles and translate them",
	Long: `voxsrt splits audio files on silence, sends each spoken segment to a
speech recognition service and writes the results as SRT subtitles.

It can also translate existing SRT files while keeping every cue number
and timestamp untouched.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded

		logger, err = logging.New(logging.Options{
			Format:  cfg.Logging.Format,
			Level:   cfg.Logging.Level,
			Verbose: verbose,
		})
		if err != nil {
			return fmt.Errorf("invalid logging configuration: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "Config file (default ~/.config/voxsrt/config.toml)")
}
