package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mgpai22/voxsrt/internal/batch"
	"github.com/mgpai22/voxsrt/internal/cache"
	"github.com/mgpai22/voxsrt/internal/config"
	"github.com/mgpai22/voxsrt/internal/translate"
	"github.com/spf13/cobra"
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate every SRT file in a directory",
	Long: `Translate every SRT file in the input directory and write a file of the
same name to the output directory.

Only cue text changes: cue numbers and timing lines are copied exactly. A
cue whose translation fails keeps its original text.

Examples:
  voxsrt translate
  voxsrt translate -i srt_spanish -o srt_english -s es -t en
  voxsrt translate --provider anthropic --cache sqlite
  voxsrt translate -t fr --concurrency 4`,
	Args: cobra.NoArgs,
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().
		StringP("input", "i", "srt_spanish", "Directory containing SRT files")
	translateCmd.Flags().
		StringP("output", "o", "srt_english", "Directory for translated SRT files")
	translateCmd.Flags().
		StringP("source-lang", "s", "es", "Source language code")
	translateCmd.Flags().
		StringP("target-lang", "t", "en", "Target language code")
	translateCmd.Flags().
		String("provider", "gemini", "Translation provider (gemini, openai, anthropic)")
	translateCmd.Flags().
		String("model", "", "Model to use for translation (provider-specific, uses sensible defaults)")
	translateCmd.Flags().
		StringP("api-key", "k", "", "API key (or set GEMINI_API_KEY/OPENAI_API_KEY/ANTHROPIC_API_KEY env var)")
	translateCmd.Flags().
		Int("concurrency", 1, "Cues translated in parallel per file")
	translateCmd.Flags().
		Int("jobs", 1, "Files processed in parallel")
	translateCmd.Flags().
		String("cache", "none", "Translation cache (none, sqlite, redis)")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	settings := *cfg
	if err := applyTranslateFlags(cmd, &settings); err != nil {
		return err
	}
	tc := settings.Translate

	if strings.EqualFold(tc.SourceLang, tc.TargetLang) {
		return fmt.Errorf(
			"source language %q and target language %q cannot be the same",
			tc.SourceLang,
			tc.TargetLang,
		)
	}

	provider := translate.Provider(tc.Provider)
	apiKey, _ := cmd.Flags().GetString("api-key")
	apiKey = translate.ResolveAPIKey(provider, apiKey)
	if err := translate.CheckAvailable(provider, apiKey); err != nil {
		return err
	}

	files, err := batch.Discover(settings.Paths.SRTDir, batch.HasExt(".srt"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Infow("No SRT files found", "input", settings.Paths.SRTDir)
		printSummary(cmd.OutOrStdout(), "Translated", batch.Summary{})
		return nil
	}

	lock, err := batch.LockDir(settings.Paths.TranslatedDir)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	translator, err := translate.Factory(ctx, provider, apiKey, translate.Options{
		Model: tc.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}

	store, err := cache.Open(ctx, cache.Options{
		Backend:   settings.Cache.Backend,
		Path:      settings.Cache.Path,
		RedisAddr: settings.Cache.RedisAddr,
		TTL:       settings.CacheTTL(),
	})
	if err != nil {
		logger.Warnw("Translation cache unavailable, continuing without it", "error", err)
		store = nil
	}
	if store != nil {
		defer store.Close()
		translator = translate.NewCachedTranslator(
			translator,
			store,
			string(provider)+"/"+tc.Model,
			logger,
		)
	}

	logger.Infow("Starting subtitle translation",
		"input", settings.Paths.SRTDir,
		"output", settings.Paths.TranslatedDir,
		"files", len(files),
		"provider", provider,
		"source_language", tc.SourceLang,
		"target_language", tc.TargetLang,
		"cache", settings.Cache.Backend,
	)

	rewriter := &translate.Rewriter{
		Translator:  translator,
		Source:      tc.SourceLang,
		Target:      tc.TargetLang,
		Timeout:     settings.RequestTimeout(),
		Concurrency: tc.Concurrency,
		Logger:      logger,
	}
	outDir := settings.Paths.TranslatedDir

	summary := batch.Run(ctx, files, settings.Runtime.Jobs,
		func(ctx context.Context, path string, res *batch.FileResult) error {
			out := filepath.Join(outDir, filepath.Base(path))
			stats, err := rewriter.RewriteFile(ctx, path, out)
			if err != nil {
				return err
			}
			res.Output = out
			res.Detail = fmt.Sprintf("%d/%d cues translated", stats.Translated, stats.Cues-stats.Empty)
			logger.Infow("Saved translation",
				"file", path,
				"output", out,
				"translated", stats.Translated,
				"kept_original", stats.Failed,
			)
			return nil
		},
	)
	printSummary(cmd.OutOrStdout(), "Translated", summary)
	return ctx.Err()
}

// applyTranslateFlags overlays explicitly set flags on the loaded config.
func applyTranslateFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("input") {
		c.Paths.SRTDir, _ = flags.GetString("input")
	}
	if flags.Changed("output") {
		c.Paths.TranslatedDir, _ = flags.GetString("output")
	}
	if flags.Changed("source-lang") {
		c.Translate.SourceLang, _ = flags.GetString("source-lang")
	}
	if flags.Changed("target-lang") {
		c.Translate.TargetLang, _ = flags.GetString("target-lang")
	}
	if flags.Changed("provider") {
		c.Translate.Provider, _ = flags.GetString("provider")
	}
	if flags.Changed("model") {
		c.Translate.Model, _ = flags.GetString("model")
	}
	if flags.Changed("concurrency") {
		c.Translate.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("jobs") {
		c.Runtime.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("cache") {
		c.Cache.Backend, _ = flags.GetString("cache")
	}
	if err := c.Normalize(); err != nil {
		return err
	}
	return c.Validate()
}
