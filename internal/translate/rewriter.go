package translate

import (
	"context"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/mgpai22/voxsrt/internal/logging"
	"github.com/mgpai22/voxsrt/internal/subtitle"
)

// counts for one rewritten document
type Stats struct {
	Cues       int
	Translated int
	Empty      int
	Failed     int
}

// Rewriter replaces cue text with its translation, leaving every index and
// timing line exactly as parsed.
type Rewriter struct {
	Translator  Translator
	Source      string
	Target      string
	Timeout     time.Duration // per cue, 0 disables
	Concurrency int
	Logger      *logging.Logger
}

// Rewrite translates blocks in place order. A cue whose translation fails
// keeps its original text.
func (r *Rewriter) Rewrite(ctx context.Context, blocks []subtitle.Block) ([]subtitle.Block, Stats) {
	out := make([]subtitle.Block, len(blocks))
	copy(out, blocks)

	failed := make([]bool, len(blocks))
	empty := make([]bool, len(blocks))

	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i := range blocks {
		if ctx.Err() != nil {
			failed[i] = true
			continue
		}
		g.Go(func() error {
			text, ok, skipped := r.rewriteOne(ctx, blocks[i])
			out[i].Text = text
			failed[i] = !ok
			empty[i] = skipped
			return nil
		})
	}
	_ = g.Wait()

	stats := Stats{Cues: len(blocks)}
	for i := range blocks {
		switch {
		case empty[i]:
			stats.Empty++
		case failed[i]:
			stats.Failed++
		default:
			stats.Translated++
		}
	}
	return out, stats
}

// rewriteOne returns the text to emit, whether translation succeeded, and
// whether the cue was empty.
func (r *Rewriter) rewriteOne(ctx context.Context, b subtitle.Block) (string, bool, bool) {
	clean := strings.TrimSpace(b.Text)
	if clean == "" {
		return b.Text, true, true
	}

	callCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	translated, err := r.Translator.Translate(callCtx, clean, r.Source, r.Target)
	if err != nil {
		r.logger().Warnw("Cue translation failed, keeping original",
			"cue", b.Index,
			"text", truncateString(clean, 60),
			"error", err,
		)
		return b.Text, false, false
	}

	translated = cueText(translated)
	if translated == "" {
		r.logger().Warnw("Cue translation came back blank, keeping original",
			"cue", b.Index,
			"text", truncateString(clean, 60),
		)
		return b.Text, false, false
	}
	return translated, true, false
}

// cueText drops blank lines so a reply can never end the cue early.
func cueText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimRightFunc(strings.ReplaceAll(line, "\r", ""), unicode.IsSpace)
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// RewriteSRT parses content, translates it and renders it with the
// original cue numbers.
func (r *Rewriter) RewriteSRT(ctx context.Context, content string) (string, Stats) {
	blocks, stats := r.Rewrite(ctx, subtitle.Parse(content))
	return subtitle.RenderBlocks(blocks), stats
}

// RewriteFile translates the SRT at in and writes it to out.
func (r *Rewriter) RewriteFile(ctx context.Context, in, out string) (Stats, error) {
	file, err := subtitle.Open(in)
	if err != nil {
		return Stats{}, err
	}

	blocks, stats := r.Rewrite(ctx, file.Blocks())
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	for i, b := range blocks {
		if err := file.SetText(i, b.Text); err != nil {
			return stats, err
		}
	}
	if err := file.Write(out); err != nil {
		return stats, err
	}
	return stats, nil
}

func (r *Rewriter) logger() *logging.Logger {
	if r.Logger == nil {
		return logging.Nop()
	}
	return r.Logger
}
