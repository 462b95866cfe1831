package translate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mgpai22/voxsrt/internal/cache"
	"github.com/mgpai22/voxsrt/internal/subtitle"
)

// fakeTranslator maps source text to translations; anything missing fails.
type fakeTranslator struct {
	mu    sync.Mutex
	table map[string]string
	calls []string
	delay time.Duration
}

func (f *fakeTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", &TranslationError{Provider: "fake", Err: ctx.Err()}
		}
	}
	if out, ok := f.table[text]; ok {
		return out, nil
	}
	return "", &TranslationError{Provider: "fake", Err: errors.New("connection refused")}
}

const spanishSRT = "1\n00:00:01,500 --> 00:00:03,200\nHola a todos\n\n" +
	"2\n00:00:04,000 --> 00:00:05,000\n¿Cómo están?\n\n" +
	"3\n00:00:06,000 --> 00:00:07,250\nMuy bien\n"

func TestRewriteSRTKeepsTiming(t *testing.T) {
	tr := &fakeTranslator{table: map[string]string{
		"Hola a todos": "Hello everyone",
		"¿Cómo están?": "How are you?",
		"Muy bien":     "Very good",
	}}
	r := &Rewriter{Translator: tr, Source: "es", Target: "en"}

	got, stats := r.RewriteSRT(context.Background(), spanishSRT)
	want := "1\n00:00:01,500 --> 00:00:03,200\nHello everyone\n\n" +
		"2\n00:00:04,000 --> 00:00:05,000\nHow are you?\n\n" +
		"3\n00:00:06,000 --> 00:00:07,250\nVery good\n"
	if got != want {
		t.Errorf("RewriteSRT() =\n%q\nwant\n%q", got, want)
	}
	if stats.Cues != 3 || stats.Translated != 3 || stats.Failed != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRewriteFailureKeepsOriginal(t *testing.T) {
	tr := &fakeTranslator{table: map[string]string{
		"Hola a todos": "Hello everyone",
		"Muy bien":     "Very good",
	}}
	r := &Rewriter{Translator: tr, Source: "es", Target: "en"}

	got, stats := r.RewriteSRT(context.Background(), spanishSRT)
	if !strings.Contains(got, "2\n00:00:04,000 --> 00:00:05,000\n¿Cómo están?") {
		t.Errorf("failed cue should keep original text:\n%s", got)
	}
	if !strings.Contains(got, "Very good") {
		t.Errorf("cues after a failure should still be translated:\n%s", got)
	}
	if stats.Failed != 1 || stats.Translated != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRewriteUnreachableTranslator(t *testing.T) {
	tr := &fakeTranslator{table: map[string]string{}}
	r := &Rewriter{Translator: tr, Source: "es", Target: "en"}

	got, stats := r.RewriteSRT(context.Background(), spanishSRT)
	if got != spanishSRT {
		t.Errorf("all cues should be unchanged:\n%q", got)
	}
	if stats.Failed != 3 {
		t.Errorf("expected 3 failures, got %+v", stats)
	}
	if len(tr.calls) != 3 {
		t.Errorf("every cue should be attempted, got %d calls", len(tr.calls))
	}
}

func TestRewriteEmptyCueUnchanged(t *testing.T) {
	tr := &fakeTranslator{table: map[string]string{"Hola": "Hello"}}
	r := &Rewriter{Translator: tr, Source: "es", Target: "en"}

	blocks := []subtitle.Block{
		{Index: 7, Timing: "00:00:01,000 --> 00:00:02,000", Text: "  "},
		{Index: 9, Timing: "00:00:03,000 --> 00:00:04,000", Text: "  Hola \n"},
	}
	out, stats := r.Rewrite(context.Background(), blocks)

	if out[0] != blocks[0] {
		t.Errorf("empty cue changed: %+v", out[0])
	}
	if out[1].Index != 9 || out[1].Timing != blocks[1].Timing || out[1].Text != "Hello" {
		t.Errorf("unexpected block: %+v", out[1])
	}
	if len(tr.calls) != 1 || tr.calls[0] != "Hola" {
		t.Errorf("translator should see trimmed text once, got %q", tr.calls)
	}
	if stats.Empty != 1 || stats.Translated != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if blocks[1].Text != "  Hola \n" {
		t.Error("input blocks must not be modified")
	}
}

func TestRewriteDropsBlankLinesFromTranslation(t *testing.T) {
	tr := &fakeTranslator{table: map[string]string{
		"Hola\nMundo": "Hello\n\n  \r\nWorld  ",
		"Adiós":       "\n \n",
	}}
	r := &Rewriter{Translator: tr, Source: "es", Target: "en"}

	in := "1\n00:00:01,000 --> 00:00:02,000\nHola\nMundo\n\n" +
		"2\n00:00:03,000 --> 00:00:04,000\nAdiós\n\n" +
		"3\n00:00:05,000 --> 00:00:06,000\nFin\n"
	got, stats := r.RewriteSRT(context.Background(), in)

	blocks := subtitle.Parse(got)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks after reparse, got %d:\n%s", len(blocks), got)
	}
	if blocks[0].Text != "Hello\nWorld" {
		t.Errorf("block 1 text = %q", blocks[0].Text)
	}
	if blocks[1].Text != "Adiós" {
		t.Errorf("blank reply should keep original, got %q", blocks[1].Text)
	}
	if blocks[2].Timing != "00:00:05,000 --> 00:00:06,000" {
		t.Errorf("block 3 timing = %q", blocks[2].Timing)
	}
	if stats.Translated != 1 || stats.Failed != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestCueText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello", "Hello"},
		{"Hello\n\nWorld", "Hello\nWorld"},
		{"Hello\r\n\r\nWorld\r\n", "Hello\nWorld"},
		{"  indented\n\t\nnext  ", "  indented\nnext"},
		{"\n\n", ""},
	}
	for _, tt := range tests {
		if got := cueText(tt.in); got != tt.want {
			t.Errorf("cueText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRewriteConcurrentKeepsOrder(t *testing.T) {
	table := map[string]string{}
	var blocks []subtitle.Block
	for i := 1; i <= 20; i++ {
		src := strings.Repeat("a", i)
		table[src] = strings.Repeat("b", i)
		blocks = append(blocks, subtitle.Block{
			Index:  i,
			Timing: subtitle.FormatTiming(time.Duration(i)*time.Second, time.Duration(i+1)*time.Second),
			Text:   src,
		})
	}
	tr := &fakeTranslator{table: table, delay: time.Millisecond}
	r := &Rewriter{Translator: tr, Source: "es", Target: "en", Concurrency: 5}

	out, stats := r.Rewrite(context.Background(), blocks)
	for i, b := range out {
		if b.Index != i+1 || b.Text != strings.Repeat("b", i+1) {
			t.Errorf("block %d out of order: %+v", i, b)
		}
	}
	if stats.Translated != 20 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRewriteTimeoutKeepsOriginal(t *testing.T) {
	tr := &fakeTranslator{table: map[string]string{"Hola": "Hello"}, delay: time.Second}
	r := &Rewriter{Translator: tr, Source: "es", Target: "en", Timeout: 10 * time.Millisecond}

	out, stats := r.Rewrite(context.Background(), []subtitle.Block{
		{Index: 1, Timing: "00:00:01,000 --> 00:00:02,000", Text: "Hola"},
	})
	if out[0].Text != "Hola" || stats.Failed != 1 {
		t.Errorf("timed out cue should keep original: %+v, %+v", out[0], stats)
	}
}

func TestRewriteFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "srt_spanish", "clase.srt")
	out := filepath.Join(dir, "srt_english", "clase.srt")
	if err := os.MkdirAll(filepath.Dir(in), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(in, []byte(spanishSRT), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := &fakeTranslator{table: map[string]string{"Hola a todos": "Hello everyone"}}
	r := &Rewriter{Translator: tr, Source: "es", Target: "en"}

	stats, err := r.RewriteFile(context.Background(), in, out)
	if err != nil {
		t.Fatalf("RewriteFile() error: %v", err)
	}
	if stats.Translated != 1 || stats.Failed != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "1\n00:00:01,500 --> 00:00:03,200\nHello everyone\n\n") {
		t.Errorf("unexpected output:\n%s", data)
	}

	// running again over an existing directory is fine
	if _, err := r.RewriteFile(context.Background(), in, out); err != nil {
		t.Errorf("second RewriteFile() error: %v", err)
	}
}

func TestRewriteFileMissingInput(t *testing.T) {
	r := &Rewriter{Translator: &fakeTranslator{}}
	if _, err := r.RewriteFile(context.Background(), filepath.Join(t.TempDir(), "nope.srt"), "out.srt"); err == nil {
		t.Error("expected error for missing input")
	}
}

type countingStore struct {
	data   map[string]string
	gets   atomic.Int32
	broken bool
}

func (s *countingStore) Get(_ context.Context, key string) (string, bool, error) {
	s.gets.Add(1)
	if s.broken {
		return "", false, errors.New("database is locked")
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *countingStore) Put(_ context.Context, key, value string) error {
	if s.broken {
		return errors.New("database is locked")
	}
	s.data[key] = value
	return nil
}

func (s *countingStore) Close() error { return nil }

func TestCachedTranslator(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTranslator{table: map[string]string{"Hola": "Hello"}}
	store := &countingStore{data: map[string]string{}}
	cached := NewCachedTranslator(tr, store, "gemini/gemini-2.5-flash", nil)

	for i := 0; i < 3; i++ {
		out, err := cached.Translate(ctx, "Hola", "es", "en")
		if err != nil || out != "Hello" {
			t.Fatalf("Translate() = %q, %v", out, err)
		}
	}
	if len(tr.calls) != 1 {
		t.Errorf("backend called %d times, want 1", len(tr.calls))
	}

	// failures are not cached
	if _, err := cached.Translate(ctx, "Adiós", "es", "en"); err == nil {
		t.Error("expected error from backend")
	}
	if len(store.data) != 1 {
		t.Errorf("expected 1 cached entry, got %d", len(store.data))
	}
}

func TestCachedTranslatorIgnoresStoreErrors(t *testing.T) {
	tr := &fakeTranslator{table: map[string]string{"Hola": "Hello"}}
	cached := NewCachedTranslator(tr, &countingStore{broken: true}, "openai", nil)

	out, err := cached.Translate(context.Background(), "Hola", "es", "en")
	if err != nil || out != "Hello" {
		t.Errorf("Translate() = %q, %v", out, err)
	}
}

func TestCachedTranslatorWithSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := cache.OpenSQLite(ctx, filepath.Join(t.TempDir(), "tr.db"), 0)
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	defer store.Close()

	tr := &fakeTranslator{table: map[string]string{"Muy bien": "Very good"}}
	cached := NewCachedTranslator(tr, store, "anthropic", nil)
	r := &Rewriter{Translator: cached, Source: "es", Target: "en"}

	first, _ := r.RewriteSRT(ctx, spanishSRT)
	second, _ := r.RewriteSRT(ctx, spanishSRT)
	if first != second {
		t.Errorf("cached run differs:\n%s\n%s", first, second)
	}
	hits := 0
	for _, c := range tr.calls {
		if c == "Muy bien" {
			hits++
		}
	}
	if hits != 1 {
		t.Errorf("backend saw %q %d times, want 1", "Muy bien", hits)
	}
}

func TestNewCachedTranslatorWithoutStore(t *testing.T) {
	tr := &fakeTranslator{}
	if got := NewCachedTranslator(tr, nil, "x", nil); got != Translator(tr) {
		t.Error("nil store should return the translator unchanged")
	}
}
