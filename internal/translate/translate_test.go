package translate

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFactoryReturnsGeminiTranslator(t *testing.T) {
	ctx := context.Background()
	translator, err := Factory(ctx, ProviderGemini, "fake-key", Options{})
	if err != nil {
		t.Fatalf("Factory(ProviderGemini) returned error: %v", err)
	}
	if _, ok := translator.(*GeminiTranslator); !ok {
		t.Errorf("expected *GeminiTranslator, got %T", translator)
	}
}

func TestFactoryReturnsOpenAITranslator(t *testing.T) {
	ctx := context.Background()
	translator, err := Factory(ctx, ProviderOpenAI, "fake-key", Options{})
	if err != nil {
		t.Fatalf("Factory(ProviderOpenAI) returned error: %v", err)
	}
	if _, ok := translator.(*OpenAITranslator); !ok {
		t.Errorf("expected *OpenAITranslator, got %T", translator)
	}
}

func TestFactoryReturnsAnthropicTranslator(t *testing.T) {
	ctx := context.Background()
	translator, err := Factory(ctx, ProviderAnthropic, "fake-key", Options{})
	if err != nil {
		t.Fatalf("Factory(ProviderAnthropic) returned error: %v", err)
	}
	if _, ok := translator.(*AnthropicTranslator); !ok {
		t.Errorf("expected *AnthropicTranslator, got %T", translator)
	}
}

func TestFactoryRequiresAPIKey(t *testing.T) {
	ctx := context.Background()
	for _, p := range []Provider{ProviderGemini, ProviderOpenAI, ProviderAnthropic} {
		if _, err := Factory(ctx, p, "", Options{}); !errors.Is(err, ErrNoBackend) {
			t.Errorf("Factory(%s) without key: expected ErrNoBackend, got %v", p, err)
		}
	}
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	ctx := context.Background()
	_, err := Factory(ctx, Provider("unknown"), "fake-key", Options{})
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestCheckAvailable(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		key      string
		wantErr  bool
	}{
		{"gemini with key", ProviderGemini, "k", false},
		{"anthropic with key", ProviderAnthropic, "k", false},
		{"openai blank key", ProviderOpenAI, "  ", true},
		{"unknown provider", Provider("googletrans"), "k", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAvailable(tt.provider, tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckAvailable() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrNoBackend) {
				t.Errorf("expected ErrNoBackend, got %v", err)
			}
		})
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	if got := ResolveAPIKey(ProviderAnthropic, ""); got != "env-key" {
		t.Errorf("ResolveAPIKey() = %q, want env-key", got)
	}
	if got := ResolveAPIKey(ProviderAnthropic, "flag-key"); got != "flag-key" {
		t.Errorf("ResolveAPIKey() = %q, want flag-key", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Hola a todos", "es", "en", "keep it informal")

	for _, want := range []string{"Spanish", "English", "Hola a todos", "keep it informal"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	noSource := BuildPrompt("Hola", "", "en", "")
	if !strings.HasPrefix(noSource, "Translate the following subtitle line to English") {
		t.Errorf("unexpected prompt without source: %q", noSource)
	}
	if strings.Contains(noSource, "Additional instructions") {
		t.Error("empty extra instructions should be omitted")
	}
}

func TestLanguageName(t *testing.T) {
	tests := map[string]string{
		"es":  "Spanish",
		"en":  "English",
		"":    "",
		"!!!": "!!!",
	}
	for in, want := range tests {
		if got := languageName(in); got != want {
			t.Errorf("languageName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello everyone\n", "Hello everyone"},
		{"```\nHello\n```", "Hello"},
		{"```text\nHello\n```", "Hello"},
		{`"Hello"`, "Hello"},
		{"Line one\nLine two", "Line one\nLine two"},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := cleanResponse(tt.in); got != tt.want {
			t.Errorf("cleanResponse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTranslationErrorUnwraps(t *testing.T) {
	err := error(&TranslationError{Provider: ProviderOpenAI, Err: ErrEmptyResponse})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Error("TranslationError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "openai") {
		t.Errorf("error should name the provider: %v", err)
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("short", 10); got != "short" {
		t.Errorf("truncateString() = %q", got)
	}
	if got := truncateString("a longer line", 6); got != "a long..." {
		t.Errorf("truncateString() = %q", got)
	}
	// cut lands right after a two-byte rune
	got := truncateString("¿Cómo están?", 3)
	if got != "¿Có..." || !utf8.ValidString(got) {
		t.Errorf("truncateString() = %q", got)
	}
}

// Integration test: only runs if OPENAI_API_KEY is set
func TestOpenAITranslatorIntegration(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set; skipping integration test")
	}

	ctx := context.Background()
	translator, err := NewOpenAITranslator(ctx, apiKey, Options{})
	if err != nil {
		t.Fatalf("NewOpenAITranslator error: %v", err)
	}

	out, err := translator.Translate(ctx, "Buenos días", "es", "en")
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if out == "" {
		t.Error("expected non-empty translation")
	}
}
