package translate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// interface for text translation
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// translation service provider
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// ErrNoBackend is returned when no translation backend is usable.
var ErrNoBackend = errors.New("no translation backend available")

// ErrEmptyResponse is wrapped when a backend answers without text.
var ErrEmptyResponse = errors.New("empty translation response")

// TranslationError wraps any failed translation call.
type TranslationError struct {
	Provider Provider
	Err      error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("%s translation failed: %v", e.Provider, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

type Options struct {
	Model  string
	Prompt string
}

// creates Translator based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Translator, error) {
	switch provider {
	case ProviderGemini:
		return NewGeminiTranslator(ctx, apiKey, opts)
	case ProviderOpenAI:
		return NewOpenAITranslator(ctx, apiKey, opts)
	case ProviderAnthropic:
		return NewAnthropicTranslator(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported translation provider: %s", provider)
	}
}

// APIKeyEnv names the environment variable holding provider's key.
func APIKeyEnv(provider Provider) string {
	switch provider {
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// CheckAvailable reports ErrNoBackend when provider cannot be used.
func CheckAvailable(provider Provider, apiKey string) error {
	env := APIKeyEnv(provider)
	if env == "" {
		return fmt.Errorf("%w: unknown provider %q", ErrNoBackend, provider)
	}
	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("%w: %s requires --api-key or %s", ErrNoBackend, provider, env)
	}
	return nil
}

// ResolveAPIKey prefers an explicit key over the provider's env variable.
func ResolveAPIKey(provider Provider, explicit string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	if env := APIKeyEnv(provider); env != "" {
		return os.Getenv(env)
	}
	return ""
}

// BuildPrompt creates the translation prompt for LLM providers
func BuildPrompt(text, source, target, extra string) string {
	var sb strings.Builder

	if src := languageName(source); src != "" {
		sb.WriteString(fmt.Sprintf(
			"Translate the following %s subtitle line to %s.\n\n",
			src,
			languageName(target),
		))
	} else {
		sb.WriteString(fmt.Sprintf(
			"Translate the following subtitle line to %s.\n\n",
			languageName(target),
		))
	}

	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. Translate ONLY the text, preserving the meaning and tone.\n")
	sb.WriteString("2. Keep line breaks in the same positions.\n")
	sb.WriteString("3. Return ONLY the translated text.\n")
	sb.WriteString("4. Do not add quotes, notes, or markdown formatting.\n\n")

	if extra != "" {
		sb.WriteString(fmt.Sprintf("Additional instructions: %s\n\n", extra))
	}

	sb.WriteString("Text:\n")
	sb.WriteString(text)

	return sb.String()
}

// languageName renders a tag like "es" as "Spanish"; unknown tags are
// returned as given.
func languageName(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Tags().Name(t); name != "" {
		return name
	}
	return tag
}

var fenceRegex = regexp.MustCompile("```(?:text|plaintext)?[ \t]*\n?")

// cleanResponse strips the wrappers models put around plain answers.
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	s = fenceRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// truncateString cuts s to maxLen runes for log output.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
