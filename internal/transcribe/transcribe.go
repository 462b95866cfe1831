package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mgpai22/voxsrt/internal/audio"
	"github.com/mgpai22/voxsrt/internal/subtitle"
)

// interface for speech-to-text backends
type Recognizer interface {
	Recognize(ctx context.Context, clip *audio.Clip, languageHint string) (string, error)
	Name() string
}

// FileRecognizer transcribes a whole file and times the cues itself.
type FileRecognizer interface {
	RecognizeFile(ctx context.Context, path, languageHint string, duration time.Duration) ([]subtitle.Cue, error)
}

// speech-to-text provider
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// ErrNoBackend is returned when no speech backend is usable.
var ErrNoBackend = errors.New("no speech recognition backend available")

// recognizer options
type Options struct {
	APIKey string // unused by google, which reads application default credentials
	Model  string
	Prompt string
}

// creates a Recognizer for provider
func Factory(
	ctx context.Context,
	provider Provider,
	opts Options,
) (Recognizer, error) {
	switch provider {
	case ProviderGoogle:
		return NewGoogleRecognizer(ctx, opts)
	case ProviderOpenAI:
		return NewOpenAIRecognizer(ctx, opts)
	case ProviderGemini:
		return NewGeminiRecognizer(ctx, opts)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// APIKeyEnv names the environment variable holding provider's key.
func APIKeyEnv(provider Provider) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// CheckAvailable reports ErrNoBackend when provider cannot be used with the
// given key. Google relies on application default credentials and is
// accepted as long as they are configured or discoverable.
func CheckAvailable(provider Provider, apiKey string) error {
	switch provider {
	case ProviderOpenAI, ProviderGemini:
		if strings.TrimSpace(apiKey) == "" {
			return fmt.Errorf(
				"%w: %s requires --api-key or %s",
				ErrNoBackend,
				provider,
				APIKeyEnv(provider),
			)
		}
		return nil
	case ProviderGoogle:
		return nil
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrNoBackend, provider)
	}
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
