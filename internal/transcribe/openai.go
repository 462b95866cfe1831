package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/text/language"

	"github.com/mgpai22/voxsrt/internal/audio"
)

// implements Recognizer using the OpenAI Audio API
type OpenAIRecognizer struct {
	client  openai.Client
	model   string
	options Options
}

func NewOpenAIRecognizer(
	ctx context.Context,
	opts Options,
) (*OpenAIRecognizer, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrNoBackend)
	}

	client := openai.NewClient(option.WithAPIKey(opts.APIKey))

	model := opts.Model
	if model == "" {
		model = "whisper-1"
	}

	return &OpenAIRecognizer{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

func (r *OpenAIRecognizer) Name() string { return string(ProviderOpenAI) }

func (r *OpenAIRecognizer) Recognize(
	ctx context.Context,
	clip *audio.Clip,
	languageHint string,
) (string, error) {
	if clip == nil || clip.Path == "" {
		return "", otherError(errors.New("clip has no file"))
	}

	file, err := os.Open(clip.Path)
	if err != nil {
		return "", otherError(fmt.Errorf("failed to open audio file: %w", err))
	}
	defer file.Close()

	params := openai.AudioTranscriptionNewParams{
		File:           file,
		Model:          openai.AudioModel(r.model),
		ResponseFormat: openai.AudioResponseFormatJSON,
	}
	if lang := whisperLanguage(languageHint); lang != "" {
		params.Language = openai.String(lang)
	}
	if r.options.Prompt != "" {
		params.Prompt = openai.String(r.options.Prompt)
	}

	resp, err := r.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAI(err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", noSpeech()
	}
	return text, nil
}

// whisperLanguage reduces a BCP 47 tag such as es-419 to its ISO-639-1 base.
func whisperLanguage(hint string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return ""
	}
	tag, err := language.Parse(hint)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

func classifyOpenAI(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(err, apiErr.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return unavailable(err)
	}
	return otherError(err)
}

func (r *OpenAIRecognizer) Close() error {
	return nil
}
