package translate

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// implements Translator using OpenAI chat completions
type OpenAITranslator struct {
	client  openai.Client
	model   string
	options Options
}

func NewOpenAITranslator(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*OpenAITranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrNoBackend)
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	model := opts.Model
	if model == "" {
		model = "gpt-5-mini"
	}

	return &OpenAITranslator{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

func (t *OpenAITranslator) Translate(
	ctx context.Context,
	text, source, target string,
) (string, error) {
	prompt := BuildPrompt(text, source, target, t.options.Prompt)

	completion, err := t.client.Chat.Completions.New(
		ctx,
		openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: t.model,
		},
	)
	if err != nil {
		return "", &TranslationError{Provider: ProviderOpenAI, Err: err}
	}

	if completion == nil || len(completion.Choices) == 0 {
		return "", &TranslationError{Provider: ProviderOpenAI, Err: ErrEmptyResponse}
	}

	out := cleanResponse(completion.Choices[0].Message.Content)
	if out == "" {
		return "", &TranslationError{Provider: ProviderOpenAI, Err: ErrEmptyResponse}
	}
	return out, nil
}

func (t *OpenAITranslator) Close() error {
	return nil
}
