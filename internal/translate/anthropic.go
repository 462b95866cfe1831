package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicMaxTokens bounds the reply for a single cue.
const anthropicMaxTokens = 1024

// AnthropicTranslator translates one cue per Messages call.
type AnthropicTranslator struct {
	client  anthropic.Client
	model   anthropic.Model
	options Options
}

func NewAnthropicTranslator(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*AnthropicTranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrNoBackend)
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	model := anthropic.Model(opts.Model)
	if opts.Model == "" {
		model = anthropic.ModelClaudeHaiku4_5
	}

	return &AnthropicTranslator{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

func (t *AnthropicTranslator) Translate(
	ctx context.Context,
	text, source, target string,
) (string, error) {
	prompt := BuildPrompt(text, source, target, t.options.Prompt)

	message, err := t.client.Messages.New(
		ctx,
		anthropic.MessageNewParams{
			Model:     t.model,
			MaxTokens: anthropicMaxTokens,
			System: []anthropic.TextBlockParam{
				{Text: "You translate subtitle lines. Reply with the translation only."},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(
					anthropic.NewTextBlock(prompt),
				),
			},
		},
	)
	if err != nil {
		return "", &TranslationError{Provider: ProviderAnthropic, Err: err}
	}

	return t.parseResponse(message)
}

func (t *AnthropicTranslator) parseResponse(message *anthropic.Message) (string, error) {
	if message == nil || len(message.Content) == 0 {
		return "", &TranslationError{Provider: ProviderAnthropic, Err: ErrEmptyResponse}
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if message.StopReason == anthropic.StopReasonMaxTokens {
		return "", &TranslationError{
			Provider: ProviderAnthropic,
			Err:      fmt.Errorf("reply truncated after %d tokens", anthropicMaxTokens),
		}
	}

	out := cleanResponse(sb.String())
	if out == "" {
		return "", &TranslationError{Provider: ProviderAnthropic, Err: ErrEmptyResponse}
	}
	return out, nil
}

func (t *AnthropicTranslator) Close() error {
	return nil
}
