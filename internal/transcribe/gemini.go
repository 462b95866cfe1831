package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"google.golang.org/genai"

	"github.com/mgpai22/voxsrt/internal/audio"
)

// reply the model is told to give for clips without speech
const noSpeechMarker = "[NO_SPEECH]"

// implements Recognizer using Google Gemini
type GeminiRecognizer struct {
	client  *genai.Client
	model   string
	options Options
}

func NewGeminiRecognizer(ctx context.Context, opts Options) (*GeminiRecognizer, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrNoBackend)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiRecognizer{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

func (r *GeminiRecognizer) Name() string { return string(ProviderGemini) }

func (r *GeminiRecognizer) Recognize(
	ctx context.Context,
	clip *audio.Clip,
	languageHint string,
) (string, error) {
	if clip == nil || len(clip.Data) == 0 {
		return "", noSpeech()
	}

	parts := []*genai.Part{
		genai.NewPartFromText(r.buildPrompt(languageHint)),
		genai.NewPartFromBytes(clip.Data, clip.MIMEType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := r.client.Models.GenerateContent(ctx, r.model, contents, nil)
	if err != nil {
		return "", classifyGemini(err)
	}

	text := cleanTranscript(responseText(result))
	if text == "" || text == noSpeechMarker {
		return "", noSpeech()
	}
	return text, nil
}

// creates the prompt for transcription
func (r *GeminiRecognizer) buildPrompt(languageHint string) string {
	var sb strings.Builder

	sb.WriteString("Transcribe the speech in this audio clip verbatim")
	if name := languageName(languageHint); name != "" {
		sb.WriteString(fmt.Sprintf(". The speaker uses %s; keep the transcript in that language", name))
	}
	sb.WriteString(".\n")
	sb.WriteString("Reply with the spoken words only, as plain text on a single line. ")
	sb.WriteString("Do not add timestamps, speaker labels, quotes, or commentary. ")
	sb.WriteString(fmt.Sprintf("If the clip contains no intelligible speech, reply with exactly %s.", noSpeechMarker))

	if r.options.Prompt != "" {
		sb.WriteString(fmt.Sprintf("\n\nAdditional context: %s", r.options.Prompt))
	}
	return sb.String()
}

func responseText(result *genai.GenerateContentResponse) string {
	if result == nil {
		return ""
	}
	var text string
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				text += part.Text
			}
		}
		if text != "" {
			break
		}
	}
	return text
}

func cleanTranscript(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// English display name of a BCP 47 tag, e.g. "Latin American Spanish"
func languageName(hint string) string {
	tag, err := language.Parse(strings.TrimSpace(hint))
	if err != nil {
		return ""
	}
	return display.English.Tags().Name(tag)
}

func classifyGemini(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(err, apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return classifyStatus(err, apiErrPtr.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return unavailable(err)
	}
	return otherError(err)
}

func (r *GeminiRecognizer) Close() error {
	return nil
}
