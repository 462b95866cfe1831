package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/mgpai22/voxsrt/internal/subtitle"
)

// whisperMaxUpload is the Audio API request size limit.
const whisperMaxUpload = 25 << 20

// formats the Audio API accepts as uploads
var whisperFormats = map[string]bool{
	".flac": true,
	".m4a":  true,
	".mp3":  true,
	".mp4":  true,
	".mpeg": true,
	".mpga": true,
	".ogg":  true,
	".wav":  true,
	".webm": true,
}

// WhisperSupports reports whether path can be uploaded as-is.
func WhisperSupports(path string) bool {
	return whisperFormats[strings.ToLower(filepath.Ext(path))]
}

type whisperVerboseResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// RecognizeFile uploads the whole file and builds cues from the segment
// timestamps of the verbose_json response.
func (r *OpenAIRecognizer) RecognizeFile(
	ctx context.Context,
	path, languageHint string,
	duration time.Duration,
) ([]subtitle.Cue, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, otherError(fmt.Errorf("failed to open audio file: %w", err))
	}
	if info.Size() > whisperMaxUpload {
		return nil, otherError(fmt.Errorf(
			"%s is %d MB, over the %d MB upload limit; use a segmented timeline",
			filepath.Base(path), info.Size()>>20, whisperMaxUpload>>20,
		))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, otherError(fmt.Errorf("failed to open audio file: %w", err))
	}
	defer file.Close()

	params := openai.AudioTranscriptionNewParams{
		File:                   file,
		Model:                  openai.AudioModel(r.model),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
	}
	if lang := whisperLanguage(languageHint); lang != "" {
		params.Language = openai.String(lang)
	}
	if r.options.Prompt != "" {
		params.Prompt = openai.String(r.options.Prompt)
	}

	resp, err := r.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAI(err)
	}

	cues, err := parseVerboseJSON(resp.RawJSON(), duration)
	if err != nil {
		if errors.Is(err, ErrNoSpeech) {
			return nil, err
		}
		text := subtitle.NormalizeText(resp.Text)
		if text == "" {
			return nil, noSpeech()
		}
		return []subtitle.Cue{{Index: 1, Start: 0, End: duration, Text: text}}, nil
	}
	return cues, nil
}

// parseVerboseJSON turns Whisper segments into numbered cues. A response
// without segments becomes one cue over the reported or fallback duration.
func parseVerboseJSON(raw string, fallback time.Duration) ([]subtitle.Cue, error) {
	if raw == "" {
		return nil, errors.New("empty response")
	}

	var resp whisperVerboseResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse verbose_json response: %w", err)
	}

	if len(resp.Segments) == 0 {
		text := subtitle.NormalizeText(resp.Text)
		if text == "" {
			return nil, noSpeech()
		}
		end := fallback
		if resp.Duration > 0 {
			end = subtitle.FromSeconds(resp.Duration)
		}
		return []subtitle.Cue{{Index: 1, Start: 0, End: end, Text: text}}, nil
	}

	cues := make([]subtitle.Cue, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		text := subtitle.NormalizeText(seg.Text)
		if text == "" {
			continue
		}
		start := subtitle.FromSeconds(seg.Start)
		end := max(subtitle.FromSeconds(seg.End), start)
		cues = append(cues, subtitle.Cue{
			Index: len(cues) + 1,
			Start: start,
			End:   end,
			Text:  text,
		})
	}
	if len(cues) == 0 {
		return nil, noSpeech()
	}
	return cues, nil
}
