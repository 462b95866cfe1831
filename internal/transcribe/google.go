package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mgpai22/voxsrt/internal/audio"
)

// implements Recognizer using Google Cloud Speech-to-Text
type GoogleRecognizer struct {
	client  *speech.Client
	model   string
	options Options
}

func NewGoogleRecognizer(ctx context.Context, opts Options) (*GoogleRecognizer, error) {
	client, err := speech.NewClient(ctx, clientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("%w: speech client: %v", ErrNoBackend, err)
	}
	return &GoogleRecognizer{
		client:  client,
		model:   opts.Model,
		options: opts,
	}, nil
}

func (r *GoogleRecognizer) Name() string { return string(ProviderGoogle) }

func (r *GoogleRecognizer) Recognize(
	ctx context.Context,
	clip *audio.Clip,
	languageHint string,
) (string, error) {
	if clip == nil || len(clip.Data) == 0 {
		return "", noSpeech()
	}

	longRunning, err := googleMode(clip)
	if err != nil {
		return "", otherError(err)
	}

	config := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            int32(clip.SampleRate),
		AudioChannelCount:          int32(clip.Channels),
		LanguageCode:               languageHint,
		Model:                      r.model,
		EnableAutomaticPunctuation: true,
	}
	content := &speechpb.RecognitionAudio{
		AudioSource: &speechpb.RecognitionAudio_Content{Content: clip.Data},
	}

	var results []*speechpb.SpeechRecognitionResult
	if longRunning {
		op, err := r.client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
			Config: config,
			Audio:  content,
		})
		if err != nil {
			return "", classifyGRPC(err)
		}
		resp, err := op.Wait(ctx)
		if err != nil {
			return "", classifyGRPC(err)
		}
		results = resp.GetResults()
	} else {
		resp, err := r.client.Recognize(ctx, &speechpb.RecognizeRequest{
			Config: config,
			Audio:  content,
		})
		if err != nil {
			return "", classifyGRPC(err)
		}
		results = resp.GetResults()
	}

	text := joinResults(results)
	if text == "" {
		return "", noSpeech()
	}
	return text, nil
}

const (
	// longest audio the synchronous Recognize call accepts
	googleSyncLimit = time.Minute
	// request size cap for inline audio content
	googleInlineLimit = 10 << 20
	wavHeaderSize     = 44
)

// googleMode picks long-running recognition for clips past the sync limit
// and rejects clips too large to send inline.
func googleMode(clip *audio.Clip) (bool, error) {
	d := clipDuration(clip)
	if len(clip.Data) > googleInlineLimit {
		return false, fmt.Errorf(
			"segment of %s is %d MB, over the %d MB inline request limit; lower --min-silence to split it",
			d.Round(time.Second), len(clip.Data)>>20, googleInlineLimit>>20,
		)
	}
	return d > googleSyncLimit, nil
}

// clipDuration estimates the length of a 16-bit PCM WAV clip.
func clipDuration(clip *audio.Clip) time.Duration {
	bytesPerSecond := clip.SampleRate * clip.Channels * 2
	if bytesPerSecond <= 0 || len(clip.Data) <= wavHeaderSize {
		return 0
	}
	samples := int64(len(clip.Data) - wavHeaderSize)
	return time.Duration(samples * int64(time.Second) / int64(bytesPerSecond))
}

// joinResults keeps the top alternative of each result.
func joinResults(results []*speechpb.SpeechRecognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, res := range results {
		alts := res.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func classifyGRPC(err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded,
		codes.Unauthenticated, codes.PermissionDenied:
		return unavailable(err)
	default:
		return otherError(err)
	}
}

func (r *GoogleRecognizer) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func clientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	opts := []option.ClientOption{}
	if creds == "" {
		return opts
	}
	if strings.HasPrefix(creds, "{") {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	} else {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return opts
}
