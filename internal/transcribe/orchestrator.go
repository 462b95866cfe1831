package transcribe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mgpai22/voxsrt/internal/audio"
	"github.com/mgpai22/voxsrt/internal/logging"
	"github.com/mgpai22/voxsrt/internal/subtitle"
)

// how cue times are derived from segments
type Timeline string

const (
	// each cue spans the segment's position in the decoded track
	TimelineSource Timeline = "source"
	// cues are laid end to end using segment durations
	TimelineCumulative Timeline = "cumulative"
	// cues are laid end to end, each lasting the mean segment duration
	TimelineMean Timeline = "mean"
	// the whole file is sent once and the backend times the cues
	TimelineWhisper Timeline = "whisper"
)

func ParseTimeline(s string) (Timeline, error) {
	switch t := Timeline(s); t {
	case TimelineSource, TimelineCumulative, TimelineMean, TimelineWhisper:
		return t, nil
	case "":
		return TimelineSource, nil
	default:
		return "", fmt.Errorf("unsupported timeline %q: use source, cumulative, mean, or whisper", s)
	}
}

// exports a segment for recognition, cleanup must always be called
type SegmentExporter interface {
	Export(seg audio.Segment) (*audio.Clip, func(), error)
}

// transcription outcome for one audio file
type Result struct {
	Cues       []subtitle.Cue
	Segments   int
	Recognized int
	NoSpeech   int
	Failed     int
	Duration   time.Duration
}

// Orchestrator turns segments into cues, dropping segments that fail.
type Orchestrator struct {
	Recognizer  Recognizer
	Exporter    SegmentExporter
	Language    string
	Timeline    Timeline
	Timeout     time.Duration // per recognition call, 0 disables
	Concurrency int
	Logger      *logging.Logger
}

// holds the outcome of one segment
type segmentResult struct {
	Index int
	Text  string
	Error error
}

// Transcribe recognizes every segment and returns cues in segment order.
// total is reported as Result.Duration. Individual segment failures never
// fail the call; only cancellation of ctx does.
func (o *Orchestrator) Transcribe(
	ctx context.Context,
	segments []audio.Segment,
	total time.Duration,
) (*Result, error) {
	res := &Result{Segments: len(segments), Duration: total}
	if len(segments) == 0 {
		return res, nil
	}

	results := o.recognizeAll(ctx, segments)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spans := o.spans(segments)
	for i, r := range results {
		if r.Error != nil {
			switch KindOf(r.Error) {
			case KindNoSpeech:
				res.NoSpeech++
				o.logger().Infow("No speech in segment",
					"segment", i,
					"start", subtitle.FormatTimestamp(segments[i].Start),
				)
			default:
				res.Failed++
				o.logger().Warnw("Segment recognition failed",
					"segment", i,
					"start", subtitle.FormatTimestamp(segments[i].Start),
					"kind", KindOf(r.Error).String(),
					"error", r.Error,
				)
			}
			continue
		}

		res.Recognized++
		res.Cues = append(res.Cues, subtitle.Cue{
			Index: len(res.Cues) + 1,
			Start: spans[i][0],
			End:   spans[i][1],
			Text:  r.Text,
		})
	}
	return res, nil
}

// TranscribeFile sends the whole file to a FileRecognizer and keeps its
// cue timing. No speech yields an empty result; any other recognition
// failure fails the file.
func (o *Orchestrator) TranscribeFile(
	ctx context.Context,
	path string,
	total time.Duration,
) (*Result, error) {
	fr, ok := o.Recognizer.(FileRecognizer)
	if !ok {
		return nil, fmt.Errorf("%s cannot transcribe whole files", o.Recognizer.Name())
	}

	callCtx := ctx
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	o.logger().Debugw("Recognizing whole file",
		"backend", o.Recognizer.Name(),
		"duration", total.String(),
	)

	res := &Result{Duration: total}
	cues, err := fr.RecognizeFile(callCtx, path, o.Language, total)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if KindOf(err) == KindNoSpeech {
			res.NoSpeech = 1
			return res, nil
		}
		return nil, err
	}

	res.Segments = len(cues)
	res.Recognized = len(cues)
	res.Cues = cues
	return res, nil
}

// recognizeAll runs up to Concurrency workers and returns results indexed
// by segment, independent of completion order.
func (o *Orchestrator) recognizeAll(
	ctx context.Context,
	segments []audio.Segment,
) []segmentResult {
	results := make([]segmentResult, len(segments))

	concurrency := o.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency == 1 {
		for i, seg := range segments {
			if ctx.Err() != nil {
				break
			}
			results[i] = o.recognizeOne(ctx, i, seg)
		}
		return results
	}

	workChan := make(chan int)
	resultChan := make(chan segmentResult, len(segments))

	var wg sync.WaitGroup
	for w := 0; w < concurrency && w < len(segments); w++ {
		wg.Go(func() {
			for i := range workChan {
				resultChan <- o.recognizeOne(ctx, i, segments[i])
			}
		})
	}

	go func() {
		defer close(workChan)
		for i := range segments {
			select {
			case <-ctx.Done():
				return
			case workChan <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for r := range resultChan {
		results[r.Index] = r
	}
	return results
}

func (o *Orchestrator) recognizeOne(
	ctx context.Context,
	index int,
	seg audio.Segment,
) segmentResult {
	clip, cleanup, err := o.Exporter.Export(seg)
	defer cleanup()
	if err != nil {
		return segmentResult{Index: index, Error: otherError(fmt.Errorf("export segment: %w", err))}
	}

	callCtx := ctx
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	o.logger().Debugw("Recognizing segment",
		"segment", index,
		"backend", o.Recognizer.Name(),
		"duration", seg.Duration().String(),
	)

	text, err := o.Recognizer.Recognize(callCtx, clip, o.Language)
	if err != nil {
		return segmentResult{Index: index, Error: err}
	}
	text = subtitle.NormalizeText(text)
	if text == "" {
		return segmentResult{Index: index, Error: noSpeech()}
	}
	return segmentResult{Index: index, Text: text}
}

// spans assigns [start, end) times to every segment under the timeline.
func (o *Orchestrator) spans(segments []audio.Segment) [][2]time.Duration {
	out := make([][2]time.Duration, len(segments))
	switch o.Timeline {
	case TimelineMean:
		step := meanDuration(segments)
		for i := range segments {
			out[i] = [2]time.Duration{
				time.Duration(i) * step,
				time.Duration(i+1) * step,
			}
		}
	case TimelineCumulative:
		var cursor time.Duration
		for i, seg := range segments {
			out[i] = [2]time.Duration{cursor, cursor + seg.Duration()}
			cursor += seg.Duration()
		}
	default:
		for i, seg := range segments {
			out[i] = [2]time.Duration{seg.Start, seg.End}
		}
	}
	return out
}

// meanDuration is the integer-millisecond mean over all segments, including
// the ones that will be dropped.
func meanDuration(segments []audio.Segment) time.Duration {
	if len(segments) == 0 {
		return 0
	}
	var sum int64
	for _, seg := range segments {
		sum += seg.Duration().Milliseconds()
	}
	return subtitle.FromMillis(sum / int64(len(segments)))
}

func (o *Orchestrator) logger() *logging.Logger {
	if o.Logger == nil {
		return logging.Nop()
	}
	return o.Logger
}
