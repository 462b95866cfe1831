package audio

import (
	"fmt"
	"math"
	"time"

	"github.com/gopxl/beep"
)

// silence detection settings
type SplitOptions struct {
	MinSilenceLen time.Duration // shortest pause that splits speech
	SilenceThresh float64       // dBFS at or below which a window is silent
	KeepSilence   time.Duration // padding kept around each segment
	SeekStep      time.Duration // stride of the detection window
}

func DefaultSplitOptions() SplitOptions {
	return SplitOptions{
		MinSilenceLen: 500 * time.Millisecond,
		SilenceThresh: -40,
		KeepSilence:   100 * time.Millisecond,
		SeekStep:      time.Millisecond,
	}
}

func (o SplitOptions) validate() error {
	if o.MinSilenceLen < time.Millisecond {
		return fmt.Errorf("min silence length must be at least 1ms, got %v", o.MinSilenceLen)
	}
	if o.KeepSilence < 0 {
		return fmt.Errorf("keep silence must not be negative, got %v", o.KeepSilence)
	}
	if o.SeekStep < time.Millisecond {
		return fmt.Errorf("seek step must be at least 1ms, got %v", o.SeekStep)
	}
	if math.IsNaN(o.SilenceThresh) {
		return fmt.Errorf("silence threshold must be a number")
	}
	return nil
}

// contiguous speech region of a Track
type Segment struct {
	Index int
	Start time.Duration
	End   time.Duration
	From  int // first sample
	To    int // one past the last sample

	track *Track
}

func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// Streamer yields the segment's samples from the parent track.
func (s Segment) Streamer() beep.StreamSeeker {
	return s.track.Buffer.Streamer(s.From, s.To)
}

func (s Segment) Format() beep.Format {
	return s.track.Format()
}

// SplitOnSilence cuts the track at pauses of at least MinSilenceLen whose
// RMS stays at or below SilenceThresh. Each speech range is padded by up to
// KeepSilence on both sides; where padding of neighbours would overlap the
// overlap is split at its midpoint. A silent or empty track yields no
// segments.
func SplitOnSilence(track *Track, opts SplitOptions) ([]Segment, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if track == nil || track.Buffer == nil || track.Len() == 0 {
		return []Segment{}, nil
	}

	env := newEnvelope(track)
	if env.lenMs == 0 {
		return []Segment{}, nil
	}

	minSilence := opts.MinSilenceLen.Milliseconds()
	seekStep := opts.SeekStep.Milliseconds()
	keep := opts.KeepSilence.Milliseconds()
	thresh := dbToAmplitude(opts.SilenceThresh)

	var speech [][2]int64
	if env.lenMs < minSilence {
		// too short for a full window: judge it as one
		if env.rms(0, env.lenMs) <= thresh {
			return []Segment{}, nil
		}
		speech = [][2]int64{{0, env.lenMs}}
	} else {
		silent := detectSilence(env, minSilence, seekStep, thresh)
		speech = invertRanges(silent, env.lenMs)
	}

	padded := padRanges(speech, keep, env.lenMs)

	segments := make([]Segment, 0, len(padded))
	for _, r := range padded {
		from, to := env.sampleAt(r[0]), env.sampleAt(r[1])
		if to <= from {
			continue
		}
		segments = append(segments, Segment{
			Index: len(segments),
			Start: time.Duration(r[0]) * time.Millisecond,
			End:   time.Duration(r[1]) * time.Millisecond,
			From:  from,
			To:    to,
			track: track,
		})
	}
	return segments, nil
}

// detectSilence returns merged [start, end) millisecond ranges of silence.
func detectSilence(env *envelope, minSilence, seekStep int64, thresh float64) [][2]int64 {
	lastStart := env.lenMs - minSilence

	var starts []int64
	check := func(i int64) {
		if env.rms(i, i+minSilence) <= thresh {
			starts = append(starts, i)
		}
	}
	for i := int64(0); i <= lastStart; i += seekStep {
		check(i)
	}
	if lastStart%seekStep != 0 {
		check(lastStart)
	}
	if len(starts) == 0 {
		return nil
	}

	var ranges [][2]int64
	prev := starts[0]
	rangeStart := prev
	for _, s := range starts[1:] {
		continuous := s == prev+seekStep
		hasGap := s > prev+minSilence
		if !continuous && hasGap {
			ranges = append(ranges, [2]int64{rangeStart, prev + minSilence})
			rangeStart = s
		}
		prev = s
	}
	return append(ranges, [2]int64{rangeStart, prev + minSilence})
}

// invertRanges turns silent ranges into the speech ranges between them.
func invertRanges(silent [][2]int64, total int64) [][2]int64 {
	if len(silent) == 0 {
		return [][2]int64{{0, total}}
	}
	if silent[0][0] == 0 && silent[0][1] >= total {
		return nil
	}

	var speech [][2]int64
	prevEnd := int64(0)
	for _, s := range silent {
		if s[0] > prevEnd {
			speech = append(speech, [2]int64{prevEnd, s[0]})
		}
		prevEnd = s[1]
	}
	if prevEnd < total {
		speech = append(speech, [2]int64{prevEnd, total})
	}
	return speech
}

func padRanges(speech [][2]int64, keep, total int64) [][2]int64 {
	out := make([][2]int64, len(speech))
	for i, r := range speech {
		out[i] = [2]int64{r[0] - keep, r[1] + keep}
	}
	for i := 0; i+1 < len(out); i++ {
		if out[i+1][0] < out[i][1] {
			mid := (out[i][1] + out[i+1][0]) / 2
			out[i][1] = mid
			out[i+1][0] = mid
		}
	}
	for i := range out {
		if out[i][0] < 0 {
			out[i][0] = 0
		}
		if out[i][1] > total {
			out[i][1] = total
		}
	}
	return out
}

func dbToAmplitude(db float64) float64 {
	return math.Pow(10, db/20)
}

// per-millisecond energy prefix sums of a track
type envelope struct {
	rate    int64
	samples int64
	lenMs   int64
	energy  []float64 // energy[i] = sum of squared samples in [0, i) ms
}

func newEnvelope(track *Track) *envelope {
	rate := int64(track.Format().SampleRate)
	n := int64(track.Len())
	env := &envelope{rate: rate, samples: n}
	if rate <= 0 || n == 0 {
		return env
	}
	// every sample belongs to a frame, the last one may be partial
	env.lenMs = (n*1000 + rate - 1) / rate
	frames := make([]float64, env.lenMs)

	streamer := track.Buffer.Streamer(0, int(n))
	buf := make([][2]float64, 4096)
	var pos int64
	for {
		got, ok := streamer.Stream(buf)
		for _, s := range buf[:got] {
			frame := pos * 1000 / rate
			// mean square over both channels, mono input has them equal
			frames[frame] += (s[0]*s[0] + s[1]*s[1]) / 2
			pos++
		}
		if !ok || got == 0 {
			break
		}
	}

	env.energy = make([]float64, env.lenMs+1)
	for i, e := range frames {
		env.energy[i+1] = env.energy[i] + e
	}
	return env
}

// first sample of millisecond ms
func (e *envelope) sampleAt(ms int64) int {
	s := (ms*e.rate + 999) / 1000
	if s > e.samples {
		s = e.samples
	}
	if s < 0 {
		s = 0
	}
	return int(s)
}

// rms over the [from, to) millisecond range
func (e *envelope) rms(from, to int64) float64 {
	if to > e.lenMs {
		to = e.lenMs
	}
	if from < 0 {
		from = 0
	}
	count := e.sampleAt(to) - e.sampleAt(from)
	if count <= 0 {
		return 0
	}
	sum := e.energy[to] - e.energy[from]
	if sum < 0 {
		sum = 0
	}
	return math.Sqrt(sum / float64(count))
}
