package transcribe

import (
	"context"
	"errors"
	"fmt"
)

// classification of a failed recognition
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindNoSpeech
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoSpeech:
		return "no_speech"
	case KindUnavailable:
		return "service_unavailable"
	default:
		return "other"
	}
}

var (
	ErrNoSpeech           = errors.New("no speech detected")
	ErrServiceUnavailable = errors.New("speech service unavailable")
)

// RecognitionError is returned by every Recognizer failure.
type RecognitionError struct {
	Kind ErrorKind
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

func (e *RecognitionError) Is(target error) bool {
	switch target {
	case ErrNoSpeech:
		return e.Kind == KindNoSpeech
	case ErrServiceUnavailable:
		return e.Kind == KindUnavailable
	}
	return false
}

func noSpeech() error {
	return &RecognitionError{Kind: KindNoSpeech, Err: ErrNoSpeech}
}

func unavailable(err error) error {
	return &RecognitionError{Kind: KindUnavailable, Err: err}
}

func otherError(err error) error {
	return &RecognitionError{Kind: KindOther, Err: err}
}

// statuses meaning the service cannot be used right now
func classifyStatus(err error, code int) error {
	switch {
	case code == 401, code == 403, code == 408, code == 429, code >= 500:
		return unavailable(err)
	default:
		return otherError(err)
	}
}

// KindOf classifies any error; timeouts count as an unavailable service.
func KindOf(err error) ErrorKind {
	var recErr *RecognitionError
	if errors.As(err, &recErr) {
		return recErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindUnavailable
	}
	return KindOther
}
