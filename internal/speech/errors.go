package speech

import "errors"

// ErrorKind classifies synthesis failures for callers.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "invalid_input"
	KindNoValidSentences    ErrorKind = "no_valid_sentences"
	KindProviderError       ErrorKind = "provider_error"
	KindDurationProbeFailed ErrorKind = "duration_probe_failed"
	KindReconcileFailed     ErrorKind = "reconcile_failed"
)

// TTSGenerationError is returned by every synthesis entry point.
type TTSGenerationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *TTSGenerationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *TTSGenerationError) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error, message string) *TTSGenerationError {
	return &TTSGenerationError{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err carries a TTSGenerationError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ttsErr *TTSGenerationError
	if errors.As(err, &ttsErr) {
		return ttsErr.Kind == kind
	}
	return false
}
