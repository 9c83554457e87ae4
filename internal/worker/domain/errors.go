package domain

import "errors"

// Error kinds recorded on a failed project. AI-call failures never
// appear here: they are recovered by the synthetic fallback inside the
// step generator.
const (
	KindVideoTooLong          = "VideoTooLong"
	KindMediaUnreadable       = "MediaUnreadable"
	KindFrameExtractionFailed = "FrameExtractionFailed"
	KindInternalPipelineError = "InternalPipelineError"
)

var (
	// ErrProjectNotClaimable is returned when a project cannot be moved
	// from pending to processing: it does not exist, already finished,
	// or another run holds it.
	ErrProjectNotClaimable = errors.New("project not in pending status or not found")
)

// StageError wraps an unrecoverable pipeline failure with its kind.
type StageError struct {
	Kind string
	Err  error
}

func (e *StageError) Error() string {
	return e.Kind + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a StageError of the given kind.
func NewStageError(kind string, err error) *StageError {
	return &StageError{Kind: kind, Err: err}
}

// KindOf extracts the error kind from err, defaulting to
// InternalPipelineError for anything unclassified.
func KindOf(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}
	return KindInternalPipelineError
}
