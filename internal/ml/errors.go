package ml

import (
	"errors"
	"fmt"

	"bird-conservation/internal/traits"
)

var (
	// ErrUnknownCategory is returned when a record carries a category the
	// classifier was not trained on.
	ErrUnknownCategory = traits.ErrUnknownCategory

	// ErrArtifactUnavailable is returned when the classifier, its codec or
	// its metadata cannot be loaded or reached.
	ErrArtifactUnavailable = errors.New("classifier artifact unavailable")

	// ErrCodecRange is returned when the classifier emits an index the codec
	// has no label for. It means model and codec are not a pair.
	ErrCodecRange = errors.New("class index outside label codec range")
)

// CodecRangeError carries the offending index.
type CodecRangeError struct {
	Index int
	Size  int
}

func (e *CodecRangeError) Error() string {
	return fmt.Sprintf("%s: index %d, codec has %d labels", ErrCodecRange, e.Index, e.Size)
}

func (e *CodecRangeError) Unwrap() error { return ErrCodecRange }

func unavailable(what, path string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s %s", ErrArtifactUnavailable, what, path)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrArtifactUnavailable, what, path, err)
}

// Kind groups prediction failures by who has to act on them.
type Kind int

const (
	KindNone Kind = iota
	// KindInput means the caller's traits are not supported by the model.
	KindInput
	// KindUnavailable means the system cannot serve predictions right now.
	KindUnavailable
	// KindInternal means model and codec disagree; a bug, not a user error.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInput:
		return "input"
	case KindUnavailable:
		return "unavailable"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// UserMessage is the text shown to an end user for a failure of this kind.
func (k Kind) UserMessage() string {
	switch k {
	case KindInput:
		return "your input isn't supported by the trained model"
	case KindUnavailable:
		return "the system is currently unavailable"
	case KindInternal:
		return "the prediction could not be completed because of an internal error"
	default:
		return ""
	}
}

// Classify maps an error from this package or from traits onto a Kind.
// Unrecognised errors are treated as internal faults.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, traits.ErrUnknownCategory), errors.Is(err, traits.ErrOutOfRange):
		return KindInput
	case errors.Is(err, ErrArtifactUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}
