package pipeline

import "strings"

// OutcomeKind classifies one stage of one run.
type OutcomeKind int

const (
	// OutcomeSuccess means the stage produced usable output.
	OutcomeSuccess OutcomeKind = iota + 1
	// OutcomeSkipped means the required capability was not available and no
	// attempt was made. It is expected, not an error.
	OutcomeSkipped
	// OutcomeFailed means the stage was attempted and produced nothing usable.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Marker prefixes used where an outcome is rendered into a path field.
const (
	SkippedPrefix = "Skipped"
	ErrorPrefix   = "Error"
)

// StageOutcome is the tagged result of a stage: exactly one of Success(value),
// Skipped(reason) or Failed(reason).
type StageOutcome struct {
	Kind OutcomeKind
	// Value is the stage payload on success (a file path or expanded text).
	Value string
	// Reason explains a skip or failure.
	Reason string
	// during names the call that raised, for failures that came from an error.
	during string
}

func Success(value string) StageOutcome {
	return StageOutcome{Kind: OutcomeSuccess, Value: value}
}

func Skipped(reason string) StageOutcome {
	return StageOutcome{Kind: OutcomeSkipped, Reason: reason}
}

func Failed(reason string) StageOutcome {
	return StageOutcome{Kind: OutcomeFailed, Reason: reason}
}

// failedDuring records an error raised while calling label.
func failedDuring(label string, err error) StageOutcome {
	return StageOutcome{Kind: OutcomeFailed, Reason: err.Error(), during: label}
}

func (o StageOutcome) IsSuccess() bool { return o.Kind == OutcomeSuccess }

// Marker renders a non-success outcome as a status marker:
// "Skipped: <reason>", "Error: <reason>" or "Error during <call>: <reason>".
// It returns "" for success.
func (o StageOutcome) Marker() string {
	switch o.Kind {
	case OutcomeSkipped:
		return SkippedPrefix + ": " + o.Reason
	case OutcomeFailed:
		if o.during != "" {
			return ErrorPrefix + " during " + o.during + ": " + o.Reason
		}
		return ErrorPrefix + ": " + o.Reason
	default:
		return ""
	}
}

// Path is the value stored in path fields: the file path on success, the
// marker otherwise.
func (o StageOutcome) Path() string {
	if o.Kind == OutcomeSuccess {
		return o.Value
	}
	return o.Marker()
}

// Detail is the text after the first colon of the marker, or "" on success.
func (o StageOutcome) Detail() string {
	m := o.Marker()
	if i := strings.Index(m, ":"); i >= 0 {
		return strings.TrimSpace(m[i+1:])
	}
	return m
}
