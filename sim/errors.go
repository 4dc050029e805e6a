package sim

import (
	"errors"
	"fmt"
)

// ErrorKind tags every failure the simulator can report. Each kind maps to a
// fixed user-facing message so that callers can print "Error: <message>".
type ErrorKind int

const (
	KindDefault ErrorKind = iota
	KindCPUFile
	KindDataFile
	KindFile
	KindIDNotUnique
	KindMoreThanOneCPU
	KindNCPUs
	KindNJobs
	KindNTicks
	KindNotSchedulable
	KindSchedule
	KindSchedulerNotUnique
	KindSchedulerNameTooShort
	KindUnknownScheduler
	KindTicksHyperperiod
	KindQueue
)

var kindMessages = map[ErrorKind]string{
	KindDefault:               "error while running yass",
	KindCPUFile:               "error while parsing processor file",
	KindDataFile:              "error while parsing data file",
	KindFile:                  "error while searching a file",
	KindIDNotUnique:           "task id must be unique",
	KindMoreThanOneCPU:        "a scheduler needs a uniprocessor system",
	KindNCPUs:                 "too few or too many cpus",
	KindNJobs:                 "too few or too many jobs",
	KindNTicks:                "too few ticks",
	KindNotSchedulable:        "task set not schedulable",
	KindSchedule:              "cannot schedule the task set",
	KindSchedulerNotUnique:    "a scheduler can only be used once",
	KindSchedulerNameTooShort: "scheduler name must be greater than 1",
	KindUnknownScheduler:      "cannot open scheduler file",
	KindTicksHyperperiod:      "cannot set both ticks and hyperperiods",
	KindQueue:                 "invalid queue operation",
}

// String returns the user-facing message of the kind.
func (k ErrorKind) String() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return kindMessages[KindDefault]
}

// Error is the tagged error result returned by configuration, admission and
// scheduling code. Detail and Err are optional context.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels such as
// ErrNotSchedulable work with errors.Is regardless of detail.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Detail == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrNotSchedulable = &Error{Kind: KindNotSchedulable}
	ErrSchedule       = &Error{Kind: KindSchedule}
	ErrMoreThanOneCPU = &Error{Kind: KindMoreThanOneCPU}
	ErrQueue          = &Error{Kind: KindQueue}
)

// NewError builds a tagged error with a formatted detail message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapError tags err with kind. A nil err yields nil.
func WrapError(kind ErrorKind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind of the outermost *Error in err's chain.
// Errors that carry no tag report KindDefault.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDefault
}
