package vm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a runtime fault. The set is closed.
type ErrorKind int

const (
	// VMException is the generic fallback (e.g. Object>>error:, division by zero).
	VMException ErrorKind = iota
	MessageNotUnderstood
	ClassMessageSentToInstance
	IndexOutOfRange
	BlockCannotReturn
	StackUnderflow
	StackOverflow
	UndefinedGlobal
	MismatchedBlockArg
	UnknownClass
	UnknownField
	TypeError
	InternalVMException
)

var errorKindNames = [...]string{
	VMException:                "VMException",
	MessageNotUnderstood:       "MessageNotUnderstood",
	ClassMessageSentToInstance: "ClassMessageSentToInstance",
	IndexOutOfRange:            "IndexOutOfRange",
	BlockCannotReturn:          "BlockCannotReturn",
	StackUnderflow:             "StackUnderflow",
	StackOverflow:              "StackOverflow",
	UndefinedGlobal:            "UndefinedGlobal",
	MismatchedBlockArg:         "MismatchedBlockArg",
	UnknownClass:               "UnknownClass",
	UnknownField:               "UnknownField",
	TypeError:                  "TypeError",
	InternalVMException:        "InternalVMException",
}

func (k ErrorKind) String() string {
	if k >= 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// RuntimeError is a fault raised while executing bytecode. Trace holds the
// context chain rendered at the moment of failure.
type RuntimeError struct {
	Kind    ErrorKind
	Message string
	Trace   string
	Cause   error // set for InternalVMException
}

func (e *RuntimeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// Is matches another *RuntimeError by kind, so errors.Is(err,
// &RuntimeError{Kind: TypeError}) works.
func (e *RuntimeError) Is(target error) bool {
	t, ok := target.(*RuntimeError)
	return ok && t.Kind == e.Kind
}

// Report returns the message followed by the stack trace.
func (e *RuntimeError) Report() string {
	return e.Error() + "\n" + e.Trace
}

// KindOf returns the kind of err if it is a *RuntimeError.
func KindOf(err error) (ErrorKind, bool) {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}

// error builds a RuntimeError carrying the current stack trace.
func (vm *VM) error(kind ErrorKind, format string, args ...any) *RuntimeError {
	return vm.wrapError(kind, nil, format, args...)
}

// wrapError builds a RuntimeError around a host-level cause.
func (vm *VM) wrapError(kind ErrorKind, cause error, format string, args ...any) *RuntimeError {
	err := &RuntimeError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Trace:   vm.StackString(),
		Cause:   cause,
	}
	log.Errorf("%s", err.Error())
	return err
}
