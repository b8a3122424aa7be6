package reasoncodes

import (
	"errors"
	"fmt"
)

// Error is a taxonomy error. Context holds whatever the failing handler
// was working on (request id, message, caller arguments) for logging.
type Error struct {
	Code    ReasonCode
	Message string
	Cause   error
	Context map[string]any
}

func New(code ReasonCode) *Error {
	return &Error{Code: code, Message: code.Message()}
}

func Wrap(code ReasonCode, cause error) *Error {
	return &Error{Code: code, Message: code.Message(), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// WithContext merges fields into the error context and returns e.
func (e *Error) WithContext(fields map[string]any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		e.Context[k] = v
	}
	return e
}

// CodeOf returns the reason code carried anywhere in err's chain.
func CodeOf(err error) (ReasonCode, bool) {
	var rcErr *Error
	if errors.As(err, &rcErr) {
		return rcErr.Code, true
	}
	return "", false
}

// ContextOf collects the context of every *Error in err's chain, outermost wins.
func ContextOf(err error) map[string]any {
	fields := map[string]any{}
	for err != nil {
		var rcErr *Error
		if !errors.As(err, &rcErr) {
			break
		}
		for k, v := range rcErr.Context {
			if _, ok := fields[k]; !ok {
				fields[k] = v
			}
		}
		err = rcErr.Cause
	}
	return fields
}
