package models

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers and the HTTP layer can react without
// string matching.
type Kind string

const (
	KindInput             Kind = "input_error"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindResourceExhausted Kind = "resource_exhausted"
	KindTimeout           Kind = "timeout"
	KindDetectorFailure   Kind = "detector_failure"
	KindSourceUnavailable Kind = "source_unavailable"
	KindConnectionLost    Kind = "connection_lost"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindConfig            Kind = "config_error"
	KindInternal          Kind = "internal"
)

// AppError carries a Kind, the operation that produced it, and the wrapped
// cause. Op is a short dotted path like "scheduler.RunTask".
type AppError struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *AppError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

// E builds an AppError. Accepts an optional message and an optional cause in
// any order after op.
func E(kind Kind, op string, args ...interface{}) *AppError {
	e := &AppError{Kind: kind, Op: op}
	for _, a := range args {
		switch v := a.(type) {
		case string:
			e.Msg = v
		case error:
			e.Err = v
		}
	}
	return e
}

// KindOf walks the error chain and returns the first AppError kind, or
// KindInternal when none is present.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
