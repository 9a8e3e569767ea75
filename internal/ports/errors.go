package ports

import (
	"errors"
	"fmt"
)

var ErrTopicNotFound = errors.New("topic not found")

type FaultKind string

const (
	FaultConfiguration FaultKind = "configuration"
	FaultTransport     FaultKind = "transport"
	FaultProvider      FaultKind = "provider"
	FaultPersistence   FaultKind = "persistence"
	FaultPresentation  FaultKind = "presentation"
	FaultUnknown       FaultKind = "unknown"
)

// Fault is the error value passed between components. Op names the failed step.
type Fault struct {
	Kind FaultKind
	Op   string
	Err  error
}

func NewFault(kind FaultKind, op string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, Err: err}
}

func (f *Fault) Error() string {
	if f == nil {
		return ""
	}
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Kind, f.Op)
	}
	return fmt.Sprintf("%s: %s: %v", f.Kind, f.Op, f.Err)
}

func (f *Fault) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

// KindOf returns the kind of the outermost Fault in the chain.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return FaultUnknown
}

func IsFault(err error, kind FaultKind) bool {
	return KindOf(err) == kind
}
