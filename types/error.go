package types

import (
	"fmt"

	"github.com/juju/errors"
)

var (
	_ error = &CycleError{}
	_ error = &MissingInputError{}
)

// CycleError rejects a connection (or a topological sort) that would make
// the graph cyclic. The graph is left unchanged when it is returned.
type CycleError struct {
	*baseError
}

func NewCycleErrorf(format string, args ...interface{}) error {
	return &CycleError{newBaseErr(errors.Errorf(format, args...))}
}

func IsCycle(err error) bool {
	if _, ok := err.(*CycleError); ok {
		return true
	}
	_, ok := errors.Cause(err).(*CycleError)
	return ok
}

// MissingInputError names the first required input a node is missing.
type MissingInputError struct {
	*baseError

	NodeID string
	Input  string
}

func NewMissingInputError(nodeID, input string) error {
	return &MissingInputError{
		baseError: newBaseErr(fmt.Errorf("node %s missing required input: %s", nodeID, input)),
		NodeID:    nodeID,
		Input:     input,
	}
}

func IsMissingInput(err error) bool {
	if _, ok := err.(*MissingInputError); ok {
		return true
	}
	_, ok := errors.Cause(err).(*MissingInputError)
	return ok
}

func newBaseErr(otherErr error) *baseError {
	return &baseError{unwrapErr(otherErr)}
}

func unwrapErr(err error) error {
	if err == nil {
		return nil
	}
	if ue, ok := err.(wrappedErr); ok {
		return unwrapErr(ue.UnwrapLocal())
	}
	return err
}

type wrappedErr interface {
	UnwrapLocal() error
}

type baseError struct {
	BaseErr error
}

func (e *baseError) Error() string {
	return e.BaseErr.Error()
}

func (e *baseError) UnwrapLocal() error {
	return e.BaseErr
}
