package service

import (
	"fmt"
	"strings"
)

// DeclarationError reports an inconsistent service declaration. The
// offending descriptor fails to come into existence.
type DeclarationError struct {
	Service string
	Msg     string
}

func (e *DeclarationError) Error() string {
	if e.Service == "" {
		return fmt.Sprintf("service declaration: %s", e.Msg)
	}
	return fmt.Sprintf("service %s: %s", e.Service, e.Msg)
}

// HandlerConflictError reports two unique handler specifications claiming
// the same registration key, naming both owners.
type HandlerConflictError struct {
	Key    string
	First  string
	Second string
}

func (e *HandlerConflictError) Error() string {
	return fmt.Sprintf("unique handler conflict on %q between %s and %s",
		e.Key, e.First, e.Second)
}

// DependencyLoopError reports an ordering cycle, naming a member of the
// loop.
type DependencyLoopError struct {
	Member string
}

func (e *DependencyLoopError) Error() string {
	return fmt.Sprintf("service dependency loop involving %s", e.Member)
}

// TeardownError aggregates independent teardown failures. Teardown of
// each resource proceeds regardless of the others' outcome; all failures
// are collected here.
type TeardownError struct {
	Errs []error
}

func (e *TeardownError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d teardown failure(s): %s", len(e.Errs), strings.Join(msgs, "; "))
}

// Append collects err if non-nil and returns the (possibly nil) aggregate.
func appendTeardown(agg *TeardownError, err error) *TeardownError {
	if err == nil {
		return agg
	}
	if agg == nil {
		agg = &TeardownError{}
	}
	agg.Errs = append(agg.Errs, err)
	return agg
}

func teardownOrNil(agg *TeardownError) error {
	if agg == nil {
		return nil
	}
	return agg
}
