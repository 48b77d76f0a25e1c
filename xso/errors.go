package xso

import (
	"encoding/xml"
	"fmt"

	"github.com/varka/xmpp/xmlutil"
)

// FormatError reports malformed or unexpected XML content encountered
// while parsing an element against a schema.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string { return e.Msg }

// ValueError reports XML character data which could not be converted to the
// target type of a field.
type ValueError struct {
	Type string // target type name
	Text string // the offending character data
	Err  error
}

func (e *ValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot parse %q as %s: %v", e.Text, e.Type, e.Err)
	}
	return fmt.Sprintf("cannot parse %q as %s", e.Text, e.Type)
}

func (e *ValueError) Unwrap() error { return e.Err }

// ValidationError reports a parsed or assigned value which failed a
// declared validator.
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid value %v: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid value %v for %s: %s", e.Value, e.Field, e.Reason)
}

// MissingDataError reports a required field left unset at the end of an
// element parse.
type MissingDataError struct {
	Schema string
	Field  string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("missing required field %s on %s", e.Field, e.Schema)
}

// DeclarationError reports an inconsistent schema declaration. It is raised
// once, when the schema is built, and the schema does not come into
// existence.
type DeclarationError struct {
	Schema string
	Msg    string
}

func (e *DeclarationError) Error() string {
	if e.Schema == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Schema, e.Msg)
}

// UnknownTopLevelTagError reports a top-level element whose tag matches no
// registered schema. It is delivered through the driver's error callback
// rather than raised from the feed path, so that the caller can decide
// whether to terminate the stream.
type UnknownTopLevelTagError struct {
	Name xml.Name
}

func (e *UnknownTopLevelTagError) Error() string {
	return fmt.Sprintf("unknown top-level tag %s", xmlutil.NameString(e.Name))
}
