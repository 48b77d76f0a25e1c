package xso

import "unicode"

// Validator checks a parsed or assigned value against a predicate.
type Validator interface {
	Validate(v interface{}) error
}

// ValidateMode selects when a field's validator runs: on values received
// from parsing, on values assigned locally, both, or never.
type ValidateMode int

const (
	// ValidateFromRecv runs the validator on values received from the wire.
	ValidateFromRecv ValidateMode = iota
	// ValidateFromCode runs the validator on locally assigned values.
	ValidateFromCode
	// ValidateAlways runs the validator in both situations.
	ValidateAlways
	// ValidateNone never runs the validator.
	ValidateNone
)

func (m ValidateMode) String() string {
	switch m {
	case ValidateFromRecv:
		return "from-recv"
	case ValidateFromCode:
		return "from-code"
	case ValidateAlways:
		return "always"
	case ValidateNone:
		return "none"
	default:
		return "unknown"
	}
}

// FromRecv reports whether values received from parsing are validated.
func (m ValidateMode) FromRecv() bool { return m == ValidateFromRecv || m == ValidateAlways }

// FromCode reports whether locally assigned values are validated.
func (m ValidateMode) FromCode() bool { return m == ValidateFromCode || m == ValidateAlways }

// RestrictToSet validates membership in an allowed set of values.
type RestrictToSet []interface{}

func (r RestrictToSet) Validate(v interface{}) error {
	for _, allowed := range r {
		if v == allowed {
			return nil
		}
	}
	return &ValidationError{Value: v, Reason: "not in allowed set"}
}

// Nmtoken validates conformance to the XML Nmtoken production: a non-empty
// sequence of name characters.
type Nmtoken struct{}

func (Nmtoken) Validate(v interface{}) error {
	s, ok := v.(string)
	if !ok {
		return &ValidationError{Value: v, Reason: "not a string"}
	}
	if s == "" {
		return &ValidationError{Value: v, Reason: "empty nmtoken"}
	}
	for _, r := range s {
		if !isNameChar(r) {
			return &ValidationError{Value: v, Reason: "not a valid nmtoken"}
		}
	}
	return nil
}

func isNameChar(r rune) bool {
	switch r {
	case '.', '-', '_', ':', 0xB7:
		return true
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		unicode.In(r, unicode.Mn, unicode.Mc, unicode.Lm)
}
