package xso

import (
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/varka/xmpp/jid"
)

// Type converts between the XML character form of a value and its Go form.
//
// Parse converts character data received from the wire. Format produces the
// character form for serialization. Coerce verifies (and, where unambiguous,
// converts) a locally assigned value into the type's canonical Go form; it
// is what makes assignment to a descriptor strictly type-checked.
type Type interface {
	Parse(s string) (interface{}, error)
	Format(v interface{}) (string, error)
	Coerce(v interface{}) (interface{}, error)
}

// String is the passthrough string type.
type String struct{}

func (String) Parse(s string) (interface{}, error) { return s, nil }

func (String) Format(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("string value required, got %T", v)
	}
	return s, nil
}

func (String) Coerce(v interface{}) (interface{}, error) {
	if _, ok := v.(string); !ok {
		return nil, errors.Errorf("string value required, got %T", v)
	}
	return v, nil
}

// Integer is a base-10 integer type with int64 value form.
type Integer struct{}

func (Integer) Parse(s string) (interface{}, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, &ValueError{Type: "integer", Text: s, Err: err}
	}
	return v, nil
}

func (Integer) Format(v interface{}) (string, error) {
	i, err := coerceInt(v)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(i, 10), nil
}

func (Integer) Coerce(v interface{}) (interface{}, error) { return coerceInt(v) }

func coerceInt(v interface{}) (int64, error) {
	switch i := v.(type) {
	case int64:
		return i, nil
	case int:
		return int64(i), nil
	default:
		return 0, errors.Errorf("integer value required, got %T", v)
	}
}

// Bool follows the XML Schema boolean lexical rules: "true", "false",
// "1" and "0".
type Bool struct{}

func (Bool) Parse(s string) (interface{}, error) {
	switch s {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return nil, &ValueError{Type: "boolean", Text: s}
}

func (Bool) Format(v interface{}) (string, error) {
	b, ok := v.(bool)
	if !ok {
		return "", errors.Errorf("boolean value required, got %T", v)
	}
	if b {
		return "true", nil
	}
	return "false", nil
}

func (Bool) Coerce(v interface{}) (interface{}, error) {
	if _, ok := v.(bool); !ok {
		return nil, errors.Errorf("boolean value required, got %T", v)
	}
	return v, nil
}

// DateTime is an ISO-8601 timestamp type with time.Time value form.
type DateTime struct{}

func (DateTime) Parse(s string) (interface{}, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, &ValueError{Type: "datetime", Text: s, Err: err}
	}
	return t, nil
}

func (DateTime) Format(v interface{}) (string, error) {
	t, ok := v.(time.Time)
	if !ok {
		return "", errors.Errorf("time.Time value required, got %T", v)
	}
	return t.Format(time.RFC3339), nil
}

func (DateTime) Coerce(v interface{}) (interface{}, error) {
	if _, ok := v.(time.Time); !ok {
		return nil, errors.Errorf("time.Time value required, got %T", v)
	}
	return v, nil
}

// Base64Binary is a base64-encoded binary blob type with []byte value form.
type Base64Binary struct{}

func (Base64Binary) Parse(s string) (interface{}, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &ValueError{Type: "base64-binary", Text: s, Err: err}
	}
	return b, nil
}

func (Base64Binary) Format(v interface{}) (string, error) {
	b, ok := v.([]byte)
	if !ok {
		return "", errors.Errorf("[]byte value required, got %T", v)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (Base64Binary) Coerce(v interface{}) (interface{}, error) {
	if _, ok := v.([]byte); !ok {
		return nil, errors.Errorf("[]byte value required, got %T", v)
	}
	return v, nil
}

// HexBinary is a hex-encoded binary blob type with []byte value form.
type HexBinary struct{}

func (HexBinary) Parse(s string) (interface{}, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, &ValueError{Type: "hex-binary", Text: s, Err: err}
	}
	return b, nil
}

func (HexBinary) Format(v interface{}) (string, error) {
	b, ok := v.([]byte)
	if !ok {
		return "", errors.Errorf("[]byte value required, got %T", v)
	}
	return hex.EncodeToString(b), nil
}

func (HexBinary) Coerce(v interface{}) (interface{}, error) {
	if _, ok := v.([]byte); !ok {
		return nil, errors.Errorf("[]byte value required, got %T", v)
	}
	return v, nil
}

// JID is the XMPP address type with jid.JID value form.
type JID struct{}

func (JID) Parse(s string) (interface{}, error) {
	j, err := jid.Parse(s)
	if err != nil {
		return nil, &ValueError{Type: "jid", Text: s, Err: err}
	}
	return j, nil
}

func (JID) Format(v interface{}) (string, error) {
	j, ok := v.(jid.JID)
	if !ok {
		return "", errors.Errorf("jid.JID value required, got %T", v)
	}
	return j.String(), nil
}

func (JID) Coerce(v interface{}) (interface{}, error) {
	switch j := v.(type) {
	case jid.JID:
		if j.IsZero() {
			return nil, errors.New("zero jid.JID is not a valid value")
		}
		return j, nil
	default:
		return nil, errors.Errorf("jid.JID value required, got %T", v)
	}
}
