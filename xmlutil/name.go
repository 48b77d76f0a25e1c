package xmlutil

import (
	"encoding/xml"
	"strings"

	"github.com/pkg/errors"
)

// XMLName is a shortcut for creating xml.Name, where typically you want at least
// a local name, and perhaps a namespace value as well.
func XMLName(local string, spaces ...string) xml.Name {
	n := xml.Name{Local: local}
	if len(spaces) > 0 {
		n.Space = spaces[0]
	}
	return n
}

// ParseName normalizes a combined-string element tag into an xml.Name.
//
// Two input forms are accepted: the brace-namespace notation
// "{namespace}local" and a bare local name, which yields a name with an
// empty namespace. The reverse operation is NameString.
func ParseName(s string) (xml.Name, error) {
	if strings.HasPrefix(s, "{") {
		end := strings.Index(s, "}")
		if end < 0 {
			return xml.Name{}, errors.Errorf("unterminated namespace brace in tag %q", s)
		}
		local := s[end+1:]
		if local == "" {
			return xml.Name{}, errors.Errorf("missing local name in tag %q", s)
		}
		return xml.Name{Space: s[1:end], Local: local}, nil
	}
	if s == "" {
		return xml.Name{}, errors.New("empty tag")
	}
	if strings.Contains(s, "}") {
		return xml.Name{}, errors.Errorf("stray namespace brace in tag %q", s)
	}
	return xml.Name{Local: s}, nil
}

// MustParseName is ParseName, panicking on malformed input.
// Intended for package-level tag variables.
func MustParseName(s string) xml.Name {
	n, err := ParseName(s)
	if err != nil {
		panic(err)
	}
	return n
}

// NameString returns the combined-string form of n: "{namespace}local" when
// a namespace is present, else the bare local name.
func NameString(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

// CheckName validates an explicit pair form tag. The namespace may be empty
// (meaning no namespace); the local name must not be.
func CheckName(n xml.Name) error {
	if n.Local == "" {
		return errors.New("local name must not be empty")
	}
	return nil
}

// IsNamespaceDecl reports whether attr declares an XML namespace prefix
// (xmlns="..." or xmlns:foo="...").
func IsNamespaceDecl(attr xml.Attr) bool {
	return attr.Name.Space == "xmlns" || (attr.Name.Space == "" && attr.Name.Local == "xmlns")
}
