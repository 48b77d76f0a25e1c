// Package jid implements the XMPP address format (RFC 6122).
//
// A JID is the structured identifier used to address entities on an XMPP
// network. It consists of an optional localpart, a required domainpart and
// an optional resourcepart, written localpart@domainpart/resourcepart.
package jid

import (
	"strings"

	"github.com/pkg/errors"
)

// JID is an XMPP address. The zero value is not a valid JID.
type JID struct {
	Local    string
	Domain   string
	Resource string
}

// Parse parses s into a JID.
//
// The first "@" separates the localpart from the domainpart; the first "/"
// after it begins the resourcepart, which may itself contain further "/" or
// "@" characters. An empty domainpart, or an empty localpart or resourcepart
// in the presence of their separator, is an error.
func Parse(s string) (JID, error) {
	var j JID
	rest := s
	if at := strings.Index(rest, "@"); at >= 0 {
		slash := strings.Index(rest, "/")
		if slash < 0 || at < slash {
			j.Local = rest[:at]
			if j.Local == "" {
				return JID{}, errors.Errorf("empty localpart in jid %q", s)
			}
			rest = rest[at+1:]
		}
	}
	if slash := strings.Index(rest, "/"); slash >= 0 {
		j.Resource = rest[slash+1:]
		if j.Resource == "" {
			return JID{}, errors.Errorf("empty resourcepart in jid %q", s)
		}
		rest = rest[:slash]
	}
	j.Domain = rest
	if j.Domain == "" {
		return JID{}, errors.Errorf("empty domainpart in jid %q", s)
	}
	return j, nil
}

// MustParse is Parse, panicking on malformed input.
func MustParse(s string) JID {
	j, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return j
}

// String returns the canonical string form of j.
func (j JID) String() string {
	var b strings.Builder
	if j.Local != "" {
		b.WriteString(j.Local)
		b.WriteString("@")
	}
	b.WriteString(j.Domain)
	if j.Resource != "" {
		b.WriteString("/")
		b.WriteString(j.Resource)
	}
	return b.String()
}

// Bare returns j with the resourcepart removed.
func (j JID) Bare() JID { return JID{Local: j.Local, Domain: j.Domain} }

// IsBare reports whether j has no resourcepart.
func (j JID) IsBare() bool { return j.Resource == "" }

// IsDomain reports whether j consists of a domainpart only.
func (j JID) IsDomain() bool { return j.Local == "" && j.Resource == "" }

// IsZero reports whether j is the zero value.
func (j JID) IsZero() bool { return j == JID{} }

// WithResource returns j with the given resourcepart.
func (j JID) WithResource(resource string) (JID, error) {
	if resource == "" {
		return JID{}, errors.New("resourcepart must not be empty")
	}
	return JID{Local: j.Local, Domain: j.Domain, Resource: resource}, nil
}
