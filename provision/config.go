package provision

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Section is one provisioner's configuration block.
type Section struct {
	// Host is the server to provision accounts against.
	Host string `yaml:"host"`
	// NoVerify disables certificate verification entirely. It takes
	// precedence over pinning.
	NoVerify bool `yaml:"no_verify"`
	// PinStore is the path of a JSON file mapping host to a list of
	// base64 pin values.
	PinStore string `yaml:"pin_store"`
	// PinType selects what the pins digest: the public key or the
	// whole certificate.
	PinType PinType `yaml:"pin_type"`
	// Quirks lists server quirk identifiers, full URIs or #-prefixed
	// short forms.
	Quirks []string `yaml:"quirks"`
}

// ParseSection decodes a YAML configuration block.
func ParseSection(data []byte) (*Section, error) {
	var s Section
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "provision config")
	}
	return &s, nil
}

// LoadSection reads and decodes a YAML configuration file.
func LoadSection(path string) (*Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "provision config")
	}
	return ParseSection(data)
}

// QuirkBase is the base URI that #-prefixed quirk short forms expand
// against.
const QuirkBase = "https://zombofant.net/xmlns/aioxmpp/e2etest/quirks"

// Quirk identifies a server behaviour deviation tests may need to work
// around.
type Quirk string

// ExpandQuirk canonicalizes a configured quirk identifier: a #-prefixed
// short form expands against QuirkBase, anything else must already be an
// absolute URI.
func ExpandQuirk(s string) (Quirk, error) {
	switch {
	case s == "":
		return "", errors.New("empty quirk identifier")
	case strings.HasPrefix(s, "#"):
		return Quirk(QuirkBase + s), nil
	case strings.Contains(s, "://"):
		return Quirk(s), nil
	default:
		return "", errors.Errorf("quirk %q is neither a #-short form nor an absolute URI", s)
	}
}

// ExpandQuirks canonicalizes a configured quirk list into a set.
func ExpandQuirks(raw []string) (map[Quirk]bool, error) {
	set := make(map[Quirk]bool, len(raw))
	for _, s := range raw {
		q, err := ExpandQuirk(s)
		if err != nil {
			return nil, err
		}
		set[q] = true
	}
	return set, nil
}

// PinType selects what a certificate pin digests.
type PinType int

const (
	// PinPublicKey pins the subject public key info.
	PinPublicKey PinType = 0
	// PinCertificate pins the whole certificate.
	PinCertificate PinType = 1
)

func (t PinType) String() string {
	switch t {
	case PinPublicKey:
		return "public-key"
	case PinCertificate:
		return "certificate"
	default:
		return fmt.Sprintf("PinType(%d)", int(t))
	}
}

// Valid reports whether t is a defined pin type.
func (t PinType) Valid() bool { return t == PinPublicKey || t == PinCertificate }

// PinStore maps a host to its acceptable base64 pin values.
type PinStore map[string][]string

// LoadPinStore reads a pin store file. The format is a JSON object
// mapping host to a list of base64 pin values.
func LoadPinStore(path string) (PinStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "pin store")
	}
	var s PinStore
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "pin store")
	}
	return s, nil
}

// PinsFor returns the decoded pins for host.
func (s PinStore) PinsFor(host string) ([][]byte, error) {
	raw := s[host]
	out := make([][]byte, 0, len(raw))
	for _, p := range raw {
		b, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			return nil, errors.Wrapf(err, "pin %q for host %s", p, host)
		}
		out = append(out, b)
	}
	return out, nil
}
