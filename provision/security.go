package provision

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"

	"github.com/pkg/errors"
)

// SecurityLayer describes how a provisioned connection verifies the
// server certificate.
type SecurityLayer struct {
	// NoVerify disables verification entirely and wins over Pins.
	NoVerify bool
	PinType  PinType
	// Pins holds the acceptable pins per host.
	Pins PinStore
}

// SecurityFromSection assembles a SecurityLayer from a configuration
// block, loading the pin store file if one is named.
func SecurityFromSection(sec *Section) (*SecurityLayer, error) {
	layer := &SecurityLayer{
		NoVerify: sec.NoVerify,
		PinType:  sec.PinType,
	}
	if sec.NoVerify {
		return layer, nil
	}
	if !sec.PinType.Valid() {
		return nil, errors.Errorf("invalid pin_type %d", int(sec.PinType))
	}
	if sec.PinStore != "" {
		pins, err := LoadPinStore(sec.PinStore)
		if err != nil {
			return nil, err
		}
		layer.Pins = pins
	}
	return layer, nil
}

// TLSConfig builds the tls.Config for connections to host.
func (l *SecurityLayer) TLSConfig(host string) (*tls.Config, error) {
	if l.NoVerify {
		return &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: true,
		}, nil
	}
	pins, err := l.Pins.PinsFor(host)
	if err != nil {
		return nil, err
	}
	if len(pins) == 0 {
		// No pins configured, fall back to normal verification.
		return &tls.Config{ServerName: host}, nil
	}
	typ := l.PinType
	return &tls.Config{
		ServerName: host,
		// Chain verification is replaced by pin checks.
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return verifyPins(typ, pins, rawCerts)
		},
	}, nil
}

func verifyPins(typ PinType, pins [][]byte, rawCerts [][]byte) error {
	if len(rawCerts) == 0 {
		return errors.New("peer presented no certificate")
	}
	leaf, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return errors.Wrap(err, "peer certificate")
	}
	var digest [sha256.Size]byte
	switch typ {
	case PinPublicKey:
		digest = sha256.Sum256(leaf.RawSubjectPublicKeyInfo)
	case PinCertificate:
		digest = sha256.Sum256(leaf.Raw)
	default:
		return errors.Errorf("invalid pin type %d", int(typ))
	}
	for _, pin := range pins {
		if len(pin) == sha256.Size && digest == *(*[sha256.Size]byte)(pin) {
			return nil
		}
	}
	return errors.Errorf("peer certificate does not match any of the %d configured pins", len(pins))
}
