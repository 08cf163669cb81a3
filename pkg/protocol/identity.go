package protocol

import "strings"

// ExtractIdentifier returns the bare address-of-record of a From/To value.
//
// Everything from the first ';' on is dropped (header parameters such as
// tag=), then every '<' and '>' is removed. No other normalization happens:
// the result is case-sensitive and may contain a display name if the client
// sent one.
func ExtractIdentifier(value string) string {
	aor, _, _ := strings.Cut(value, ";")

	var b strings.Builder
	b.Grow(len(aor))
	for i := 0; i < len(aor); i++ {
		switch c := aor[i]; c {
		case '<', '>':
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Sender returns the identifier from the From header
func (p *Packet) Sender() (string, error) {
	return p.identifier(HeaderFrom)
}

// Recipient returns the identifier from the To header
func (p *Packet) Recipient() (string, error) {
	return p.identifier(HeaderTo)
}

func (p *Packet) identifier(header string) (string, error) {
	value, ok := p.Headers.Get(header)
	if !ok {
		return "", ErrMissingHeader
	}
	id := ExtractIdentifier(value)
	if id == "" {
		return "", ErrMissingHeader
	}
	return id, nil
}
