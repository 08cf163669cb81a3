package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Packet is one request or response of the reduced SIP dialect.
// For requests Method and Target are set; for responses StatusCode and Reason.
type Packet struct {
	Method     string
	Target     string
	Version    string
	StatusCode int
	Reason     string
	Headers    Headers
	Body       string
}

// IsResponse reports whether the packet carries a status line
func (p *Packet) IsResponse() bool {
	return p.StatusCode != 0
}

// Decode parses a datagram into a packet.
//
// The first line is "METHOD TARGET-URI VERSION" (or a status line), followed
// by "Name: Value" lines up to the first empty line. Everything after the
// empty line is the body with trailing whitespace trimmed. Content-Length is
// not checked against the body.
func Decode(raw []byte) (*Packet, error) {
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrMalformedPacket)
	}

	lines := strings.Split(string(raw), "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	pkt, err := parseStartLine(lines[0])
	if err != nil {
		return nil, err
	}

	for i := 1; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			pkt.Body = strings.TrimRightFunc(strings.Join(lines[i+1:], "\n"), unicode.IsSpace)
			break
		}
		if field, ok := parseHeaderLine(line); ok {
			pkt.Headers.Set(field.Name, field.Value)
		}
	}

	return pkt, nil
}

// parseStartLine parses a request line or a status line
func parseStartLine(line string) (*Packet, error) {
	tokens := strings.Fields(line)
	if len(tokens) < 2 {
		return nil, fmt.Errorf("%w: bad start line %q", ErrMalformedPacket, line)
	}

	// "SIP/2.0 200 OK"
	if strings.HasPrefix(tokens[0], "SIP/") {
		code, err := strconv.Atoi(tokens[1])
		if err == nil && code >= 100 && code <= 699 {
			return &Packet{
				Version:    tokens[0],
				StatusCode: code,
				Reason:     strings.Join(tokens[2:], " "),
			}, nil
		}
	}

	pkt := &Packet{
		Method:  tokens[0],
		Target:  tokens[1],
		Version: Version,
	}
	if len(tokens) > 2 {
		pkt.Version = tokens[2]
	}
	return pkt, nil
}

// Encode serializes a request. Headers keep the caller's order and
// Content-Length is forced to the byte length of body.
func Encode(method, targetURI string, headers Headers, body string) []byte {
	p := &Packet{
		Method:  method,
		Target:  targetURI,
		Version: Version,
		Headers: headers,
		Body:    body,
	}
	return p.Encode()
}

// Encode serializes the packet
func (p *Packet) Encode() []byte {
	version := p.Version
	if version == "" {
		version = Version
	}

	var b strings.Builder
	if p.IsResponse() {
		fmt.Fprintf(&b, "%s %d %s\r\n", version, p.StatusCode, p.Reason)
	} else {
		fmt.Fprintf(&b, "%s %s %s\r\n", p.Method, p.Target, version)
	}

	headers := p.Headers.Clone()
	headers.Set(HeaderContentLength, strconv.Itoa(len(p.Body)))
	for _, f := range headers {
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(p.Body)

	return []byte(b.String())
}

// EncodeChecked is Encode for packets built from untrusted input. It fails
// when the start line or any header contains a CR or LF. The body may
// contain line breaks.
func (p *Packet) EncodeChecked() ([]byte, error) {
	for _, v := range []string{p.Method, p.Target, p.Version, p.Reason} {
		if err := ValidateValue(v); err != nil {
			return nil, err
		}
	}
	if err := p.Headers.Validate(); err != nil {
		return nil, err
	}
	return p.Encode(), nil
}

// String returns the wire form
func (p *Packet) String() string {
	return string(p.Encode())
}
