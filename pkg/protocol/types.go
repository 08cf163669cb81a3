package protocol

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Protocol constants
const (
	// Version is the only protocol version string emitted by the relay
	Version = "SIP/2.0"

	// DefaultPort is the well-known SIP port
	DefaultPort = 5060

	// BranchMagic prefixes every Via branch token (RFC 3261 magic cookie)
	BranchMagic = "z9hG4bK"
)

// Methods understood by the relay
const (
	MethodRegister = "REGISTER"
	MethodMessage  = "MESSAGE"
)

// Header names used by the relay. Lookups are case-sensitive.
const (
	HeaderVia           = "Via"
	HeaderFrom          = "From"
	HeaderTo            = "To"
	HeaderCallID        = "Call-ID"
	HeaderCSeq          = "CSeq"
	HeaderContact       = "Contact"
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
)

// Status line of the only response the relay produces
const (
	StatusOK = 200
	ReasonOK = "OK"
)

// Default content type for relayed text
const ContentTypeText = "text/plain"

var (
	ErrMalformedPacket = errors.New("malformed packet")
	ErrMissingHeader   = errors.New("missing header")
	ErrInvalidValue    = errors.New("line break in header value")
)

// echoHeaders lists the headers copied from a request into its 200 OK
var echoHeaders = []string{HeaderVia, HeaderFrom, HeaderTo, HeaderCallID, HeaderCSeq}

// NewBranch generates a fresh Via branch token.
// The tag is embedded after the magic cookie so forwarded and A2P traffic
// can be told apart on the wire.
func NewBranch(tag string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if tag == "" {
		return BranchMagic + "-" + id
	}
	return BranchMagic + "-" + tag + "-" + id
}

// NewCallID generates a Call-ID with the given prefix
func NewCallID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "-" + uuid.NewString()
}

// IsSupportedMethod reports whether the relay handles the method
func IsSupportedMethod(method string) bool {
	return method == MethodRegister || method == MethodMessage
}
