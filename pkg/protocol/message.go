package protocol

import "fmt"

// NewOKResponse builds the 200 OK for a request.
// Via, From, To, Call-ID and CSeq are echoed when present; the body is empty.
func NewOKResponse(req *Packet) *Packet {
	resp := &Packet{
		Version:    Version,
		StatusCode: StatusOK,
		Reason:     ReasonOK,
	}
	for _, name := range echoHeaders {
		if v, ok := req.Headers.Get(name); ok {
			resp.Headers.Add(name, v)
		}
	}
	return resp
}

// MessageParams describes a MESSAGE request originated by the relay
type MessageParams struct {
	Target      string // Request-URI; the recipient identifier
	ViaHost     string // host:port advertised in Via
	Branch      string // Via branch token, NewBranch is used when empty
	From        string
	To          string
	CallID      string
	ContentType string // defaults to text/plain
	Body        string
}

// NewMessageRequest builds a MESSAGE request with a fresh Via
func NewMessageRequest(params MessageParams) *Packet {
	branch := params.Branch
	if branch == "" {
		branch = NewBranch("")
	}
	contentType := params.ContentType
	if contentType == "" {
		contentType = ContentTypeText
	}
	callID := params.CallID
	if callID == "" {
		callID = NewCallID("")
	}

	pkt := &Packet{
		Method:  MethodMessage,
		Target:  params.Target,
		Version: Version,
		Body:    params.Body,
	}
	pkt.Headers.Add(HeaderVia, fmt.Sprintf("%s/UDP %s;branch=%s", Version, params.ViaHost, branch))
	pkt.Headers.Add(HeaderFrom, params.From)
	pkt.Headers.Add(HeaderTo, params.To)
	pkt.Headers.Add(HeaderCallID, callID)
	pkt.Headers.Add(HeaderCSeq, "1 "+MethodMessage)
	pkt.Headers.Add(HeaderContentType, contentType)
	pkt.Headers.Add(HeaderContentLength, "0") // rewritten by Encode
	return pkt
}

// NewRegisterRequest builds a REGISTER for the given address-of-record.
// Used by the test client.
func NewRegisterRequest(aor, registrar, viaHost, contact string) *Packet {
	pkt := &Packet{
		Method:  MethodRegister,
		Target:  registrar,
		Version: Version,
	}
	pkt.Headers.Add(HeaderVia, fmt.Sprintf("%s/UDP %s;branch=%s", Version, viaHost, NewBranch("reg")))
	pkt.Headers.Add(HeaderFrom, "<"+aor+">;tag=1")
	pkt.Headers.Add(HeaderTo, "<"+aor+">")
	pkt.Headers.Add(HeaderCallID, NewCallID("reg"))
	pkt.Headers.Add(HeaderCSeq, "1 "+MethodRegister)
	if contact != "" {
		pkt.Headers.Add(HeaderContact, "<"+contact+">")
	}
	pkt.Headers.Add(HeaderContentLength, "0")
	return pkt
}

// ForwardCallID derives the Call-ID of a re-originated message.
// A fresh one is generated when the original carried none.
func ForwardCallID(original string) string {
	if original == "" {
		return NewCallID("fwd")
	}
	return "fwd-" + original
}
