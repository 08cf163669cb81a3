// Package protocol implements the reduced SIP dialect spoken by the SMSC.
//
// Only two request methods are understood, REGISTER and MESSAGE, plus the
// 200 OK response the relay sends back. There is no dialog matching, no
// authentication and no retransmission: every datagram carries exactly one
// self-contained packet.
//
// # Packet Format
//
// A packet is plain text:
//
//	METHOD TARGET-URI VERSION\r\n
//	Name: Value\r\n
//	...
//	\r\n
//	body
//
// Header names are kept exactly as received. Nothing is canonicalized, so
// "Call-ID" and "Call-Id" are different keys. The relay depends on this when
// echoing headers back to the client.
//
// # Identifiers
//
// The address-of-record used as the directory and backlog key is derived from
// a From or To header value by [ExtractIdentifier]:
//
//	<sip:alice@free5gc.org>;tag=1  ->  sip:alice@free5gc.org
//
// # Usage Example
//
//	pkt, err := protocol.Decode(datagram)
//	if err != nil {
//	    // errors.Is(err, protocol.ErrMalformedPacket)
//	}
//
//	resp := protocol.NewOKResponse(pkt)
//	conn.WriteToUDPAddrPort(resp.Encode(), src)
package protocol
