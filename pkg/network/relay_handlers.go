package network

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"go.uber.org/zap"

	"github.com/ZentaChain/zentalk-smsc/pkg/protocol"
)

// handleRegister binds the sender to the datagram's source and acknowledges
func (rs *RelayServer) handleRegister(pkt *protocol.Packet, src netip.AddrPort) {
	sender, err := pkt.Sender()
	if err != nil {
		rs.dropMalformed(src, fmt.Errorf("%w: REGISTER without From", protocol.ErrMalformedPacket))
		return
	}

	rs.directory.Register(sender, src)
	rs.metrics.Registrations.Set(float64(rs.directory.Len()))

	rs.log.Info("✅ Registered",
		zap.String("sender", sender),
		zap.Stringer("endpoint", src),
		zap.String("call_id", pkt.Headers.Value(protocol.HeaderCallID)))

	rs.sendOK(pkt, src)
}

// handleMessage acknowledges a peer MESSAGE, then forwards or stores it.
// The ack only means the relay received the packet.
func (rs *RelayServer) handleMessage(pkt *protocol.Packet, src netip.AddrPort) {
	sender, err := pkt.Sender()
	if err != nil {
		rs.dropMalformed(src, fmt.Errorf("%w: MESSAGE without From", protocol.ErrMalformedPacket))
		return
	}
	recipient, err := pkt.Recipient()
	if err != nil {
		rs.dropMalformed(src, fmt.Errorf("%w: MESSAGE without To", protocol.ErrMalformedPacket))
		return
	}

	rs.log.Info("Received MESSAGE",
		zap.String("sender", sender),
		zap.String("recipient", recipient),
		zap.Stringer("source", src),
		zap.Int("body_bytes", len(pkt.Body)))

	rs.sendOK(pkt, src)

	if endpoint, ok := rs.directory.Lookup(recipient); ok {
		rs.forwardMessage(pkt, sender, recipient, endpoint)
		return
	}

	rs.storeMessage(sender, recipient, pkt.Body)
}

// sendOK answers a request with 200 OK
func (rs *RelayServer) sendOK(req *protocol.Packet, dst netip.AddrPort) {
	resp := protocol.NewOKResponse(req)
	rs.send(resp, dst)
}

// send writes a packet without retrying. Failures are logged and counted only.
func (rs *RelayServer) send(pkt *protocol.Packet, dst netip.AddrPort) error {
	transport, _ := rs.outbound()
	if transport == nil {
		return ErrNotRunning
	}

	raw, err := pkt.EncodeChecked()
	if err != nil {
		rs.metrics.SendErrors.Inc()
		rs.log.Warn("Refusing to send packet",
			zap.Stringer("destination", dst),
			zap.Error(err))
		return err
	}

	if _, err := transport.WriteToUDPAddrPort(raw, dst); err != nil {
		// Stop closed the socket after the transport was fetched
		if errors.Is(err, net.ErrClosed) {
			err = fmt.Errorf("%w: %v", ErrNotRunning, err)
		}
		rs.metrics.SendErrors.Inc()
		rs.log.Warn("Send failed",
			zap.Stringer("destination", dst),
			zap.String("call_id", pkt.Headers.Value(protocol.HeaderCallID)),
			zap.Error(err))
		return err
	}
	return nil
}
