package network

import (
	"errors"
	"net"
	"net/netip"

	"go.uber.org/zap"

	"github.com/ZentaChain/zentalk-smsc/pkg/protocol"
)

// listenLoop receives datagrams and handles them one at a time
func (rs *RelayServer) listenLoop(conn *net.UDPConn, done chan struct{}) {
	defer close(done)

	buffer := make([]byte, rs.config.ReadBufferSize)
	for {
		n, addr, err := conn.ReadFromUDPAddrPort(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			rs.log.Warn("UDP read error", zap.Error(err))
			continue
		}

		src := netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
		rs.handleDatagram(buffer[:n], src)
	}
}

// handleDatagram decodes and processes a single datagram.
// Nothing that goes wrong here escapes to the listener loop.
func (rs *RelayServer) handleDatagram(data []byte, src netip.AddrPort) {
	defer func() {
		if r := recover(); r != nil {
			rs.log.Error("panic while handling datagram",
				zap.Any("panic", r),
				zap.Stringer("source", src))
		}
	}()

	pkt, err := protocol.Decode(data)
	if err != nil {
		rs.dropMalformed(src, err)
		return
	}

	rs.packetsReceived.Add(1)
	rs.metrics.PacketsReceived.WithLabelValues(methodLabel(pkt)).Inc()

	switch pkt.Method {
	case protocol.MethodRegister:
		rs.handleRegister(pkt, src)

	case protocol.MethodMessage:
		rs.handleMessage(pkt, src)

	default:
		rs.metrics.UnknownMethods.Inc()
		rs.log.Debug("Dropping packet with unsupported method",
			zap.String("method", pkt.Method),
			zap.Int("status", pkt.StatusCode),
			zap.Stringer("source", src))
	}
}

// dropMalformed logs and counts a datagram that cannot be processed
func (rs *RelayServer) dropMalformed(src netip.AddrPort, err error) {
	rs.malformedPackets.Add(1)
	rs.metrics.MalformedPackets.Inc()
	rs.log.Warn("Dropping malformed packet",
		zap.Stringer("source", src),
		zap.Error(err))
}

// methodLabel keeps the metric label set small
func methodLabel(pkt *protocol.Packet) string {
	switch {
	case pkt.IsResponse():
		return "response"
	case protocol.IsSupportedMethod(pkt.Method):
		return pkt.Method
	default:
		return "other"
	}
}
