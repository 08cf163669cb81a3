package network

import (
	"errors"
	"fmt"
	"net/netip"

	"go.uber.org/zap"

	"github.com/ZentaChain/zentalk-smsc/pkg/metrics"
	"github.com/ZentaChain/zentalk-smsc/pkg/protocol"
	"github.com/ZentaChain/zentalk-smsc/pkg/storage"
)

// forwardMessage re-originates a peer MESSAGE to the recipient's endpoint.
// Fire-and-forget: no ack is awaited and nothing is retried.
func (rs *RelayServer) forwardMessage(pkt *protocol.Packet, sender, recipient string, endpoint netip.AddrPort) {
	_, viaHost := rs.outbound()

	fwd := protocol.NewMessageRequest(protocol.MessageParams{
		Target:      recipient,
		ViaHost:     viaHost,
		Branch:      protocol.NewBranch("fwd"),
		From:        sender,
		To:          recipient,
		CallID:      protocol.ForwardCallID(pkt.Headers.Value(protocol.HeaderCallID)),
		ContentType: pkt.Headers.Value(protocol.HeaderContentType),
		Body:        pkt.Body,
	})

	if err := rs.send(fwd, endpoint); err != nil {
		return
	}

	rs.messagesForwarded.Add(1)
	rs.metrics.MessagesForwarded.Inc()
	rs.log.Info("📨 Forwarded message",
		zap.String("sender", sender),
		zap.String("recipient", recipient),
		zap.Stringer("endpoint", endpoint))
}

// storeMessage appends a message to an offline recipient's backlog
func (rs *RelayServer) storeMessage(sender, recipient, body string) {
	msg := storage.StoredMessage{
		Sender:     sender,
		Body:       body,
		ReceivedAt: rs.now(),
	}

	if err := rs.backlog.Append(recipient, msg); err != nil {
		rs.metrics.StoreErrors.Inc()
		rs.log.Error("Failed to store message",
			zap.String("sender", sender),
			zap.String("recipient", recipient),
			zap.Error(err))
		return
	}

	rs.messagesStored.Add(1)
	rs.metrics.MessagesStored.Inc()
	rs.log.Info("📬 Stored message for offline recipient",
		zap.String("sender", sender),
		zap.String("recipient", recipient))
}

// SendApplicationMessage delivers an application-originated message straight
// to a registered recipient and returns the endpoint it was sent to.
//
// There is no backlog fallback: an unregistered recipient yields
// ErrRecipientOffline and nothing is stored. A socket write failure is
// logged and counted but still reported as sent, unless the socket was
// closed by Stop, which yields ErrNotRunning. Recipients and labels
// containing line breaks are rejected with protocol.ErrInvalidValue.
func (rs *RelayServer) SendApplicationMessage(recipient, body, senderLabel string) (netip.AddrPort, error) {
	if err := protocol.ValidateValue(recipient); err != nil {
		return netip.AddrPort{}, fmt.Errorf("recipient: %w", err)
	}
	if err := protocol.ValidateValue(senderLabel); err != nil {
		return netip.AddrPort{}, fmt.Errorf("sender label: %w", err)
	}

	transport, viaHost := rs.outbound()
	if transport == nil {
		return netip.AddrPort{}, ErrNotRunning
	}

	endpoint, ok := rs.directory.Lookup(recipient)
	if !ok {
		rs.metrics.A2PMessages.WithLabelValues(metrics.A2POffline).Inc()
		rs.log.Info("A2P recipient offline", zap.String("recipient", recipient))
		return netip.AddrPort{}, ErrRecipientOffline
	}

	if senderLabel == "" {
		senderLabel = rs.config.DefaultSender
	}

	msg := protocol.NewMessageRequest(protocol.MessageParams{
		Target:  recipient,
		ViaHost: viaHost,
		Branch:  protocol.NewBranch("a2p"),
		From:    senderLabel,
		To:      recipient,
		CallID:  protocol.NewCallID("a2p"),
		Body:    body,
	})
	if err := rs.send(msg, endpoint); errors.Is(err, ErrNotRunning) {
		return netip.AddrPort{}, err
	}

	rs.a2pSent.Add(1)
	rs.metrics.A2PMessages.WithLabelValues(metrics.A2PSent).Inc()
	rs.log.Info("📤 Sent A2P message",
		zap.String("sender", senderLabel),
		zap.String("recipient", recipient),
		zap.Stringer("endpoint", endpoint))

	return endpoint, nil
}

// ReadBacklog returns every stored message without consuming any
func (rs *RelayServer) ReadBacklog() (map[string][]storage.StoredMessage, error) {
	return rs.backlog.ReadAll()
}
