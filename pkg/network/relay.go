package network

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ZentaChain/zentalk-smsc/pkg/logging"
	"github.com/ZentaChain/zentalk-smsc/pkg/metrics"
	"github.com/ZentaChain/zentalk-smsc/pkg/protocol"
	"github.com/ZentaChain/zentalk-smsc/pkg/registrar"
	"github.com/ZentaChain/zentalk-smsc/pkg/storage"
)

var (
	ErrRecipientOffline = errors.New("recipient offline")
	ErrNotRunning       = errors.New("relay server not running")
	ErrAlreadyRunning   = errors.New("relay server already running")
)

// Transport writes one datagram. *net.UDPConn satisfies it and is safe for
// concurrent writers, which the control plane relies on.
type Transport interface {
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)
}

// Config holds relay server configuration
type Config struct {
	ListenAddr     string // UDP address to bind, e.g. "0.0.0.0:5060"
	AdvertiseAddr  string // host:port written into Via; the socket address when empty
	ReadBufferSize int    // largest datagram accepted
	DefaultSender  string // From used by application-originated messages without a label
}

// DefaultConfig returns default relay configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     fmt.Sprintf("0.0.0.0:%d", protocol.DefaultPort),
		ReadBufferSize: 4096,
		DefaultSender:  "sip:marketing@smsc",
	}
}

// RelayServer is the SMSC core: a UDP registrar and message relay.
//
// Inbound datagrams are handled one at a time by a single listener
// goroutine. The control-plane methods (SendApplicationMessage,
// ReadBacklog, GetStats) may be called concurrently from any goroutine;
// the directory and the backlog synchronize themselves.
type RelayServer struct {
	config    *Config
	directory *registrar.Directory
	backlog   storage.Backlog
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time

	conn      *net.UDPConn
	transport Transport
	viaHost   string
	done      chan struct{}
	mu        sync.RWMutex

	startTime time.Time

	// Statistics
	packetsReceived   atomic.Uint64
	malformedPackets  atomic.Uint64
	messagesForwarded atomic.Uint64
	messagesStored    atomic.Uint64
	a2pSent           atomic.Uint64
}

// NewRelayServer creates a relay server over the given directory and backlog
func NewRelayServer(config *Config, directory *registrar.Directory, backlog storage.Backlog) *RelayServer {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = DefaultConfig().ReadBufferSize
	}
	if config.DefaultSender == "" {
		config.DefaultSender = DefaultConfig().DefaultSender
	}

	return &RelayServer{
		config:    config,
		directory: directory,
		backlog:   backlog,
		metrics:   metrics.New(),
		log:       zap.NewNop(),
		now:       time.Now,
		startTime: time.Now(),
	}
}

// AttachLogger sets the logger used for relay events
func (rs *RelayServer) AttachLogger(log *zap.Logger) {
	rs.log = logging.OrNop(log).Named("relay")
}

// AttachMetrics replaces the relay's collectors
func (rs *RelayServer) AttachMetrics(m *metrics.Metrics) {
	if m != nil {
		rs.metrics = m
	}
}

// Metrics returns the relay's collectors
func (rs *RelayServer) Metrics() *metrics.Metrics {
	return rs.metrics
}

// Directory returns the registration directory
func (rs *RelayServer) Directory() *registrar.Directory {
	return rs.directory
}

// Registrations returns a copy of the directory
func (rs *RelayServer) Registrations() []registrar.Registration {
	return rs.directory.Snapshot()
}

// Start binds the UDP socket and starts the listener loop
func (rs *RelayServer) Start() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.conn != nil {
		return ErrAlreadyRunning
	}

	addr, err := net.ResolveUDPAddr("udp", rs.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", rs.config.ListenAddr, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", rs.config.ListenAddr, err)
	}

	rs.conn = conn
	rs.transport = conn
	rs.viaHost = rs.config.AdvertiseAddr
	if rs.viaHost == "" {
		rs.viaHost = conn.LocalAddr().String()
	}
	rs.done = make(chan struct{})

	rs.log.Info("📡 SIP listener started",
		zap.String("addr", conn.LocalAddr().String()),
		zap.String("via", rs.viaHost))

	go rs.listenLoop(conn, rs.done)

	return nil
}

// Stop closes the socket and waits for the listener loop to exit
func (rs *RelayServer) Stop() error {
	rs.mu.Lock()
	conn, done := rs.conn, rs.done
	rs.conn = nil
	rs.transport = nil
	rs.mu.Unlock()

	if conn == nil {
		return nil
	}

	err := conn.Close()
	<-done
	rs.log.Info("SIP listener stopped")
	return err
}

// LocalAddr returns the bound socket address, or nil when not running
func (rs *RelayServer) LocalAddr() *net.UDPAddr {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	if rs.conn == nil {
		return nil
	}
	return rs.conn.LocalAddr().(*net.UDPAddr)
}

// outbound returns the current transport and Via host
func (rs *RelayServer) outbound() (Transport, string) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.transport, rs.viaHost
}

// GetStats returns relay statistics
func (rs *RelayServer) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"registrations":      rs.directory.Len(),
		"packets_received":   rs.packetsReceived.Load(),
		"malformed_packets":  rs.malformedPackets.Load(),
		"messages_forwarded": rs.messagesForwarded.Load(),
		"messages_stored":    rs.messagesStored.Load(),
		"a2p_sent":           rs.a2pSent.Load(),
		"uptime_seconds":     uint64(time.Since(rs.startTime).Seconds()),
	}

	if queued, err := rs.backlog.Count(); err == nil {
		stats["queued_messages"] = queued
	}

	return stats
}
