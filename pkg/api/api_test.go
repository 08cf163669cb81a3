package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ZentaChain/zentalk-smsc/pkg/metrics"
	"github.com/ZentaChain/zentalk-smsc/pkg/network"
	"github.com/ZentaChain/zentalk-smsc/pkg/protocol"
	"github.com/ZentaChain/zentalk-smsc/pkg/registrar"
	"github.com/ZentaChain/zentalk-smsc/pkg/storage"
)

type mockRelay struct {
	mock.Mock
	metrics *metrics.Metrics
}

func (m *mockRelay) SendApplicationMessage(recipient, body, senderLabel string) (netip.AddrPort, error) {
	args := m.Called(recipient, body, senderLabel)
	return args.Get(0).(netip.AddrPort), args.Error(1)
}

func (m *mockRelay) ReadBacklog() (map[string][]storage.StoredMessage, error) {
	args := m.Called()
	backlog, _ := args.Get(0).(map[string][]storage.StoredMessage)
	return backlog, args.Error(1)
}

func (m *mockRelay) Registrations() []registrar.Registration {
	args := m.Called()
	return args.Get(0).([]registrar.Registration)
}

func (m *mockRelay) GetStats() map[string]interface{} {
	args := m.Called()
	return args.Get(0).(map[string]interface{})
}

func (m *mockRelay) Metrics() *metrics.Metrics {
	return m.metrics
}

func newTestServer(t *testing.T) (*Server, *mockRelay) {
	t.Helper()
	relay := &mockRelay{metrics: metrics.New()}
	return NewServer(relay, DefaultConfig(), zaptest.NewLogger(t)), relay
}

func do(server *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	return w
}

func TestSendMessage(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		from       string
		endpoint   netip.AddrPort
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "delivered",
			body:       `{"to":"sip:bob@free5gc.org","body":"promo"}`,
			endpoint:   netip.MustParseAddrPort("10.0.0.6:5070"),
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"Sent","target":"10.0.0.6:5070"}`,
		},
		{
			name:       "custom sender",
			body:       `{"to":"sip:bob@free5gc.org","body":"promo","from":"sip:bank@smsc"}`,
			from:       "sip:bank@smsc",
			endpoint:   netip.MustParseAddrPort("10.0.0.6:5070"),
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"Sent","target":"10.0.0.6:5070"}`,
		},
		{
			name:       "recipient offline",
			body:       `{"to":"sip:bob@free5gc.org","body":"promo"}`,
			err:        network.ErrRecipientOffline,
			wantStatus: http.StatusNotFound,
			wantBody:   `{"status":"Failed","error":"Recipient offline"}`,
		},
		{
			name:       "listener down",
			body:       `{"to":"sip:bob@free5gc.org","body":"promo"}`,
			err:        network.ErrNotRunning,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"Failed","error":"SIP listener not running"}`,
		},
		{
			name:       "unexpected error",
			body:       `{"to":"sip:bob@free5gc.org","body":"promo"}`,
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"status":"Failed","error":"boom"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, relay := newTestServer(t)
			relay.On("SendApplicationMessage", "sip:bob@free5gc.org", "promo", tt.from).
				Return(tt.endpoint, tt.err).Once()

			w := do(server, "POST", "/sms/send", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
			relay.AssertExpectations(t)
		})
	}
}

func TestSendMessageValidation(t *testing.T) {
	bodies := map[string]string{
		"missing to":   `{"body":"promo"}`,
		"missing body": `{"to":"bob"}`,
		"empty body":   `{"to":"bob","body":""}`,
		"not json":     `to=bob&body=promo`,
		"empty object": `{}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server, relay := newTestServer(t)

			w := do(server, "POST", "/sms/send", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"Missing 'to' or 'body'"}`, w.Body.String())
			relay.AssertNotCalled(t, "SendApplicationMessage", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSendMessageRejectsLineBreaks(t *testing.T) {
	server, relay := newTestServer(t)
	relay.On("SendApplicationMessage", "bob", "promo", "sip:bank@smsc\r\nContent-Length: 4").
		Return(netip.AddrPort{}, fmt.Errorf("sender label: %w", protocol.ErrInvalidValue)).Once()

	w := do(server, "POST", "/sms/send", `{"to":"bob","body":"promo","from":"sip:bank@smsc\r\nContent-Length: 4"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid 'to' or 'from'"}`, w.Body.String())
	relay.AssertExpectations(t)
}

func TestReadMessages(t *testing.T) {
	server, relay := newTestServer(t)
	received := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	relay.On("ReadBacklog").Return(map[string][]storage.StoredMessage{
		"sip:bob@free5gc.org": {
			{Sender: "sip:alice@free5gc.org", Body: "Are you there?", ReceivedAt: received},
			{Sender: "sip:carol@free5gc.org", Body: "ping", ReceivedAt: received.Add(time.Second)},
		},
	}, nil)

	w := do(server, "GET", "/sms/messages", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"sip:bob@free5gc.org": [
			{"from":"sip:alice@free5gc.org","body":"Are you there?","time":"2024-03-01T12:00:00.123456789Z"},
			{"from":"sip:carol@free5gc.org","body":"ping","time":"2024-03-01T12:00:01.123456789Z"}
		]
	}`, w.Body.String())
}

func TestReadMessagesRendersUTC(t *testing.T) {
	server, relay := newTestServer(t)
	received := time.Date(2024, 3, 1, 13, 0, 0, 5, time.FixedZone("CET", 3600))
	relay.On("ReadBacklog").Return(map[string][]storage.StoredMessage{
		"bob": {{Sender: "alice", Body: "hi", ReceivedAt: received}},
	}, nil)

	w := do(server, "GET", "/sms/messages", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"bob":[{"from":"alice","body":"hi","time":"2024-03-01T12:00:00.000000005Z"}]}`, w.Body.String())
}

func TestReadMessagesEmpty(t *testing.T) {
	server, relay := newTestServer(t)
	relay.On("ReadBacklog").Return(map[string][]storage.StoredMessage{}, nil)

	w := do(server, "GET", "/sms/messages", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
}

func TestReadMessagesError(t *testing.T) {
	server, relay := newTestServer(t)
	relay.On("ReadBacklog").Return(nil, storage.ErrClosed)

	w := do(server, "GET", "/sms/messages", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRegistrations(t *testing.T) {
	server, relay := newTestServer(t)
	relay.On("Registrations").Return([]registrar.Registration{
		{Identifier: "sip:zed@free5gc.org", Endpoint: netip.MustParseAddrPort("10.0.0.9:5060")},
		{Identifier: "sip:alice@free5gc.org", Endpoint: netip.MustParseAddrPort("10.0.0.5:5060")},
	})

	w := do(server, "GET", "/api/v1/registrations", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[
		{"identifier":"sip:alice@free5gc.org","endpoint":"10.0.0.5:5060"},
		{"identifier":"sip:zed@free5gc.org","endpoint":"10.0.0.9:5060"}
	]`, w.Body.String())
}

func TestRegistrationsEmpty(t *testing.T) {
	server, relay := newTestServer(t)
	relay.On("Registrations").Return([]registrar.Registration{})

	w := do(server, "GET", "/api/v1/registrations", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestStatsAndHealth(t *testing.T) {
	server, relay := newTestServer(t)
	relay.On("GetStats").Return(map[string]interface{}{
		"registrations":   2,
		"queued_messages": 1,
	})

	w := do(server, "GET", "/api/v1/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"registrations":2,"queued_messages":1}`, w.Body.String())

	w = do(server, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	server, relay := newTestServer(t)
	relay.metrics.Registrations.Set(3)

	w := do(server, "GET", "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "smsc_registrations 3")
}

func TestCORSPreflight(t *testing.T) {
	server, _ := newTestServer(t)

	w := do(server, "OPTIONS", "/sms/send", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSDisabled(t *testing.T) {
	config := DefaultConfig()
	config.EnableCORS = false
	server := NewServer(&mockRelay{}, config, nil)

	w := do(server, "GET", "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

// TestWithRelayServer drives a real relay through the HTTP surface
func TestWithRelayServer(t *testing.T) {
	config := network.DefaultConfig()
	config.ListenAddr = "127.0.0.1:0"
	relay := network.NewRelayServer(config, registrar.NewDirectory(), storage.NewMemoryBacklog())
	require.NoError(t, relay.Start())
	defer relay.Stop()

	server := NewServer(relay, DefaultConfig(), zaptest.NewLogger(t))

	w := do(server, "POST", "/sms/send", `{"to":"sip:bob@free5gc.org","body":"promo"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	bob, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer bob.Close()
	bobAddr := bob.LocalAddr().(*net.UDPAddr).AddrPort()
	bobAddr = netip.AddrPortFrom(bobAddr.Addr().Unmap(), bobAddr.Port())
	relay.Directory().Register("sip:bob@free5gc.org", bobAddr)

	w = do(server, "POST", "/sms/send", `{"to":"sip:bob@free5gc.org","body":"promo"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"Sent","target":"`+bobAddr.String()+`"}`, w.Body.String())

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(2*time.Second)))
	buffer := make([]byte, 4096)
	n, _, err := bob.ReadFromUDP(buffer)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(buffer[:n]), "\r\n\r\npromo"))

	w = do(server, "POST", "/sms/send", `{"to":"sip:bob@free5gc.org","body":"promo","from":"x\r\nContent-Length: 7\r\n\r\nPAY NOW"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(server, "GET", "/sms/messages", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())

	w = do(server, "GET", "/api/v1/registrations", "")
	assert.JSONEq(t, `[{"identifier":"sip:bob@free5gc.org","endpoint":"`+bobAddr.String()+`"}]`, w.Body.String())
}

func TestServeShutdown(t *testing.T) {
	server, _ := newTestServer(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
