package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/ZentaChain/zentalk-smsc/pkg/network"
	"github.com/ZentaChain/zentalk-smsc/pkg/protocol"
	"github.com/ZentaChain/zentalk-smsc/pkg/storage"
)

const (
	statusSent   = "Sent"
	statusFailed = "Failed"
)

// SendRequest represents an application-originated message
type SendRequest struct {
	To   string `json:"to" binding:"required"`
	Body string `json:"body" binding:"required"`
	From string `json:"from"` // Optional sender label
}

// SendResponse reports the outcome of a send
type SendResponse struct {
	Status string `json:"status"`
	Target string `json:"target,omitempty"` // ip:port the message went to
	Error  string `json:"error,omitempty"`
}

// MessageView is one backlog entry as returned by the API
type MessageView struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time string `json:"time"` // RFC 3339 with nanoseconds
}

// handleSend handles POST /sms/send
func (s *Server) handleSend(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing 'to' or 'body'"})
		return
	}

	endpoint, err := s.relay.SendApplicationMessage(req.To, req.Body, req.From)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, SendResponse{
			Status: statusSent,
			Target: endpoint.String(),
		})

	case errors.Is(err, protocol.ErrInvalidValue):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid 'to' or 'from'"})

	case errors.Is(err, network.ErrRecipientOffline):
		c.JSON(http.StatusNotFound, SendResponse{
			Status: statusFailed,
			Error:  "Recipient offline",
		})

	case errors.Is(err, network.ErrNotRunning):
		c.JSON(http.StatusServiceUnavailable, SendResponse{
			Status: statusFailed,
			Error:  "SIP listener not running",
		})

	default:
		s.log.Error("Application send failed", zap.String("recipient", req.To), zap.Error(err))
		c.JSON(http.StatusInternalServerError, SendResponse{
			Status: statusFailed,
			Error:  err.Error(),
		})
	}
}

// handleMessages handles GET /sms/messages
func (s *Server) handleMessages(c *gin.Context) {
	backlog, err := s.relay.ReadBacklog()
	if err != nil {
		s.log.Error("Failed to read backlog", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to read backlog"})
		return
	}

	c.JSON(http.StatusOK, toMessageViews(backlog))
}

func toMessageViews(backlog map[string][]storage.StoredMessage) map[string][]MessageView {
	return lo.MapValues(backlog, func(msgs []storage.StoredMessage, _ string) []MessageView {
		return lo.Map(msgs, func(m storage.StoredMessage, _ int) MessageView {
			return MessageView{
				From: m.Sender,
				Body: m.Body,
				Time: m.ReceivedAt.UTC().Format(time.RFC3339Nano),
			}
		})
	})
}
