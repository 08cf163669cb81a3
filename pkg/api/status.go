package api

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/ZentaChain/zentalk-smsc/pkg/registrar"
)

// RegistrationView is one directory entry
type RegistrationView struct {
	Identifier string `json:"identifier"`
	Endpoint   string `json:"endpoint"`
}

// handleRegistrations handles GET /api/v1/registrations
func (s *Server) handleRegistrations(c *gin.Context) {
	views := lo.Map(s.relay.Registrations(), func(r registrar.Registration, _ int) RegistrationView {
		return RegistrationView{
			Identifier: r.Identifier,
			Endpoint:   r.Endpoint.String(),
		}
	})
	slices.SortFunc(views, func(a, b RegistrationView) int {
		return strings.Compare(a.Identifier, b.Identifier)
	})

	c.JSON(http.StatusOK, views)
}

// handleStats handles GET /api/v1/stats
func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.relay.GetStats())
}

// handleHealth handles GET /health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
