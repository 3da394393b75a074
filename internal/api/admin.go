package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/artiswap/sui-faucet/internal/policy"
)

// requireAdmin guards the admin group with a shared bearer token.
func (s *Server) requireAdmin(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || s.adminToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

type configUpdateRequest struct {
	CooldownSeconds      *int64   `json:"cooldownSeconds"`
	FaucetAmount         *float64 `json:"faucetAmount"`
	Enabled              *bool    `json:"enabled"`
	MaxRequestsPerIP     *int64   `json:"maxRequestsPerIp"`
	MaxRequestsPerWallet *int64   `json:"maxRequestsPerWallet"`
}

func (s *Server) handleConfigUpdate(c *gin.Context) {
	var body configUpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "detail": err.Error()})
		return
	}

	update := &policy.Update{
		CooldownSeconds: body.CooldownSeconds,
		AmountSui:       body.FaucetAmount,
		Enabled:         body.Enabled,
		OriginPoints:    body.MaxRequestsPerIP,
		WalletPoints:    body.MaxRequestsPerWallet,
	}
	if err := s.policyAdmin.UpdatePolicy(c.Request.Context(), update); err != nil {
		log.Errorf("admin: policy update failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to update faucet config", "detail": err.Error()})
		return
	}
	if err := s.policies.Reload(c.Request.Context()); err != nil {
		log.Errorf("admin: policy reload failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Config saved but reload failed"})
		return
	}

	current, err := s.policies.Get()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Config reloaded but unreadable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "config": current})
}

func (s *Server) handleAnalytics(c *gin.Context) {
	summary, err := s.analytics.Summarize(c.Request.Context())
	if err != nil {
		log.Errorf("admin: analytics failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analytics"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

var timeseriesRanges = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

func (s *Server) handleTimeseries(c *gin.Context) {
	rangeName := c.DefaultQuery("range", "7d")
	granularity := c.DefaultQuery("granularity", "daily")

	window, ok := timeseriesRanges[rangeName]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "range must be one of 24h, 7d, 30d"})
		return
	}
	if granularity != "daily" && granularity != "hourly" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "granularity must be daily or hourly"})
		return
	}

	buckets, err := s.analytics.Timeseries(c.Request.Context(), granularity, window)
	if err != nil {
		log.Errorf("admin: timeseries failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch time-series analytics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"granularity": granularity, "range": rangeName, "data": buckets})
}
