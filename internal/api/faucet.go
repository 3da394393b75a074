package api

import (
	"math"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/artiswap/sui-faucet/internal/dispense"
	"github.com/artiswap/sui-faucet/internal/quota"
)

// walletAddressRe is the syntactic check for a Sui address. Anything
// failing it is rejected before the pipeline sees the request.
var walletAddressRe = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)

type faucetRequest struct {
	WalletAddress string `json:"walletAddress"`
}

func (s *Server) handleFaucet(c *gin.Context) {
	var body faucetRequest
	if err := c.ShouldBindJSON(&body); err != nil || !walletAddressRe.MatchString(body.WalletAddress) {
		log.Warnf("faucet: invalid request from %s", c.Request.RemoteAddr)
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Invalid request: walletAddress must match ^0x[a-fA-F0-9]{64}$",
		})
		return
	}

	req := dispense.Request{
		WalletAddress: body.WalletAddress,
		OriginKey:     s.originKey(c),
		UserAgent:     c.Request.UserAgent(),
	}

	result := s.dispenser.Dispense(c.Request.Context(), req)
	switch result.Status {
	case dispense.StatusTransferSucceeded:
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "SUI tokens sent successfully",
			"tx":      result.TxDigest,
		})
	case dispense.StatusServiceDisabled:
		c.JSON(http.StatusForbidden, gin.H{
			"status": "error",
			"code":   result.Status,
			"error":  "Faucet is disabled",
		})
	case dispense.StatusOriginQuota, dispense.StatusDestinationQuota:
		retryAfter := int64(math.Ceil(result.RetryAfter.Seconds()))
		if retryAfter < 0 {
			retryAfter = 0
		}
		c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"status":     "error",
			"code":       result.Status,
			"retryAfter": retryAfter,
			"retryAt":    time.Now().UTC().Add(result.RetryAfter).Format(time.RFC3339),
			"error":      "Rate limit exceeded. Please try again later.",
		})
	case dispense.StatusTransferFailed:
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"code":   result.Status,
			"error":  "Failed to send SUI tokens",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"code":   dispense.StatusInternalError,
			"error":  "Internal server error",
		})
	}
}

func (s *Server) handleBalance(c *gin.Context) {
	balance, err := s.balances.Read(c.Request.Context())
	if err != nil {
		log.Errorf("faucet: balance read failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "error": "Failed to fetch faucet balance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "balance": balance})
}

// originKey derives the origin quota key. Forwarded headers are only
// honored when the service is configured as sitting behind a trusted
// proxy; otherwise the transport address wins.
func (s *Server) originKey(c *gin.Context) string {
	if s.trustForwardedFor {
		return quota.OriginKey(
			c.GetHeader("X-Forwarded-For"),
			c.GetHeader("X-Real-IP"),
			c.Request.RemoteAddr)
	}
	return quota.OriginKey("", "", c.Request.RemoteAddr)
}
