// Package api exposes the faucet over HTTP. Handlers are thin
// adapters: validation and response shaping here, everything else in
// the dispense pipeline and its collaborators.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/artiswap/sui-faucet/internal/dispense"
	"github.com/artiswap/sui-faucet/internal/ledger"
	"github.com/artiswap/sui-faucet/internal/policy"
	"github.com/artiswap/sui-faucet/internal/transfer"
)

// Dispenser runs one request through the pipeline.
type Dispenser interface {
	Dispense(ctx context.Context, req dispense.Request) dispense.Result
}

// PolicyAdmin persists policy updates and reloads the live snapshot.
type PolicyAdmin interface {
	UpdatePolicy(ctx context.Context, u *policy.Update) error
}

// PolicyReloader swaps the live policy snapshot.
type PolicyReloader interface {
	Reload(ctx context.Context) error
	Get() (*policy.Policy, error)
}

// Analytics serves the admin read side of the ledger.
type Analytics interface {
	Summarize(ctx context.Context) (*ledger.Summary, error)
	Timeseries(ctx context.Context, granularity string, window time.Duration) ([]ledger.Bucket, error)
}

// Balances reads the faucet wallet balance.
type Balances interface {
	Read(ctx context.Context) (*transfer.Balance, error)
}

// Server bundles the handler dependencies.
type Server struct {
	dispenser         Dispenser
	policyAdmin       PolicyAdmin
	policies          PolicyReloader
	analytics         Analytics
	balances          Balances
	adminToken        string
	trustForwardedFor bool
}

// NewServer constructs the handler set.
func NewServer(dispenser Dispenser, policyAdmin PolicyAdmin, policies PolicyReloader,
	analytics Analytics, balances Balances, adminToken string, trustForwardedFor bool) *Server {
	return &Server{
		dispenser:         dispenser,
		policyAdmin:       policyAdmin,
		policies:          policies,
		analytics:         analytics,
		balances:          balances,
		adminToken:        adminToken,
		trustForwardedFor: trustForwardedFor,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "sui-faucet up"})
	})

	apiGroup := r.Group("/api")
	apiGroup.POST("/faucet", s.handleFaucet)
	apiGroup.GET("/faucet/balance", s.handleBalance)

	admin := apiGroup.Group("/admin", s.requireAdmin)
	admin.POST("/config/update", s.handleConfigUpdate)
	admin.GET("/analytics", s.handleAnalytics)
	admin.GET("/analytics/timeseries", s.handleTimeseries)

	return r
}
