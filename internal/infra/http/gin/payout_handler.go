package ginserver

import (
	"errors"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	PayoutApp "staybook/internal/app/handlers/payout"
	"staybook/internal/app/queries"
	domainpayout "staybook/internal/domain/payout"
)

// PayoutHandler exposes the operator surface for walking payouts through the
// transfer lifecycle.
type PayoutHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type failPayoutRequest struct {
	Reason string `json:"reason"`
}

func (h PayoutHandler) Begin(c *gin.Context)  { h.advance(c, "begin") }
func (h PayoutHandler) Settle(c *gin.Context) { h.advance(c, "settle") }
func (h PayoutHandler) Retry(c *gin.Context)  { h.advance(c, "retry") }

func (h PayoutHandler) Fail(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	var req failPayoutRequest
	_ = c.ShouldBindJSON(&req)
	h.dispatch(c, PayoutApp.AdvanceCommand{BookingID: c.Param("booking_id"), Action: "fail", Reason: req.Reason})
}

func (h PayoutHandler) advance(c *gin.Context, action string) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	h.dispatch(c, PayoutApp.AdvanceCommand{BookingID: c.Param("booking_id"), Action: action})
}

func (h PayoutHandler) dispatch(c *gin.Context, cmd PayoutApp.AdvanceCommand) {
	result, err := commands.Dispatch[PayoutApp.AdvanceCommand, *PayoutApp.AdvanceResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondPayoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PayoutHandler) Get(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	result, err := queries.Ask[PayoutApp.ByBookingQuery, *dto.PayoutView](c.Request.Context(), h.Queries, PayoutApp.ByBookingQuery{BookingID: c.Param("booking_id")})
	if err != nil {
		respondPayoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PayoutHandler) ListDue(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	query := PayoutApp.DueQuery{}
	if raw := c.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before timestamp: " + err.Error()})
			return
		}
		query.Before = before
	}
	result, err := queries.Ask[PayoutApp.DueQuery, *PayoutApp.DueResult](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondPayoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func respondPayoutError(c *gin.Context, err error) {
	var invalid *domainpayout.InvalidTransitionError
	switch {
	case errors.Is(err, domainpayout.ErrPayoutNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

var _ PayoutHTTP = PayoutHandler{}
