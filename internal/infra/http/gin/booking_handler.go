package ginserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	pricingapp "staybook/internal/app/handlers/pricing"
	"staybook/internal/app/queries"
	domainbooking "staybook/internal/domain/booking"
	domaincatalog "staybook/internal/domain/catalog"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type createBookingRequest struct {
	PropertyID string    `json:"property_id"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	Adults     int       `json:"adults"`
	Children   int       `json:"children"`
	Infants    int       `json:"infants"`
}

func (h BookingHandler) Create(c *gin.Context) {
	guestID, ok := requireGuest(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		CommandID:       generateCommandID(),
		PropertyID:      req.PropertyID,
		GuestID:         guestID,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		Adults:          req.Adults,
		Children:        req.Children,
		Infants:         req.Infants,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *bookingapp.CreateBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Accept(c *gin.Context) {
	hostID, ok := requireHost(c)
	if !ok {
		return
	}
	cmd := bookingapp.AcceptBookingCommand{HostID: hostID, BookingID: c.Param("id")}
	result, err := commands.Dispatch[bookingapp.AcceptBookingCommand, *bookingapp.HostActionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type declineBookingRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Decline(c *gin.Context) {
	hostID, ok := requireHost(c)
	if !ok {
		return
	}
	var req declineBookingRequest
	_ = c.ShouldBindJSON(&req)
	cmd := bookingapp.DeclineBookingCommand{HostID: hostID, BookingID: c.Param("id"), Reason: req.Reason}
	result, err := commands.Dispatch[bookingapp.DeclineBookingCommand, *bookingapp.HostActionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Cancel(c *gin.Context) {
	actor, actorID, ok := cancellingActor(c)
	if !ok {
		return
	}
	var req cancelBookingRequest
	_ = c.ShouldBindJSON(&req)
	cmd := bookingapp.CancelBookingCommand{
		BookingID:       c.Param("id"),
		Actor:           actor,
		ActorID:         actorID,
		Reason:          req.Reason,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, *bookingapp.CancelBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// cancellingActor resolves who is cancelling from the identity headers; the
// most privileged role present wins.
func cancellingActor(c *gin.Context) (domainbooking.Actor, string, bool) {
	if id := c.GetHeader(headerAdminID); id != "" {
		return domainbooking.ActorAdmin, id, true
	}
	if id := c.GetHeader(headerHostID); id != "" {
		return domainbooking.ActorHost, id, true
	}
	if id := c.GetHeader(headerGuestID); id != "" {
		return domainbooking.ActorGuest, id, true
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": "caller identity header required"})
	return "", "", false
}

func (h BookingHandler) Complete(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	cmd := bookingapp.CompleteBookingCommand{BookingID: c.Param("id")}
	result, err := commands.Dispatch[bookingapp.CompleteBookingCommand, *bookingapp.CompleteBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) NoShow(c *gin.Context) {
	hostID, ok := requireHost(c)
	if !ok {
		return
	}
	cmd := bookingapp.MarkNoShowCommand{HostID: hostID, BookingID: c.Param("id")}
	result, err := commands.Dispatch[bookingapp.MarkNoShowCommand, *bookingapp.HostActionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListMine(c *gin.Context) {
	guestID, ok := requireGuest(c)
	if !ok {
		return
	}
	result, err := queries.Ask[bookingapp.GuestBookingsQuery, *dto.BookingCollection](c.Request.Context(), h.Queries, bookingapp.GuestBookingsQuery{GuestID: guestID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	result, err := queries.Ask[bookingapp.BookingByIDQuery, *dto.BookingView](c.Request.Context(), h.Queries, bookingapp.BookingByIDQuery{BookingID: c.Param("id")})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) RefundPreview(c *gin.Context) {
	query := bookingapp.RefundPreviewQuery{BookingID: c.Param("id")}
	if raw := c.Query("at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid at timestamp: " + err.Error()})
			return
		}
		query.At = at
	}
	result, err := queries.Ask[bookingapp.RefundPreviewQuery, *bookingapp.RefundPreviewResult](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Quote(c *gin.Context) {
	checkIn, err := time.Parse(time.RFC3339, c.Query("check_in"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid check_in: " + err.Error()})
		return
	}
	checkOut, err := time.Parse(time.RFC3339, c.Query("check_out"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid check_out: " + err.Error()})
		return
	}
	query := pricingapp.QuoteStayQuery{
		PropertyID: c.Query("property_id"),
		CheckIn:    checkIn,
		CheckOut:   checkOut,
	}
	result, err := queries.Ask[pricingapp.QuoteStayQuery, *pricingapp.QuoteStayResult](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func respondError(c *gin.Context, err error) {
	var illegal *domainbooking.IllegalTransitionError
	switch {
	case errors.Is(err, domainbooking.ErrBookingNotFound),
		errors.Is(err, domaincatalog.ErrPropertyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &illegal):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, bookingapp.ErrBookingNotOwned),
		errors.Is(err, bookingapp.ErrNotBookingGuest):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func generateCommandID() string {
	return uuid.NewString()
}

var _ BookingHTTP = BookingHandler{}
