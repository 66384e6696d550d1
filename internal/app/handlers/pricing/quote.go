package pricing

import (
	"context"
	"errors"
	"strings"
	"time"

	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/catalog"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
)

const quoteStayKey = "pricing.quote"

// QuoteStayQuery prices a stay without creating a booking, so a guest can see
// the full breakdown before committing.
type QuoteStayQuery struct {
	PropertyID string
	CheckIn    time.Time
	CheckOut   time.Time
}

func (q QuoteStayQuery) Key() string { return quoteStayKey }

type QuoteStayResult struct {
	PropertyID         string          `json:"property_id"`
	CheckIn            time.Time       `json:"check_in"`
	CheckOut           time.Time       `json:"check_out"`
	CancellationPolicy string          `json:"cancellation_policy"`
	Pricing            dto.PricingView `json:"pricing"`
}

type QuoteStayHandler struct {
	Factory uow.UoWFactory
}

func (h *QuoteStayHandler) Handle(ctx context.Context, query QuoteStayQuery) (*QuoteStayResult, error) {
	propertyID := strings.TrimSpace(query.PropertyID)
	if propertyID == "" {
		return nil, errors.New("pricing: property id is required")
	}
	dr, err := daterange.New(query.CheckIn, query.CheckOut)
	if err != nil {
		return nil, err
	}

	unit, execCtx, release, err := support.BeginReadOnlyUnit(ctx, h.Factory)
	if err != nil {
		return nil, err
	}
	if release != nil {
		defer release()
	}

	property, err := unit.Properties().ByID(execCtx, catalog.PropertyID(propertyID))
	if err != nil {
		return nil, err
	}
	if property.State != catalog.PropertyActive {
		return nil, catalog.ErrPropertyInactive
	}

	breakdown, err := pricing.QuoteForStay(property, dr)
	if err != nil {
		return nil, err
	}
	policy, err := booking.ParsePolicyType(property.CancellationPolicy)
	if err != nil {
		return nil, err
	}

	return &QuoteStayResult{
		PropertyID:         propertyID,
		CheckIn:            dr.CheckIn,
		CheckOut:           dr.CheckOut,
		CancellationPolicy: string(policy),
		Pricing:            dto.MapPricing(breakdown),
	}, nil
}

var _ queries.Handler[QuoteStayQuery, *QuoteStayResult] = (*QuoteStayHandler)(nil)
