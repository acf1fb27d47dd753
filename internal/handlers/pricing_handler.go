package handlers

import (
	"net/http"
	"strconv"
	"time"

	"booking-engine/internal/services"
	"booking-engine/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type PricingHandler struct {
	pricing *services.PricingEngine
}

func NewPricingHandler(pricing *services.PricingEngine) *PricingHandler {
	return &PricingHandler{pricing: pricing}
}

// Quote - GET /pricing/quote?kind=&quantity=&event_date=
func (h *PricingHandler) Quote(e *core.RequestEvent) error {
	if _, err := actorFromAuth(e); err != nil {
		return err
	}
	q := e.Request.URL.Query()

	kind, err := models.ParseKind(q.Get("kind"))
	if err != nil {
		return apis.NewBadRequestError(err.Error(), nil)
	}
	quantity, err := strconv.Atoi(q.Get("quantity"))
	if err != nil {
		return apis.NewBadRequestError("Quantity must be a number", nil)
	}
	var eventDate time.Time
	if v := q.Get("event_date"); v != "" {
		if eventDate, err = time.Parse(time.DateOnly, v); err != nil {
			return apis.NewBadRequestError("Event date must be YYYY-MM-DD", nil)
		}
	}

	quote, err := h.pricing.Quote(kind, quantity, eventDate)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, quote)
}
