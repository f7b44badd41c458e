package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-souk/internal/catalog"
	"github.com/noah-isme/backend-souk/internal/common"
	"github.com/noah-isme/backend-souk/internal/obs"
	"github.com/noah-isme/backend-souk/internal/order"
	"github.com/noah-isme/backend-souk/internal/payment"
	"github.com/noah-isme/backend-souk/internal/settings"
	"github.com/noah-isme/backend-souk/internal/shipping"
)

// ItemRef is one opaque cart line reference. The id may name a product or a
// variant; the resolver decides which.
type ItemRef struct {
	ItemID string `json:"itemId" validate:"required"`
	Qty    int    `json:"qty" validate:"required,min=1"`
}

// Addr is the shipping destination pushed onto the payment authorization.
type Addr struct {
	Name       string `json:"name"`
	Line1      string `json:"line1" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required,len=2"`
}

// Input is the quote request payload.
type Input struct {
	PaymentIntentID string    `json:"paymentIntentId" validate:"required"`
	Items           []ItemRef `json:"items" validate:"required,min=1,dive"`
	Destination     Addr      `json:"destination" validate:"required"`
}

// Output is the priced result returned to the storefront. Message repeats the
// removed-items information in prose for older clients; RemovedItemIDs is the
// canonical field.
type Output struct {
	OrderID                string   `json:"orderId"`
	ShippingCostMinorUnits int64    `json:"shippingCostMinorUnits"`
	TaxMinorUnits          int64    `json:"taxMinorUnits"`
	GrandTotalMinorUnits   int64    `json:"grandTotalMinorUnits"`
	FreeShipping           bool     `json:"freeShipping"`
	RemovedItemIDs         []string `json:"removedItemIds,omitempty"`
	Message                string   `json:"message,omitempty"`
}

// ItemResolver resolves an opaque cart reference against the live catalog.
type ItemResolver interface {
	Resolve(ctx context.Context, itemID string) (catalog.Item, error)
}

// RulesSource provides the current shipping policy record.
type RulesSource interface {
	ShippingRules(ctx context.Context) (settings.ShippingRules, error)
}

// OrderWriter persists the pending order the payment webhook later settles.
type OrderWriter interface {
	UpsertPending(ctx context.Context, o order.Order) (uuid.UUID, error)
}

// Service recomputes the full price for a cart and synchronises the result
// onto the pending payment authorization. Every call re-resolves catalog state
// and settings; nothing is trusted from the client beyond ids and quantities.
type Service struct {
	Catalog    ItemResolver
	Engine     *shipping.Engine
	Settings   RulesSource
	Orders     OrderWriter
	Authorizer payment.Authorizer
	Validate   *validator.Validate
	Currency   string
	Provider   string
}

// Quote prices the cart and pushes the amount onto the payment authorization.
func (s *Service) Quote(ctx context.Context, in Input) (Output, error) {
	if s == nil || s.Catalog == nil || s.Engine == nil || s.Settings == nil || s.Orders == nil || s.Authorizer == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	started := time.Now()
	result := "ok"
	defer func() {
		if obs.QuoteTotal != nil {
			obs.QuoteTotal.WithLabelValues(result).Inc()
		}
		if obs.QuoteDuration != nil {
			obs.QuoteDuration.WithLabelValues(result).Observe(float64(time.Since(started).Milliseconds()))
		}
	}()

	if s.Validate != nil {
		if err := s.Validate.Struct(in); err != nil {
			result = "invalid"
			return Output{}, &common.AppError{
				Code:       "VALIDATION_ERROR",
				Message:    "invalid quote request",
				HTTPStatus: http.StatusBadRequest,
				Err:        err,
			}
		}
	}

	lines, orderLines, removed, err := s.resolveLines(ctx, in.Items)
	if err != nil {
		result = "error"
		return Output{}, err
	}
	if len(lines) == 0 {
		result = "no_valid_items"
		return Output{}, &common.AppError{
			Code:       "NO_VALID_ITEMS",
			Message:    "no valid items left to price",
			HTTPStatus: http.StatusUnprocessableEntity,
			Details:    map[string]any{"removedItemIds": removed},
		}
	}

	record, err := s.Settings.ShippingRules(ctx)
	if err != nil {
		result = "error"
		return Output{}, retryable("SETTINGS_STORE_ERROR", err)
	}

	quote, err := s.Engine.Quote(ctx, lines, in.Destination.Country, record.Rules())
	if err != nil {
		result = "error"
		return Output{}, retryable("RATE_STORE_ERROR", err)
	}

	destination, err := json.Marshal(in.Destination)
	if err != nil {
		result = "error"
		return Output{}, fmt.Errorf("encode destination: %w", err)
	}
	audit, err := json.Marshal(auditPayload(quote, removed))
	if err != nil {
		result = "error"
		return Output{}, fmt.Errorf("encode audit payload: %w", err)
	}

	orderID, err := s.Orders.UpsertPending(ctx, order.Order{
		AuthorizationID: in.PaymentIntentID,
		Currency:        s.Currency,
		AmountMinor:     quote.GrandTotal,
		ShippingMinor:   quote.Shipping,
		TaxMinor:        quote.Tax,
		Destination:     destination,
		Audit:           audit,
		Lines:           orderLines,
	})
	if errors.Is(err, order.ErrOrderNotPending) {
		result = "settled"
		return Output{}, &common.AppError{
			Code:       "ALREADY_SETTLED",
			Message:    "payment already settled for this authorization",
			HTTPStatus: http.StatusConflict,
			Err:        err,
		}
	}
	if err != nil {
		result = "error"
		return Output{}, retryable("ORDER_STORE_ERROR", err)
	}

	syncResult := "ok"
	err = s.Authorizer.UpdateAuthorization(ctx, payment.AuthorizationUpdate{
		AuthorizationID: in.PaymentIntentID,
		AmountMinor:     quote.GrandTotal,
		Currency:        s.Currency,
		Destination: payment.Destination{
			Name:       in.Destination.Name,
			Line1:      in.Destination.Line1,
			City:       in.Destination.City,
			PostalCode: in.Destination.PostalCode,
			Country:    in.Destination.Country,
		},
		Metadata: map[string]string{
			"orderId":       orderID.String(),
			"itemCount":     strconv.Itoa(len(lines)),
			"shippingMinor": strconv.FormatInt(quote.Shipping, 10),
			"taxMinor":      strconv.FormatInt(quote.Tax, 10),
			"freeShipping":  strconv.FormatBool(quote.FreeShipping),
		},
	})
	if err != nil {
		syncResult = "error"
	}
	if obs.PaymentSyncTotal != nil {
		obs.PaymentSyncTotal.WithLabelValues(s.Provider, syncResult).Inc()
	}
	if err != nil {
		result = "error"
		return Output{}, &common.AppError{
			Code:       "PAYMENT_SYNC_ERROR",
			Message:    "could not calculate shipping, please retry",
			HTTPStatus: http.StatusBadGateway,
			Err:        err,
		}
	}

	out := Output{
		OrderID:                orderID.String(),
		ShippingCostMinorUnits: quote.Shipping,
		TaxMinorUnits:          quote.Tax,
		GrandTotalMinorUnits:   quote.GrandTotal,
		FreeShipping:           quote.FreeShipping,
		RemovedItemIDs:         removed,
	}
	if len(removed) > 0 {
		result = "partial"
		out.Message = "some items are no longer available and were removed from your cart: " + strings.Join(removed, ", ")
	}
	return out, nil
}

// resolveLines re-resolves every cart reference. Stale references are dropped
// and reported; any other resolver failure aborts the quote.
func (s *Service) resolveLines(ctx context.Context, refs []ItemRef) ([]shipping.Line, []order.Line, []string, error) {
	lines := make([]shipping.Line, 0, len(refs))
	orderLines := make([]order.Line, 0, len(refs))
	var removed []string
	for _, ref := range refs {
		item, err := s.Catalog.Resolve(ctx, ref.ItemID)
		if errors.Is(err, catalog.ErrItemNotFound) {
			removed = append(removed, ref.ItemID)
			continue
		}
		if err != nil {
			return nil, nil, nil, retryable("CATALOG_STORE_ERROR", err)
		}
		lines = append(lines, item.Line(ref.ItemID, ref.Qty))
		orderLines = append(orderLines, order.Line{ItemID: item.ID, Kind: string(item.Kind), Qty: ref.Qty})
	}
	return lines, orderLines, removed, nil
}

func retryable(code string, err error) *common.AppError {
	return &common.AppError{
		Code:       code,
		Message:    "could not calculate shipping, please retry",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func auditPayload(q shipping.Quote, removed []string) map[string]any {
	groups := make([]map[string]any, 0, len(q.Groups))
	for _, g := range q.Groups {
		groups = append(groups, map[string]any{
			"origin":        g.Origin,
			"billableGrams": g.BillableGrams,
			"baseCost":      g.BaseCost,
			"surcharge":     g.Surcharge,
		})
	}
	return map[string]any{
		"subtotal":       q.Subtotal,
		"shipping":       q.Shipping,
		"tax":            q.Tax,
		"grandTotal":     q.GrandTotal,
		"freeShipping":   q.FreeShipping,
		"groups":         groups,
		"removedItemIds": removed,
	}
}
