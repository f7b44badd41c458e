package checkout_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-souk/internal/catalog"
	"github.com/noah-isme/backend-souk/internal/checkout"
	"github.com/noah-isme/backend-souk/internal/common"
	"github.com/noah-isme/backend-souk/internal/order"
	"github.com/noah-isme/backend-souk/internal/payment"
	"github.com/noah-isme/backend-souk/internal/settings"
	"github.com/noah-isme/backend-souk/internal/shipping"
)

type stubCatalog struct {
	items map[string]catalog.Item
	err   error
}

func (s stubCatalog) Resolve(_ context.Context, itemID string) (catalog.Item, error) {
	if s.err != nil {
		return catalog.Item{}, s.err
	}
	item, ok := s.items[itemID]
	if !ok {
		return catalog.Item{}, catalog.ErrItemNotFound
	}
	return item, nil
}

type stubRules struct {
	rules settings.ShippingRules
	err   error
}

func (s stubRules) ShippingRules(context.Context) (settings.ShippingRules, error) {
	return s.rules, s.err
}

type stubOrders struct {
	id   uuid.UUID
	err  error
	last order.Order
}

func (s *stubOrders) UpsertPending(_ context.Context, o order.Order) (uuid.UUID, error) {
	if s.err != nil {
		return uuid.Nil, s.err
	}
	s.last = o
	return s.id, nil
}

type stubRates struct {
	price int64
	err   error
}

func (s stubRates) Find(context.Context, string, string, int64) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.price, nil
}

func newService(t *testing.T, cat checkout.ItemResolver, rules stubRules, orders *stubOrders, auth payment.Authorizer, rates shipping.RateStore) *checkout.Service {
	t.Helper()
	return &checkout.Service{
		Catalog: cat,
		Engine: &shipping.Engine{
			Rates:         rates,
			Policy:        shipping.Policy{FragileSurcharge: 300, DomesticCountry: "FR"},
			DefaultOrigin: "MA",
		},
		Settings:   rules,
		Orders:     orders,
		Authorizer: auth,
		Validate:   validator.New(),
		Currency:   "EUR",
		Provider:   "stripe",
	}
}

func panierA(id uuid.UUID) catalog.Item {
	return catalog.Item{
		Kind:        catalog.KindProduct,
		ID:          id,
		Title:       "Panier artisanal A",
		UnitPrice:   3500,
		WeightGrams: 500,
		Dims:        shipping.Dimensions{Length: 20, Width: 20, Height: 20},
		Stackable:   false,
		Origin:      "MA",
	}
}

func validInput(itemID string) checkout.Input {
	return checkout.Input{
		PaymentIntentID: "pi_123",
		Items:           []checkout.ItemRef{{ItemID: itemID, Qty: 1}},
		Destination: checkout.Addr{
			Name:       "Nadia B",
			Line1:      "12 rue des Rosiers",
			City:       "Paris",
			PostalCode: "75004",
			Country:    "FR",
		},
	}
}

func TestQuoteFullScenario(t *testing.T) {
	itemID := uuid.New()
	orderID := uuid.New()
	orders := &stubOrders{id: orderID}
	auth := &payment.Mock{}
	svc := newService(t,
		stubCatalog{items: map[string]catalog.Item{itemID.String(): panierA(itemID)}},
		stubRules{},
		orders,
		auth,
		stubRates{err: shipping.ErrNoRate},
	)

	out, err := svc.Quote(context.Background(), validInput(itemID.String()))
	require.NoError(t, err)
	require.Equal(t, int64(3140), out.ShippingCostMinorUnits)
	require.Equal(t, int64(1107), out.TaxMinorUnits)
	require.Equal(t, int64(6640), out.GrandTotalMinorUnits)
	require.False(t, out.FreeShipping)
	require.Empty(t, out.RemovedItemIDs)
	require.Equal(t, orderID.String(), out.OrderID)

	require.Equal(t, int64(6640), orders.last.AmountMinor)
	require.Equal(t, int64(3140), orders.last.ShippingMinor)
	require.Equal(t, order.Line{ItemID: itemID, Kind: "product", Qty: 1}, orders.last.Lines[0])

	upd, ok := auth.Last("pi_123")
	require.True(t, ok)
	require.Equal(t, int64(6640), upd.AmountMinor)
	require.Equal(t, "EUR", upd.Currency)
	require.Equal(t, orderID.String(), upd.Metadata["orderId"])
	require.Equal(t, "FR", upd.Destination.Country)
}

func TestQuoteDropsStaleLines(t *testing.T) {
	itemID := uuid.New()
	stale := uuid.New().String()
	orders := &stubOrders{id: uuid.New()}
	auth := &payment.Mock{}
	svc := newService(t,
		stubCatalog{items: map[string]catalog.Item{itemID.String(): panierA(itemID)}},
		stubRules{},
		orders,
		auth,
		stubRates{err: shipping.ErrNoRate},
	)

	in := validInput(itemID.String())
	in.Items = append(in.Items, checkout.ItemRef{ItemID: stale, Qty: 2})

	out, err := svc.Quote(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, []string{stale}, out.RemovedItemIDs)
	require.Contains(t, out.Message, stale)
	require.Equal(t, int64(6640), out.GrandTotalMinorUnits)
	require.Len(t, orders.last.Lines, 1)
}

func TestQuoteNoValidItems(t *testing.T) {
	stale := uuid.New().String()
	svc := newService(t, stubCatalog{items: map[string]catalog.Item{}}, stubRules{}, &stubOrders{id: uuid.New()}, &payment.Mock{}, stubRates{err: shipping.ErrNoRate})

	_, err := svc.Quote(context.Background(), validInput(stale))
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NO_VALID_ITEMS", appErr.Code)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	details, ok := appErr.Details.(map[string]any)
	require.True(t, ok)
	require.Equal(t, []string{stale}, details["removedItemIds"])
}

func TestQuoteValidation(t *testing.T) {
	svc := newService(t, stubCatalog{}, stubRules{}, &stubOrders{}, &payment.Mock{}, stubRates{})

	in := validInput(uuid.New().String())
	in.PaymentIntentID = ""
	_, err := svc.Quote(context.Background(), in)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)

	in = validInput(uuid.New().String())
	in.Destination.Country = "FRA"
	_, err = svc.Quote(context.Background(), in)
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestQuoteCatalogFailureIsRetryable(t *testing.T) {
	boom := errors.New("connection reset")
	svc := newService(t, stubCatalog{err: boom}, stubRules{}, &stubOrders{}, &payment.Mock{}, stubRates{})

	_, err := svc.Quote(context.Background(), validInput(uuid.New().String()))
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "CATALOG_STORE_ERROR", appErr.Code)
	require.Equal(t, http.StatusServiceUnavailable, appErr.HTTPStatus)
	require.ErrorIs(t, err, boom)
}

func TestQuoteSettingsFailureIsRetryable(t *testing.T) {
	itemID := uuid.New()
	svc := newService(t,
		stubCatalog{items: map[string]catalog.Item{itemID.String(): panierA(itemID)}},
		stubRules{err: errors.New("timeout")},
		&stubOrders{}, &payment.Mock{}, stubRates{},
	)

	_, err := svc.Quote(context.Background(), validInput(itemID.String()))
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "SETTINGS_STORE_ERROR", appErr.Code)
}

func TestQuoteRateStoreFailureNeverFallsBack(t *testing.T) {
	itemID := uuid.New()
	svc := newService(t,
		stubCatalog{items: map[string]catalog.Item{itemID.String(): panierA(itemID)}},
		stubRules{},
		&stubOrders{}, &payment.Mock{},
		stubRates{err: errors.New("pg down")},
	)

	_, err := svc.Quote(context.Background(), validInput(itemID.String()))
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "RATE_STORE_ERROR", appErr.Code)
}

func TestQuotePaymentSyncFailure(t *testing.T) {
	itemID := uuid.New()
	svc := newService(t,
		stubCatalog{items: map[string]catalog.Item{itemID.String(): panierA(itemID)}},
		stubRules{},
		&stubOrders{id: uuid.New()},
		&payment.Mock{Err: payment.ErrProcessorUnavailable},
		stubRates{err: shipping.ErrNoRate},
	)

	_, err := svc.Quote(context.Background(), validInput(itemID.String()))
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "PAYMENT_SYNC_ERROR", appErr.Code)
	require.ErrorIs(t, err, payment.ErrProcessorUnavailable)
}

func TestQuoteSettledAuthorizationConflicts(t *testing.T) {
	itemID := uuid.New()
	svc := newService(t,
		stubCatalog{items: map[string]catalog.Item{itemID.String(): panierA(itemID)}},
		stubRules{},
		&stubOrders{err: order.ErrOrderNotPending},
		&payment.Mock{},
		stubRates{err: shipping.ErrNoRate},
	)

	_, err := svc.Quote(context.Background(), validInput(itemID.String()))
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "ALREADY_SETTLED", appErr.Code)
	require.Equal(t, http.StatusConflict, appErr.HTTPStatus)
}

func TestQuoteIdempotentRepeat(t *testing.T) {
	itemID := uuid.New()
	orders := &stubOrders{id: uuid.New()}
	auth := &payment.Mock{}
	svc := newService(t,
		stubCatalog{items: map[string]catalog.Item{itemID.String(): panierA(itemID)}},
		stubRules{},
		orders,
		auth,
		stubRates{err: shipping.ErrNoRate},
	)

	first, err := svc.Quote(context.Background(), validInput(itemID.String()))
	require.NoError(t, err)
	second, err := svc.Quote(context.Background(), validInput(itemID.String()))
	require.NoError(t, err)

	require.Equal(t, first.GrandTotalMinorUnits, second.GrandTotalMinorUnits)
	require.Equal(t, 2, auth.Calls())
	upd, ok := auth.Last("pi_123")
	require.True(t, ok)
	require.Equal(t, second.GrandTotalMinorUnits, upd.AmountMinor)
}

func TestQuoteFreeShippingThreshold(t *testing.T) {
	itemID := uuid.New()
	orders := &stubOrders{id: uuid.New()}
	svc := newService(t,
		stubCatalog{items: map[string]catalog.Item{itemID.String(): panierA(itemID)}},
		stubRules{rules: settings.ShippingRules{FreeShippingThreshold: 3500, IsActive: true}},
		orders,
		&payment.Mock{},
		stubRates{err: shipping.ErrNoRate},
	)

	out, err := svc.Quote(context.Background(), validInput(itemID.String()))
	require.NoError(t, err)
	require.True(t, out.FreeShipping)
	require.Zero(t, out.ShippingCostMinorUnits)
	require.Equal(t, int64(3500), out.GrandTotalMinorUnits)
}
