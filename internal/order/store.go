package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Status is the order settlement state machine. PAID and CANCELED are
// terminal.
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusPaid           Status = "PAID"
	StatusCanceled       Status = "CANCELED"
)

var (
	// ErrOrderNotFound is returned when no order matches the identifier.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderNotPending is returned when a pending upsert targets an order
	// that already reached a terminal state.
	ErrOrderNotPending = errors.New("order: no longer pending")
)

// Line records one settled cart line, kept for the stock decrement the
// payment webhook performs exactly once.
type Line struct {
	ItemID uuid.UUID `json:"itemId"`
	Kind   string    `json:"kind"`
	Qty    int       `json:"qty"`
}

// Order is the pending checkout row the payment webhook later settles.
type Order struct {
	ID              uuid.UUID
	AuthorizationID string
	Status          Status
	Currency        string
	AmountMinor     int64
	ShippingMinor   int64
	TaxMinor        int64
	Destination     json.RawMessage
	Audit           json.RawMessage
	Lines           []Line
}

// DB is the query surface shared by pgxpool.Pool and pgx.Tx, so store calls
// can participate in the webhook's settlement transaction.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists checkout orders with hand-written pgx queries.
type Store struct {
	DB DB
}

// UpsertPending writes (or overwrites) the pending order for a payment
// authorization. Re-pricing the same authorization simply replaces the
// unconfirmed amounts; orders that already settled are left untouched.
func (s Store) UpsertPending(ctx context.Context, o Order) (uuid.UUID, error) {
	if s.DB == nil {
		return uuid.Nil, errors.New("order: store not configured")
	}
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode order lines: %w", err)
	}
	const q = `
		INSERT INTO orders (authorization_id, status, currency, amount_minor, shipping_minor, tax_minor, destination, audit, lines)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (authorization_id) DO UPDATE SET
			amount_minor = EXCLUDED.amount_minor,
			shipping_minor = EXCLUDED.shipping_minor,
			tax_minor = EXCLUDED.tax_minor,
			destination = EXCLUDED.destination,
			audit = EXCLUDED.audit,
			lines = EXCLUDED.lines,
			updated_at = now()
		WHERE orders.status = $2
		RETURNING id`
	var id uuid.UUID
	err = s.DB.QueryRow(ctx, q,
		o.AuthorizationID, StatusPendingPayment, o.Currency,
		o.AmountMinor, o.ShippingMinor, o.TaxMinor,
		o.Destination, o.Audit, lines,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrOrderNotPending
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert pending order: %w", err)
	}
	return id, nil
}

// GetByID loads one order.
func (s Store) GetByID(ctx context.Context, id uuid.UUID) (Order, error) {
	if s.DB == nil {
		return Order{}, errors.New("order: store not configured")
	}
	const q = `
		SELECT id, authorization_id, status, currency, amount_minor, shipping_minor, tax_minor, destination, audit, lines
		FROM orders WHERE id = $1`
	var (
		o     Order
		lines []byte
	)
	err := s.DB.QueryRow(ctx, q, id).Scan(
		&o.ID, &o.AuthorizationID, &o.Status, &o.Currency,
		&o.AmountMinor, &o.ShippingMinor, &o.TaxMinor,
		&o.Destination, &o.Audit, &lines,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &o.Lines); err != nil {
			return Order{}, fmt.Errorf("decode order lines: %w", err)
		}
	}
	return o, nil
}

// MarkPaid transitions a pending order to PAID. Returns false when the order
// already reached a terminal state, which makes settlement idempotent.
func (s Store) MarkPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.transition(ctx, id, StatusPaid)
}

// MarkCanceled transitions a pending order to CANCELED.
func (s Store) MarkCanceled(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.transition(ctx, id, StatusCanceled)
}

func (s Store) transition(ctx context.Context, id uuid.UUID, next Status) (bool, error) {
	if s.DB == nil {
		return false, errors.New("order: store not configured")
	}
	tag, err := s.DB.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		next, id, StatusPendingPayment,
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DecrementStock reduces the on-hand stock for one settled line. Stock never
// goes negative; oversell reconciliation is a back-office concern.
func (s Store) DecrementStock(ctx context.Context, line Line) error {
	if s.DB == nil {
		return errors.New("order: store not configured")
	}
	table := "products"
	if line.Kind == "variant" {
		table = "product_variants"
	}
	_, err := s.DB.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET stock = GREATEST(stock - $1, 0) WHERE id = $2`, table),
		line.Qty, line.ItemID,
	)
	if err != nil {
		return fmt.Errorf("decrement %s stock: %w", table, err)
	}
	return nil
}
