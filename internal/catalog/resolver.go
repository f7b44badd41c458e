package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-souk/internal/shipping"
)

// ErrItemNotFound is returned when a cart line references an item or variant
// that no longer exists. Callers treat it as a recoverable stale reference,
// not a failure of the whole quote.
var ErrItemNotFound = errors.New("catalog: item not found")

// Kind tags which catalog table a resolved item came from.
type Kind string

const (
	KindProduct Kind = "product"
	KindVariant Kind = "variant"
)

// Item is the authoritative snapshot of one sellable unit, rebuilt from
// current catalog state on every pricing request. Never cached across
// requests: price, weight and stock may change between cart and checkout.
type Item struct {
	Kind         Kind
	ID           uuid.UUID
	ParentID     uuid.UUID // product id when Kind == KindVariant, zero otherwise
	Title        string
	UnitPrice    int64
	WeightGrams  int64
	Dims         shipping.Dimensions
	Stackable    bool
	HandlingTier shipping.HandlingTier
	Origin       string
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Resolver looks cart line references up against the live catalog. An id may
// name either a product or one of its variants; a single tagged UNION lookup
// resolves both without a two-pass scan.
type Resolver struct {
	DB rowQuerier
}

const resolveQuery = `
	SELECT 'variant'::text AS kind,
	       v.id,
	       v.product_id,
	       COALESCE(p.title || ' / ' || v.title, p.title),
	       COALESCE(v.price_minor, p.price_minor),
	       COALESCE(v.weight_grams, p.weight_grams),
	       COALESCE(v.length_cm, p.length_cm),
	       COALESCE(v.width_cm, p.width_cm),
	       COALESCE(v.height_cm, p.height_cm),
	       p.stackable,
	       p.handling_tier,
	       COALESCE(p.origin_warehouse, '')
	FROM product_variants v
	JOIN products p ON p.id = v.product_id
	WHERE v.id = $1 AND v.deleted_at IS NULL AND p.deleted_at IS NULL
	UNION ALL
	SELECT 'product'::text,
	       p.id,
	       NULL,
	       p.title,
	       p.price_minor,
	       p.weight_grams,
	       p.length_cm,
	       p.width_cm,
	       p.height_cm,
	       p.stackable,
	       p.handling_tier,
	       COALESCE(p.origin_warehouse, '')
	FROM products p
	WHERE p.id = $1 AND p.deleted_at IS NULL
	LIMIT 1`

// Resolve returns the tagged item for an opaque reference. Malformed ids and
// missing rows both surface as ErrItemNotFound; datastore failures are
// wrapped and must not be mistaken for staleness.
func (r Resolver) Resolve(ctx context.Context, itemID string) (Item, error) {
	if r.DB == nil {
		return Item{}, errors.New("catalog: resolver not configured")
	}
	id, err := uuid.Parse(strings.TrimSpace(itemID))
	if err != nil {
		return Item{}, ErrItemNotFound
	}

	var (
		kind     string
		item     Item
		parentID *uuid.UUID
		tier     string
	)
	err = r.DB.QueryRow(ctx, resolveQuery, id).Scan(
		&kind,
		&item.ID,
		&parentID,
		&item.Title,
		&item.UnitPrice,
		&item.WeightGrams,
		&item.Dims.Length,
		&item.Dims.Width,
		&item.Dims.Height,
		&item.Stackable,
		&tier,
		&item.Origin,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("resolve item %s: %w", itemID, err)
	}

	item.Kind = Kind(kind)
	if parentID != nil {
		item.ParentID = *parentID
	}
	item.HandlingTier = shipping.ParseHandlingTier(tier)
	if item.WeightGrams < 0 {
		item.WeightGrams = 0
	}
	return item, nil
}

// Line converts a resolved item plus quantity into a shipping line.
func (i Item) Line(itemID string, qty int) shipping.Line {
	return shipping.Line{
		ItemID:      itemID,
		Qty:         qty,
		Origin:      i.Origin,
		WeightGrams: i.WeightGrams,
		Dims:        i.Dims,
		Stackable:   i.Stackable,
		Tier:        i.HandlingTier,
		UnitPrice:   i.UnitPrice,
	}
}
