package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-souk/internal/shipping"
)

// shippingRulesKey is the settings row holding the mutable shipping policy.
const shippingRulesKey = "shipping_rules"

// ShippingRules mirrors the externally managed configuration record.
type ShippingRules struct {
	FreeShippingThreshold int64 `json:"freeShippingThreshold"`
	IsActive              bool  `json:"isActive"`
}

// Rules converts the stored record into policy rules.
func (r ShippingRules) Rules() shipping.Rules {
	return shipping.Rules{
		FreeShippingThreshold: r.FreeShippingThreshold,
		ThresholdActive:       r.IsActive,
	}
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads shop settings. Values are fetched fresh on every call because
// they can change between pricing calls within one checkout session.
type Store struct {
	DB rowQuerier
}

// ShippingRules returns the current shipping policy record. A missing row
// yields inactive defaults; datastore failures propagate so the caller can
// retry instead of quoting against stale policy.
func (s Store) ShippingRules(ctx context.Context) (ShippingRules, error) {
	if s.DB == nil {
		return ShippingRules{}, errors.New("settings: store not configured")
	}
	var raw []byte
	err := s.DB.QueryRow(ctx, `SELECT value FROM shop_settings WHERE key = $1`, shippingRulesKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ShippingRules{}, nil
	}
	if err != nil {
		return ShippingRules{}, fmt.Errorf("load %s settings: %w", shippingRulesKey, err)
	}
	var rules ShippingRules
	if err := json.Unmarshal(raw, &rules); err != nil {
		return ShippingRules{}, fmt.Errorf("decode %s settings: %w", shippingRulesKey, err)
	}
	return rules, nil
}
