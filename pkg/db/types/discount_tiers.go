package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// DiscountTier is one rung of a tenant's volume discount ladder.
type DiscountTier struct {
	MinSeats        int     `json:"min_seats"`
	DiscountPercent float64 `json:"discount_percent"`
}

// DiscountTierList is stored as a JSONB blob on the tenant row. A nil or empty
// list means the tenant has no override and inherits the platform defaults.
type DiscountTierList []DiscountTier

// Value implements driver.Valuer.
func (l DiscountTierList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal discount tiers: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (l *DiscountTierList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported discount tiers source %T", src)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	var tiers []DiscountTier
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return fmt.Errorf("unmarshal discount tiers: %w", err)
	}
	*l = tiers
	return nil
}

// GormDataType tells gorm which column type backs the list.
func (DiscountTierList) GormDataType() string {
	return "jsonb"
}
