package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// UomConversion arista dirigida del grafo de conversión de un producto:
// 1 FromUnit = Factor ToUnit. La inversa no se asume.
type UomConversion struct {
	ID        string
	TenantID  string
	ProductID string
	FromUnit  string
	ToUnit    string
	Factor    decimal.Decimal
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsUsable indica si la arista participa en la resolución.
func (c *UomConversion) IsUsable() bool {
	return c.Active && c.DeletedAt == nil
}
