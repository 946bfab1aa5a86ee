// Package service runs the costing and payroll engines over persisted records.
package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/dltaller/internal/payroll"
	"github.com/Simplici0/dltaller/internal/store"
	"github.com/Simplici0/dltaller/internal/unitcost"
)

// Store is the data access the service needs.
type Store interface {
	GetSettings(ctx context.Context) (store.Settings, error)
	GetRecipe(ctx context.Context, id int64) (store.Recipe, error)
	GetBatch(ctx context.Context, id int64) (store.Batch, error)
	ListPurchaseLines(ctx context.Context, productIDs []int64) ([]unitcost.PurchaseLine, error)
	GetPurchase(ctx context.Context, id int64) (store.Purchase, error)
	GetPayrollWeek(ctx context.Context, id int64) (store.PayrollWeek, error)
	UpdatePayrollFactors(ctx context.Context, weekID int64, f payroll.PartialFactors) error
	UpsertPayrollDays(ctx context.Context, weekID int64, entries []payroll.DayEntry) (store.DayStats, error)
	ListPayrollPayments(ctx context.Context, weekID int64) ([]payroll.Payment, error)
	RecordPayment(ctx context.Context, weekID int64, p payroll.Payment) (int64, error)
	DeletePayment(ctx context.Context, weekID, paymentID int64) error
}

// Service resolves stored records into engine requests.
type Service struct {
	store Store
	// fallbackIndirectPct applies when the stored settings carry no global indirect percentage.
	fallbackIndirectPct decimal.Decimal
}

// New returns a Service over st. fallbackIndirectPct is used when the stored settings
// lack a global indirect percentage.
func New(st Store, fallbackIndirectPct decimal.Decimal) *Service {
	return &Service{store: st, fallbackIndirectPct: fallbackIndirectPct}
}

func (s *Service) globalIndirectPct(settings store.Settings) decimal.Decimal {
	if settings.GlobalIndirectPct.Valid {
		return settings.GlobalIndirectPct.Decimal
	}
	return s.fallbackIndirectPct
}

// firstValid returns the first valid value, or def.
func firstValid(def decimal.Decimal, values ...decimal.NullDecimal) decimal.Decimal {
	for _, v := range values {
		if v.Valid {
			return v.Decimal
		}
	}
	return def
}

// firstNull returns the first valid value, or an invalid NullDecimal.
func firstNull(values ...decimal.NullDecimal) decimal.NullDecimal {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return decimal.NullDecimal{}
}
