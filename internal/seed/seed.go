package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	DemoRecipeName    = "Pan dulce"
	DemoWeekStart     = "2024-05-13"
	DemoBatchDate     = "2024-05-15"
	demoPurchaseDate  = "2024-05-01"
	demoSupplier      = "Molinos del Valle"
	defaultMarginPct  = "30"
	defaultTaxPct     = "13"
	demoPaymentDate   = "2024-05-18"
	demoPaymentMethod = "efectivo"
)

// Config contains the values required by startup seed.
type Config struct {
	// GlobalIndirectPct seeds the stored global indirect percentage when none exists.
	GlobalIndirectPct decimal.Decimal
}

// Stats counts the rows a seed run inserted.
type Stats struct {
	Inserts int
}

type product struct {
	sku, name, kind, uom string
}

var demoProducts = []product{
	{sku: "MP-001", name: "Harina de trigo", kind: "MP", uom: "kg"},
	{sku: "MP-002", name: "Azúcar", kind: "MP", uom: "kg"},
	{sku: "PT-001", name: "Pan dulce", kind: "PT", uom: "un"},
}

type employee struct {
	name string
	rate string
}

var demoEmployees = []employee{
	{name: "Ana Pérez", rate: "4.50"},
	{name: "Luis Gómez", rate: "5.00"},
}

// Run executes the demo catalog seed in an idempotent way.
func Run(ctx context.Context, db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	s := &seeder{ctx: ctx, tx: tx, products: map[string]int64{}, employees: map[string]int64{}}
	steps := []func() error{
		s.ensureUOM,
		s.ensureProducts,
		func() error { return s.ensureSettings(cfg) },
		s.ensurePurchase,
		s.ensureRecipe,
		s.ensureBatch,
		s.ensureEmployees,
		s.ensurePayrollWeek,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return s.stats, nil
}

type seeder struct {
	ctx       context.Context
	tx        *sql.Tx
	stats     Stats
	uom       map[string]int64
	products  map[string]int64
	employees map[string]int64
	recipeID  int64
}

// ensure returns the id found by lookup, or inserts a row and returns its id.
// created reports whether the row is new.
func (s *seeder) ensure(what, lookup string, lookupArgs []any, insert string, insertArgs ...any) (id int64, created bool, err error) {
	err = s.tx.QueryRowContext(s.ctx, lookup, lookupArgs...).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("check %s existence: %w", what, err)
	}

	result, err := s.tx.ExecContext(s.ctx, insert, insertArgs...)
	if err != nil {
		return 0, false, fmt.Errorf("insert %s: %w", what, err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("read %s id: %w", what, err)
	}
	s.stats.Inserts++
	return id, true, nil
}

func (s *seeder) exec(what, query string, args ...any) error {
	if _, err := s.tx.ExecContext(s.ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", what, err)
	}
	s.stats.Inserts++
	return nil
}

func (s *seeder) ensureUOM() error {
	s.uom = map[string]int64{}
	for code, name := range map[string]string{"kg": "Kilogramo", "un": "Unidad"} {
		id, _, err := s.ensure("uom "+code,
			`SELECT id FROM uom WHERE code = ?`, []any{code},
			`INSERT INTO uom (code, name) VALUES (?, ?)`, code, name)
		if err != nil {
			return err
		}
		s.uom[code] = id
	}
	return nil
}

func (s *seeder) ensureProducts() error {
	for _, p := range demoProducts {
		id, _, err := s.ensure("product "+p.sku,
			`SELECT id FROM products WHERE sku = ?`, []any{p.sku},
			`INSERT INTO products (sku, name, kind, uom_id, active) VALUES (?, ?, ?, ?, ?)`,
			p.sku, p.name, p.kind, s.uom[p.uom], true)
		if err != nil {
			return err
		}
		s.products[p.sku] = id
	}
	return nil
}

func (s *seeder) ensureSettings(cfg Config) error {
	values := []struct {
		key   string
		value string
	}{
		{"global_indirect_pct", cfg.GlobalIndirectPct.String()},
		{"default_margin_pct", defaultMarginPct},
		{"default_tax_pct", defaultTaxPct},
	}
	for _, v := range values {
		result, err := s.tx.ExecContext(s.ctx, `
			INSERT INTO settings (key, value)
			VALUES (?, ?)
			ON CONFLICT(key) DO NOTHING
		`, v.key, v.value)
		if err != nil {
			return fmt.Errorf("insert setting %s: %w", v.key, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			s.stats.Inserts += int(n)
		}
	}
	return nil
}

func (s *seeder) ensurePurchase() error {
	id, created, err := s.ensure("demo purchase",
		`SELECT id FROM purchases WHERE purchased_on = ? AND supplier = ?`, []any{demoPurchaseDate, demoSupplier},
		`INSERT INTO purchases (purchased_on, supplier, note) VALUES (?, ?, ?)`,
		demoPurchaseDate, demoSupplier, "")
	if err != nil || !created {
		return err
	}

	lines := []struct {
		sku, qty, cost, discount string
	}{
		{"MP-001", "50", "1.20", "0"},
		{"MP-002", "20", "2.00", "4"},
	}
	for _, l := range lines {
		if err := s.exec("purchase item "+l.sku, `
			INSERT INTO purchase_items (purchase_id, product_id, quantity, unit_cost, discount)
			VALUES (?, ?, ?, ?, ?)
		`, id, s.products[l.sku], l.qty, l.cost, l.discount); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) ensureRecipe() error {
	id, created, err := s.ensure("demo recipe",
		`SELECT id FROM recipes WHERE name = ?`, []any{DemoRecipeName},
		`INSERT INTO recipes (name, labor_cost, waste_cost, active) VALUES (?, ?, ?, ?)`,
		DemoRecipeName, "15", "2", true)
	if err != nil {
		return err
	}
	s.recipeID = id
	if !created {
		return nil
	}

	if err := s.exec("recipe item MP-001", `
		INSERT INTO recipe_items (recipe_id, product_id, quantity, other_costs) VALUES (?, ?, ?, ?)
	`, id, s.products["MP-001"], "10", "0"); err != nil {
		return err
	}
	if err := s.exec("recipe item MP-002", `
		INSERT INTO recipe_items (recipe_id, product_id, quantity, other_costs) VALUES (?, ?, ?, ?)
	`, id, s.products["MP-002"], "2", "1.5"); err != nil {
		return err
	}
	return s.exec("recipe output PT-001", `
		INSERT INTO recipe_outputs (recipe_id, product_id, yield_quantity) VALUES (?, ?, ?)
	`, id, s.products["PT-001"], "40")
}

func (s *seeder) ensureBatch() error {
	id, created, err := s.ensure("demo batch",
		`SELECT id FROM batches WHERE produced_on = ? AND recipe_id = ?`, []any{DemoBatchDate, s.recipeID},
		`INSERT INTO batches (produced_on, recipe_id, labor_cost, waste_cost) VALUES (?, ?, ?, ?)`,
		DemoBatchDate, s.recipeID, "16", "2.5")
	if err != nil || !created {
		return err
	}

	if err := s.exec("batch consumption MP-001", `
		INSERT INTO batch_consumptions (batch_id, product_id, quantity, other_costs) VALUES (?, ?, ?, ?)
	`, id, s.products["MP-001"], "10.5", "0"); err != nil {
		return err
	}
	if err := s.exec("batch consumption MP-002", `
		INSERT INTO batch_consumptions (batch_id, product_id, quantity, other_costs) VALUES (?, ?, ?, ?)
	`, id, s.products["MP-002"], "2", "1.5"); err != nil {
		return err
	}
	return s.exec("batch output PT-001", `
		INSERT INTO batch_outputs (batch_id, product_id, quantity) VALUES (?, ?, ?)
	`, id, s.products["PT-001"], "42")
}

func (s *seeder) ensureEmployees() error {
	for _, e := range demoEmployees {
		id, _, err := s.ensure("employee "+e.name,
			`SELECT id FROM employees WHERE name = ?`, []any{e.name},
			`INSERT INTO employees (name, hourly_rate, active) VALUES (?, ?, ?)`,
			e.name, e.rate, true)
		if err != nil {
			return err
		}
		s.employees[e.name] = id
	}
	return nil
}

func (s *seeder) ensurePayrollWeek() error {
	weekID, created, err := s.ensure("demo payroll week",
		`SELECT id FROM payroll_weeks WHERE week_start = ?`, []any{DemoWeekStart},
		`INSERT INTO payroll_weeks (week_start, note) VALUES (?, ?)`,
		DemoWeekStart, "semana demo")
	if err != nil || !created {
		return err
	}

	details := make(map[string]int64, len(demoEmployees))
	for _, e := range demoEmployees {
		result, err := s.tx.ExecContext(s.ctx, `
			INSERT INTO payroll_details (week_id, employee_id, hourly_rate) VALUES (?, ?, ?)
		`, weekID, s.employees[e.name], e.rate)
		if err != nil {
			return fmt.Errorf("insert payroll detail for %s: %w", e.name, err)
		}
		if details[e.name], err = result.LastInsertId(); err != nil {
			return fmt.Errorf("read payroll detail id: %w", err)
		}
		s.stats.Inserts++
	}

	days := []struct {
		employee, date, regular, overtime string
		holiday                           bool
		holidayHours                      string
	}{
		{"Ana Pérez", "2024-05-13", "8", "0", false, "0"},
		{"Ana Pérez", "2024-05-14", "8", "2", false, "0"},
		{"Luis Gómez", "2024-05-13", "8", "0", false, "0"},
		{"Luis Gómez", "2024-05-15", "0", "0", true, "4"},
	}
	for _, d := range days {
		if err := s.exec("payroll day", `
			INSERT INTO payroll_days (detail_id, worked_on, regular_hours, overtime_hours, double_hours, holiday, holiday_hours)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, details[d.employee], d.date, d.regular, d.overtime, "0", d.holiday, d.holidayHours); err != nil {
			return err
		}
	}

	return s.exec("payroll payment", `
		INSERT INTO payroll_payments (week_id, employee_id, paid_on, amount, method) VALUES (?, ?, ?, ?, ?)
	`, weekID, s.employees["Ana Pérez"], demoPaymentDate, "20.00", demoPaymentMethod)
}
