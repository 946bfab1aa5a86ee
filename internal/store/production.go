package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/dltaller/internal/civil"
	"github.com/Simplici0/dltaller/internal/unitcost"
)

// Item is one raw material a recipe plans to use or a batch consumed.
type Item struct {
	ProductID  int64           `json:"productId"`
	Quantity   decimal.Decimal `json:"quantity"`
	OtherCosts decimal.Decimal `json:"otherCosts"`
}

// Output is one finished product a recipe declares or a batch produced.
type Output struct {
	ProductID int64           `json:"productId"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// Recipe is a persisted recipe with its ingredients and declared outputs.
type Recipe struct {
	ID          int64
	Name        string
	LaborCost   decimal.Decimal
	WasteCost   decimal.Decimal
	IndirectPct decimal.NullDecimal
	MarginPct   decimal.NullDecimal
	TaxPct      decimal.NullDecimal
	Items       []Item
	Outputs     []Output
}

// Batch is a persisted production batch.
type Batch struct {
	ID          int64
	ProducedOn  civil.Date
	RecipeID    sql.NullInt64
	LaborCost   decimal.Decimal
	WasteCost   decimal.Decimal
	IndirectPct decimal.NullDecimal
	Items       []Item
	Outputs     []Output
}

// GetRecipe loads a recipe by id.
func (s *Store) GetRecipe(ctx context.Context, id int64) (Recipe, error) {
	r := Recipe{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT name, labor_cost, waste_cost, indirect_pct, margin_pct, tax_pct
		FROM recipes
		WHERE id = ?
	`, id).Scan(&r.Name, &r.LaborCost, &r.WasteCost, &r.IndirectPct, &r.MarginPct, &r.TaxPct)
	if err != nil {
		return Recipe{}, notFound(err, "recipe", id)
	}

	if r.Items, err = s.listItems(ctx, `
		SELECT product_id, quantity, other_costs
		FROM recipe_items
		WHERE recipe_id = ?
		ORDER BY id
	`, id); err != nil {
		return Recipe{}, fmt.Errorf("list recipe %d items: %w", id, err)
	}

	if r.Outputs, err = s.listOutputs(ctx, `
		SELECT product_id, yield_quantity
		FROM recipe_outputs
		WHERE recipe_id = ?
		ORDER BY id
	`, id); err != nil {
		return Recipe{}, fmt.Errorf("list recipe %d outputs: %w", id, err)
	}

	return r, nil
}

// GetBatch loads a production batch by id.
func (s *Store) GetBatch(ctx context.Context, id int64) (Batch, error) {
	b := Batch{ID: id}
	var producedOn string
	err := s.db.QueryRowContext(ctx, `
		SELECT produced_on, recipe_id, labor_cost, waste_cost, indirect_pct
		FROM batches
		WHERE id = ?
	`, id).Scan(&producedOn, &b.RecipeID, &b.LaborCost, &b.WasteCost, &b.IndirectPct)
	if err != nil {
		return Batch{}, notFound(err, "batch", id)
	}
	if b.ProducedOn, err = scanDate(producedOn); err != nil {
		return Batch{}, fmt.Errorf("batch %d produced_on: %w", id, err)
	}

	if b.Items, err = s.listItems(ctx, `
		SELECT product_id, quantity, other_costs
		FROM batch_consumptions
		WHERE batch_id = ?
		ORDER BY id
	`, id); err != nil {
		return Batch{}, fmt.Errorf("list batch %d consumptions: %w", id, err)
	}

	if b.Outputs, err = s.listOutputs(ctx, `
		SELECT product_id, quantity
		FROM batch_outputs
		WHERE batch_id = ?
		ORDER BY id
	`, id); err != nil {
		return Batch{}, fmt.Errorf("list batch %d outputs: %w", id, err)
	}

	return b, nil
}

// ListPurchaseLines returns the purchase history of the given products, oldest first.
func (s *Store) ListPurchaseLines(ctx context.Context, productIDs []int64) ([]unitcost.PurchaseLine, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(productIDs)), ",")
	args := make([]any, 0, len(productIDs))
	for _, id := range productIDs {
		args = append(args, id)
	}

	return s.queryPurchaseLines(ctx, `
		SELECT pi.purchase_id, pi.product_id, p.purchased_on, pi.quantity, pi.unit_cost, pi.discount
		FROM purchase_items pi
		JOIN purchases p ON p.id = pi.purchase_id
		WHERE pi.product_id IN (`+placeholders+`)
		ORDER BY p.purchased_on, pi.id
	`, args...)
}

// Purchase is a supplier purchase with its lines.
type Purchase struct {
	ID          int64
	PurchasedOn civil.Date
	Supplier    string
	Note        string
	Lines       []unitcost.PurchaseLine
}

// GetPurchase loads a purchase by id.
func (s *Store) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	p := Purchase{ID: id}
	var purchasedOn string
	err := s.db.QueryRowContext(ctx, `
		SELECT purchased_on, supplier, COALESCE(note, '')
		FROM purchases
		WHERE id = ?
	`, id).Scan(&purchasedOn, &p.Supplier, &p.Note)
	if err != nil {
		return Purchase{}, notFound(err, "purchase", id)
	}
	if p.PurchasedOn, err = scanDate(purchasedOn); err != nil {
		return Purchase{}, fmt.Errorf("purchase %d purchased_on: %w", id, err)
	}

	p.Lines, err = s.queryPurchaseLines(ctx, `
		SELECT pi.purchase_id, pi.product_id, p.purchased_on, pi.quantity, pi.unit_cost, pi.discount
		FROM purchase_items pi
		JOIN purchases p ON p.id = pi.purchase_id
		WHERE pi.purchase_id = ?
		ORDER BY pi.id
	`, id)
	if err != nil {
		return Purchase{}, err
	}
	return p, nil
}

func (s *Store) queryPurchaseLines(ctx context.Context, query string, args ...any) ([]unitcost.PurchaseLine, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query purchase lines: %w", err)
	}
	defer rows.Close()

	lines := make([]unitcost.PurchaseLine, 0)
	for rows.Next() {
		var l unitcost.PurchaseLine
		var purchasedOn string
		if err := rows.Scan(&l.PurchaseID, &l.ProductID, &purchasedOn, &l.Quantity, &l.UnitCost, &l.Discount); err != nil {
			return nil, fmt.Errorf("scan purchase line: %w", err)
		}
		if l.Date, err = scanDate(purchasedOn); err != nil {
			return nil, fmt.Errorf("purchase %d purchased_on: %w", l.PurchaseID, err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase lines: %w", err)
	}

	return lines, nil
}

func (s *Store) listItems(ctx context.Context, query string, parentID int64) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.OtherCosts); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) listOutputs(ctx context.Context, query string, parentID int64) ([]Output, error) {
	rows, err := s.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	outputs := make([]Output, 0)
	for rows.Next() {
		var o Output
		if err := rows.Scan(&o.ProductID, &o.Quantity); err != nil {
			return nil, err
		}
		outputs = append(outputs, o)
	}
	return outputs, rows.Err()
}
