package service

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/dltaller/internal/civil"
	"github.com/Simplici0/dltaller/internal/costing"
	"github.com/Simplici0/dltaller/internal/store"
	"github.com/Simplici0/dltaller/internal/unitcost"
)

// RecipeOverrides replace the stored recipe values for one estimate. AsOf limits the
// purchase history used for unit costs; zero means all of it.
type RecipeOverrides struct {
	Yield       decimal.NullDecimal
	IndirectPct decimal.NullDecimal
	MarginPct   decimal.NullDecimal
	TaxPct      decimal.NullDecimal
	AsOf        civil.Date
}

// BatchOverrides replace the stored batch values for one computation.
type BatchOverrides struct {
	IndirectPct decimal.NullDecimal
}

// RecipeCost is the cost estimate of a stored recipe.
type RecipeCost struct {
	RecipeID int64      `json:"recipeId"`
	Name     string     `json:"name"`
	AsOf     civil.Date `json:"asOf"`
	costing.Result
}

// BatchCost is the actual cost of a stored production batch.
type BatchCost struct {
	BatchID    int64      `json:"batchId"`
	ProducedOn civil.Date `json:"producedOn"`
	costing.Result
}

// RecipeCost estimates a stored recipe with unit costs resolved from purchase history.
func (s *Service) RecipeCost(ctx context.Context, id int64, o RecipeOverrides) (RecipeCost, error) {
	recipe, err := s.store.GetRecipe(ctx, id)
	if err != nil {
		return RecipeCost{}, err
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return RecipeCost{}, err
	}
	costs, err := s.unitCosts(ctx, recipe.Items, o.AsOf)
	if err != nil {
		return RecipeCost{}, err
	}

	yields := make([]decimal.Decimal, 0, len(recipe.Outputs))
	for _, out := range recipe.Outputs {
		yields = append(yields, out.Quantity)
	}

	result, err := costing.ComputeRecipeCost(costing.RecipeRequest{
		Ingredients:       ingredientLines(recipe.Items, costs),
		LaborCost:         recipe.LaborCost,
		WasteCost:         recipe.WasteCost,
		IndirectPct:       firstNull(o.IndirectPct, recipe.IndirectPct),
		GlobalIndirectPct: s.globalIndirectPct(settings),
		YieldQuantity:     o.Yield,
		OutputYields:      yields,
		MarginPct:         firstValid(settings.DefaultMarginPct, o.MarginPct, recipe.MarginPct),
		TaxPct:            firstValid(settings.DefaultTaxPct, o.TaxPct, recipe.TaxPct),
	})
	if err != nil {
		return RecipeCost{}, err
	}

	log.Debug().
		Int64("recipe_id", id).
		Str("total_cost", result.TotalCost.String()).
		Bool("unit_cost_available", result.UnitCost.Valid).
		Msg("recipe cost computed")

	return RecipeCost{RecipeID: id, Name: recipe.Name, AsOf: o.AsOf, Result: result}, nil
}

// BatchCost computes a stored batch with unit costs as of its production date.
func (s *Service) BatchCost(ctx context.Context, id int64, o BatchOverrides) (BatchCost, error) {
	batch, err := s.store.GetBatch(ctx, id)
	if err != nil {
		return BatchCost{}, err
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return BatchCost{}, err
	}
	costs, err := s.unitCosts(ctx, batch.Items, batch.ProducedOn)
	if err != nil {
		return BatchCost{}, err
	}

	var produced decimal.NullDecimal
	for _, out := range batch.Outputs {
		produced = decimal.NewNullDecimal(produced.Decimal.Add(out.Quantity))
	}

	result, err := costing.ComputeBatchCost(costing.BatchRequest{
		Consumption:       ingredientLines(batch.Items, costs),
		LaborCost:         batch.LaborCost,
		WasteCost:         batch.WasteCost,
		IndirectPct:       firstNull(o.IndirectPct, batch.IndirectPct),
		GlobalIndirectPct: s.globalIndirectPct(settings),
		ProducedQuantity:  produced,
		MarginPct:         settings.DefaultMarginPct,
		TaxPct:            settings.DefaultTaxPct,
	})
	if err != nil {
		return BatchCost{}, err
	}

	log.Debug().
		Int64("batch_id", id).
		Str("total_cost", result.TotalCost.String()).
		Bool("unit_cost_available", result.UnitCost.Valid).
		Msg("batch cost computed")

	return BatchCost{BatchID: id, ProducedOn: batch.ProducedOn, Result: result}, nil
}

func (s *Service) unitCosts(ctx context.Context, items []store.Item, asOf civil.Date) (map[int64]decimal.Decimal, error) {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	lines, err := s.store.ListPurchaseLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	return unitcost.ResolveAverage(lines, asOf)
}

// ingredientLines prices items; products never purchased cost zero.
func ingredientLines(items []store.Item, costs map[int64]decimal.Decimal) []costing.IngredientLine {
	lines := make([]costing.IngredientLine, 0, len(items))
	for _, it := range items {
		cost, ok := costs[it.ProductID]
		if !ok {
			cost = decimal.Zero
		}
		lines = append(lines, costing.IngredientLine{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			UnitCost:   cost,
			OtherCosts: it.OtherCosts,
		})
	}
	return lines
}

// PurchaseTotals sums a stored purchase.
type PurchaseTotals struct {
	PurchaseID  int64           `json:"purchaseId"`
	PurchasedOn civil.Date      `json:"purchasedOn"`
	Supplier    string          `json:"supplier"`
	Lines       int             `json:"lines"`
	Products    []int64         `json:"products"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// PurchaseTotals returns the amount of a stored purchase after line discounts.
func (s *Service) PurchaseTotals(ctx context.Context, id int64) (PurchaseTotals, error) {
	purchase, err := s.store.GetPurchase(ctx, id)
	if err != nil {
		return PurchaseTotals{}, err
	}

	discount := decimal.Zero
	for _, l := range purchase.Lines {
		discount = discount.Add(l.Discount)
	}

	return PurchaseTotals{
		PurchaseID:  id,
		PurchasedOn: purchase.PurchasedOn,
		Supplier:    purchase.Supplier,
		Lines:       len(purchase.Lines),
		Products:    unitcost.ProductIDs(purchase.Lines),
		Discount:    discount,
		Total:       unitcost.PurchaseTotal(purchase.Lines),
	}, nil
}
