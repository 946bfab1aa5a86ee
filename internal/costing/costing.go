// Package costing computes recipe estimates and production batch actual costs.
package costing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/dltaller/internal/apperror"
)

// ResultPlaces is the number of decimal places results are rounded to (half-even).
const ResultPlaces = 4

// IngredientLine is one raw material consumed, in the product's base unit.
type IngredientLine struct {
	ProductID  int64           `json:"productId"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unitCost"`
	OtherCosts decimal.Decimal `json:"otherCosts"`
}

// RecipeRequest holds the planned inputs of a recipe.
type RecipeRequest struct {
	Ingredients       []IngredientLine    `json:"ingredients"`
	LaborCost         decimal.Decimal     `json:"laborCost"`
	WasteCost         decimal.Decimal     `json:"wasteCost"`
	IndirectPct       decimal.NullDecimal `json:"indirectPct"`
	GlobalIndirectPct decimal.Decimal     `json:"globalIndirectPct"`
	YieldQuantity     decimal.NullDecimal `json:"yieldQuantity"`
	// OutputYields are the declared outputs' yields, used when YieldQuantity is absent or zero.
	OutputYields []decimal.Decimal `json:"outputYields,omitempty"`
	MarginPct    decimal.Decimal   `json:"marginPct"`
	TaxPct       decimal.Decimal   `json:"taxPct"`
}

// BatchRequest holds what a production batch actually consumed and produced.
type BatchRequest struct {
	Consumption       []IngredientLine    `json:"consumption"`
	LaborCost         decimal.Decimal     `json:"laborCost"`
	WasteCost         decimal.Decimal     `json:"wasteCost"`
	IndirectPct       decimal.NullDecimal `json:"indirectPct"`
	GlobalIndirectPct decimal.Decimal     `json:"globalIndirectPct"`
	ProducedQuantity  decimal.NullDecimal `json:"producedQuantity"`
	MarginPct         decimal.Decimal     `json:"marginPct"`
	TaxPct            decimal.Decimal     `json:"taxPct"`
}

// LineCost is the cost contribution of one ingredient line.
type LineCost struct {
	ProductID  int64           `json:"productId"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unitCost"`
	OtherCosts decimal.Decimal `json:"otherCosts"`
	Cost       decimal.Decimal `json:"cost"`
}

// Result is the cost breakdown shared by recipes and batches.
// UnitCost and SuggestedPrice are null when the yield is zero or absent.
type Result struct {
	Lines          []LineCost          `json:"lines"`
	DirectCost     decimal.Decimal     `json:"directCost"`
	IndirectPct    decimal.Decimal     `json:"indirectPct"`
	IndirectCost   decimal.Decimal     `json:"indirectCost"`
	LaborCost      decimal.Decimal     `json:"laborCost"`
	WasteCost      decimal.Decimal     `json:"wasteCost"`
	TotalCost      decimal.Decimal     `json:"totalCost"`
	YieldQuantity  decimal.Decimal     `json:"yieldQuantity"`
	UnitCost       decimal.NullDecimal `json:"unitCost"`
	SuggestedPrice decimal.NullDecimal `json:"suggestedPrice"`
}

// ComputeRecipeCost estimates what a recipe costs to make.
func ComputeRecipeCost(req RecipeRequest) (Result, error) {
	in := costInput{
		linesField:        "ingredients",
		lines:             req.Ingredients,
		labor:             req.LaborCost,
		waste:             req.WasteCost,
		indirectPct:       req.IndirectPct,
		globalIndirectPct: req.GlobalIndirectPct,
		marginPct:         req.MarginPct,
		taxPct:            req.TaxPct,
	}
	if err := in.validate(); err != nil {
		return Result{}, err
	}

	yield, err := resolveYield("yieldQuantity", req.YieldQuantity, "outputYields", req.OutputYields)
	if err != nil {
		return Result{}, err
	}
	in.yield = yield

	return costFromLines(in), nil
}

// ComputeBatchCost computes what a production batch actually cost.
func ComputeBatchCost(req BatchRequest) (Result, error) {
	in := costInput{
		linesField:        "consumption",
		lines:             req.Consumption,
		labor:             req.LaborCost,
		waste:             req.WasteCost,
		indirectPct:       req.IndirectPct,
		globalIndirectPct: req.GlobalIndirectPct,
		marginPct:         req.MarginPct,
		taxPct:            req.TaxPct,
	}
	if err := in.validate(); err != nil {
		return Result{}, err
	}

	yield, err := resolveYield("producedQuantity", req.ProducedQuantity, "", nil)
	if err != nil {
		return Result{}, err
	}
	in.yield = yield

	return costFromLines(in), nil
}

type costInput struct {
	linesField        string
	lines             []IngredientLine
	labor             decimal.Decimal
	waste             decimal.Decimal
	indirectPct       decimal.NullDecimal
	globalIndirectPct decimal.Decimal
	yield             decimal.Decimal
	marginPct         decimal.Decimal
	taxPct            decimal.Decimal
}

func (in costInput) validate() error {
	for i, line := range in.lines {
		prefix := fmt.Sprintf("%s[%d]", in.linesField, i)
		if err := nonNegative(prefix+".quantity", line.Quantity); err != nil {
			return err
		}
		if err := nonNegative(prefix+".unitCost", line.UnitCost); err != nil {
			return err
		}
		if err := nonNegative(prefix+".otherCosts", line.OtherCosts); err != nil {
			return err
		}
	}

	checks := []struct {
		field string
		value decimal.Decimal
	}{
		{"laborCost", in.labor},
		{"wasteCost", in.waste},
		{"globalIndirectPct", in.globalIndirectPct},
		{"marginPct", in.marginPct},
		{"taxPct", in.taxPct},
	}
	for _, c := range checks {
		if err := nonNegative(c.field, c.value); err != nil {
			return err
		}
	}
	if in.indirectPct.Valid {
		if err := nonNegative("indirectPct", in.indirectPct.Decimal); err != nil {
			return err
		}
	}
	return nil
}

// costFromLines is the single accumulation path for recipes and batches.
// Input must already be validated.
func costFromLines(in costInput) Result {
	lines := make([]LineCost, 0, len(in.lines))
	direct := decimal.Zero
	for _, line := range in.lines {
		cost := line.Quantity.Mul(line.UnitCost).Add(line.OtherCosts)
		direct = direct.Add(cost)
		lines = append(lines, LineCost{
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			UnitCost:   line.UnitCost,
			OtherCosts: line.OtherCosts,
			Cost:       round(cost),
		})
	}

	rawPct := in.globalIndirectPct
	if in.indirectPct.Valid {
		rawPct = in.indirectPct.Decimal
	}
	pct := NormalizePercent(rawPct)

	indirect := pct.Of(direct)
	total := direct.Add(indirect).Add(in.labor).Add(in.waste)

	result := Result{
		Lines:         lines,
		DirectCost:    round(direct),
		IndirectPct:   pct.Fraction(),
		IndirectCost:  round(indirect),
		LaborCost:     round(in.labor),
		WasteCost:     round(in.waste),
		TotalCost:     round(total),
		YieldQuantity: in.yield,
	}

	if in.yield.IsPositive() {
		unit := round(total.Div(in.yield))
		result.UnitCost = decimal.NewNullDecimal(unit)
		price := NormalizePercent(in.taxPct).Markup(NormalizePercent(in.marginPct).Markup(unit))
		result.SuggestedPrice = decimal.NewNullDecimal(round(price))
	}

	return result
}

// resolveYield returns the explicit quantity when positive, otherwise the sum of the
// fallback quantities. Zero means the unit cost is unavailable.
func resolveYield(field string, explicit decimal.NullDecimal, fallbackField string, fallback []decimal.Decimal) (decimal.Decimal, error) {
	if explicit.Valid {
		if err := nonNegative(field, explicit.Decimal); err != nil {
			return decimal.Zero, err
		}
		if explicit.Decimal.IsPositive() {
			return explicit.Decimal, nil
		}
	}

	sum := decimal.Zero
	for i, y := range fallback {
		if err := nonNegative(fmt.Sprintf("%s[%d]", fallbackField, i), y); err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(y)
	}
	return sum, nil
}

func nonNegative(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return apperror.InvalidInput(field, "must be >= 0, got %s", v.String())
	}
	return nil
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(ResultPlaces)
}
