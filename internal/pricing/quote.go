package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownService  = errors.New("unknown_service")
	ErrInactiveService = errors.New("inactive_service")
	ErrInvalidOption   = errors.New("invalid_option")
)

// ServiceRule is the subset of a catalog extra service the quote preview needs.
type ServiceRule struct {
	ID              string
	Name            string
	PricingType     PricingType
	Price           decimal.Decimal
	Percentage      decimal.Decimal
	MinQuantity     int
	MaxQuantity     int
	DefaultQuantity int
	IsRequired      bool
	IsActive        bool
	// Options maps option value to its price for select inputs. When non-nil
	// the selected option price replaces Price.
	Options map[string]decimal.Decimal
}

type Selection struct {
	ServiceID string
	Quantity  int
	Option    string
}

type QuoteLine struct {
	ServiceID string          `json:"service_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

type Quote struct {
	Lines  []QuoteLine `json:"lines"`
	Totals Totals      `json:"totals"`
}

// QuoteError ties a failure to the service that caused it.
type QuoteError struct {
	ServiceID string
	Err       error
}

func (e *QuoteError) Error() string { return e.ServiceID + ": " + e.Err.Error() }

func (e *QuoteError) Unwrap() error { return e.Err }

// QuoteExtraServices previews a quote from catalog selections. Required
// services that were not selected are added with their default quantity.
func QuoteExtraServices(basePrice decimal.Decimal, rules []ServiceRule, selections []Selection) (Quote, error) {
	if err := ValidateNonNegative(basePrice); err != nil {
		return Quote{}, err
	}

	byID := make(map[string]ServiceRule, len(rules))
	for _, rule := range rules {
		byID[rule.ID] = rule
	}

	selected := make(map[string]Selection, len(selections))
	order := make([]string, 0, len(selections))
	for _, sel := range selections {
		if _, ok := byID[sel.ServiceID]; !ok {
			return Quote{}, &QuoteError{ServiceID: sel.ServiceID, Err: ErrUnknownService}
		}
		if _, dup := selected[sel.ServiceID]; !dup {
			order = append(order, sel.ServiceID)
		}
		selected[sel.ServiceID] = sel
	}
	for _, rule := range rules {
		if !rule.IsRequired || !rule.IsActive {
			continue
		}
		if _, ok := selected[rule.ID]; ok {
			continue
		}
		selected[rule.ID] = Selection{ServiceID: rule.ID, Quantity: rule.DefaultQuantity}
		order = append(order, rule.ID)
	}

	quote := Quote{Lines: make([]QuoteLine, 0, len(order))}
	items := make([]LineItem, 0, len(order))
	for _, id := range order {
		rule := byID[id]
		sel := selected[id]
		if !rule.IsActive {
			return Quote{}, &QuoteError{ServiceID: id, Err: ErrInactiveService}
		}

		qty := sel.Quantity
		if qty == 0 {
			qty = rule.DefaultQuantity
		}
		if err := ValidateQuantity(qty, rule.MinQuantity, rule.MaxQuantity); err != nil {
			return Quote{}, &QuoteError{ServiceID: id, Err: err}
		}

		price := rule.Price
		if rule.Options != nil {
			optionPrice, ok := rule.Options[sel.Option]
			if !ok {
				return Quote{}, &QuoteError{ServiceID: id, Err: ErrInvalidOption}
			}
			price = optionPrice
		}

		unit, lineQty := CatalogLine(rule.PricingType, price, rule.Percentage, basePrice, qty)
		quote.Lines = append(quote.Lines, QuoteLine{
			ServiceID: id,
			Name:      rule.Name,
			Quantity:  lineQty,
			UnitPrice: unit,
			Total:     LineTotal(unit, lineQty),
		})
		items = append(items, LineItem{UnitPrice: unit, Quantity: lineQty})
	}

	quote.Totals = RecomputeSaleTotals(items, nil, basePrice)
	return quote, nil
}
