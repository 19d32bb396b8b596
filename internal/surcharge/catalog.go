// Package surcharge holds the per-module flat fee catalog applied after bill percentage math.
package surcharge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/medbill/internal/billing"
	"github.com/noah-isme/medbill/internal/money"
)

const (
	CodeHomeCollection = "HOME_COLLECTION"
	CodeDispatch       = "DISPATCH"
)

// Fee is a named flat charge a module may add to a bill.
type Fee struct {
	Code   string      `json:"code"`
	Name   string      `json:"name"`
	Amount money.Money `json:"amount"`
}

// Override replaces or adds a fee amount for one module, typically from configuration.
type Override struct {
	Module billing.Module
	Code   string
	Amount money.Money
}

// DefaultFees returns the built-in fee schedule in minor units.
func DefaultFees() map[billing.Module][]Fee {
	return map[billing.Module][]Fee{
		billing.ModulePathology: {{Code: CodeHomeCollection, Name: "Home Collection", Amount: 10000}},
		billing.ModuleRadiology: {{Code: CodeHomeCollection, Name: "Home Collection", Amount: 10000}},
		billing.ModuleAmbulance: {{Code: CodeDispatch, Name: "Dispatch", Amount: 50000}},
	}
}

// Catalog is an immutable lookup of fees per module. Safe for concurrent use.
type Catalog struct {
	fees map[billing.Module]map[string]Fee
}

// NewCatalog validates fees and builds a Catalog. Codes are case-insensitive.
func NewCatalog(fees map[billing.Module][]Fee) (*Catalog, error) {
	c := &Catalog{fees: make(map[billing.Module]map[string]Fee, len(fees))}
	for module, list := range fees {
		for _, fee := range list {
			if err := c.put(module, fee); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// FromConfig starts from DefaultFees and applies overrides on top.
func FromConfig(overrides []Override) (*Catalog, error) {
	c, err := NewCatalog(DefaultFees())
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		code := normalizeCode(o.Code)
		fee, ok := c.fees[o.Module][code]
		if !ok {
			fee = Fee{Code: code, Name: displayName(code)}
		}
		fee.Amount = o.Amount
		if err := c.put(o.Module, fee); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) put(module billing.Module, fee Fee) error {
	if _, err := billing.ParseModule(string(module)); err != nil {
		return err
	}
	fee.Code = normalizeCode(fee.Code)
	if fee.Code == "" {
		return fmt.Errorf("surcharge for %s has empty code", module)
	}
	if fee.Amount.IsNegative() {
		return fmt.Errorf("surcharge %s/%s has negative amount", module, fee.Code)
	}
	if strings.TrimSpace(fee.Name) == "" {
		fee.Name = displayName(fee.Code)
	}
	if c.fees[module] == nil {
		c.fees[module] = make(map[string]Fee)
	}
	c.fees[module][fee.Code] = fee
	return nil
}

// List returns a module's fees ordered by code.
func (c *Catalog) List(module billing.Module) []Fee {
	out := make([]Fee, 0, len(c.fees[module]))
	for _, fee := range c.fees[module] {
		out = append(out, fee)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Lookup finds a single fee by code.
func (c *Catalog) Lookup(module billing.Module, code string) (Fee, bool) {
	fee, ok := c.fees[module][normalizeCode(code)]
	return fee, ok
}

// Resolve maps requested codes to bill surcharges in request order. Duplicates are applied once
// per occurrence; an unknown code is a validation error on surcharges[i].
func (c *Catalog) Resolve(module billing.Module, codes []string) ([]billing.Surcharge, error) {
	out := make([]billing.Surcharge, 0, len(codes))
	for i, code := range codes {
		fee, ok := c.Lookup(module, code)
		if !ok {
			return nil, billing.NewValidationError(fmt.Sprintf("surcharges[%d]", i),
				fmt.Sprintf("unknown surcharge %q for module %s", code, module))
		}
		out = append(out, billing.Surcharge{Code: fee.Code, Name: fee.Name, Amount: fee.Amount})
	}
	return out, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func displayName(code string) string {
	words := strings.FieldsFunc(strings.ToLower(code), func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
