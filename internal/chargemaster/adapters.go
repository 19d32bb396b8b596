package chargemaster

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/medbill/internal/billing"
	"github.com/noah-isme/medbill/internal/money"
)

// ErrInvalidRecord is returned when a module-specific charge record cannot be normalised.
var ErrInvalidRecord = errors.New("invalid charge record")

// Record is a charge row as fetched by a billing screen, keyed by that screen's field names.
type Record map[string]any

// priceFields lists, per module, the field each screen stores its unit price under.
var priceFields = map[billing.Module][]string{
	billing.ModuleOPD:       {"amount"},
	billing.ModuleIPD:       {"standardCharge", "standard_charge"},
	billing.ModuleAmbulance: {"amount", "fare"},
	billing.ModulePathology: {"price"},
	billing.ModuleRadiology: {"price"},
}

var taxFields = []string{"taxPercent", "tax_percent", "tax"}

// Normalize translates a module-specific record into the shape the billing engine depends on.
// Price strings are decimal major units ("300.00"); integers are already minor units.
// Tax is a decimal percent string; integer tax values are whole percentages.
func Normalize(module billing.Module, rec Record) (billing.CatalogCharge, error) {
	fields, ok := priceFields[module]
	if !ok {
		return billing.CatalogCharge{}, fmt.Errorf("%w: unknown module %q", ErrInvalidRecord, module)
	}
	id, err := stringField(rec, "id")
	if err != nil {
		return billing.CatalogCharge{}, err
	}
	if id == "" {
		return billing.CatalogCharge{}, fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	name, err := stringField(rec, "name", "chargeName", "charge_name")
	if err != nil {
		return billing.CatalogCharge{}, err
	}

	raw, field := lookup(rec, fields...)
	if field == "" {
		return billing.CatalogCharge{}, fmt.Errorf("%w: %s missing %s", ErrInvalidRecord, id, strings.Join(fields, "/"))
	}
	price, err := toMinor(raw)
	if err != nil {
		return billing.CatalogCharge{}, fmt.Errorf("%w: %s.%s: %v", ErrInvalidRecord, id, field, err)
	}

	var tax money.Percent
	if rawTax, taxField := lookup(rec, taxFields...); taxField != "" {
		tax, err = toPercent(rawTax)
		if err != nil {
			return billing.CatalogCharge{}, fmt.Errorf("%w: %s.%s: %v", ErrInvalidRecord, id, taxField, err)
		}
	}
	return billing.CatalogCharge{ID: id, Name: name, UnitPrice: price, TaxPercent: tax}, nil
}

// NormalizeAll normalises a batch, stopping at the first bad record.
func NormalizeAll(module billing.Module, recs []Record) ([]billing.CatalogCharge, error) {
	out := make([]billing.CatalogCharge, 0, len(recs))
	for _, rec := range recs {
		charge, err := Normalize(module, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, charge)
	}
	return out, nil
}

func lookup(rec Record, keys ...string) (any, string) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v, k
		}
	}
	return nil, ""
}

func stringField(rec Record, keys ...string) (string, error) {
	raw, field := lookup(rec, keys...)
	if field == "" {
		return "", nil
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case json.Number:
		return v.String(), nil
	case int:
		return fmt.Sprint(v), nil
	case int64:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidRecord, field, raw)
	}
}

func toMinor(raw any) (money.Money, error) {
	switch v := raw.(type) {
	case string:
		return money.Parse(v)
	case int:
		return money.FromMinor(int64(v)), nil
	case int32:
		return money.FromMinor(int64(v)), nil
	case int64:
		return money.FromMinor(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("minor units must be an integer, got %s", v)
		}
		return money.FromMinor(n), nil
	case float32, float64:
		return 0, errors.New("floating point prices are not accepted; send a decimal string or integer minor units")
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}

func toPercent(raw any) (money.Percent, error) {
	switch v := raw.(type) {
	case string:
		return money.ParsePercent(v)
	case json.Number:
		return money.ParsePercent(v.String())
	case int:
		return money.WholePercent(int64(v)), nil
	case int64:
		return money.WholePercent(v), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}
