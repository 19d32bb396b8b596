package chargemaster

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/medbill/internal/billing"
	"github.com/noah-isme/medbill/internal/money"
)

func TestNormalizeModuleShapes(t *testing.T) {
	cases := []struct {
		name   string
		module billing.Module
		rec    Record
		want   billing.CatalogCharge
	}{
		{
			name:   "opd amount string",
			module: billing.ModuleOPD,
			rec:    Record{"id": "consult", "name": "Consultation", "amount": "300.00", "taxPercent": "18"},
			want:   billing.CatalogCharge{ID: "consult", Name: "Consultation", UnitPrice: 30000, TaxPercent: money.WholePercent(18)},
		},
		{
			name:   "ipd standard charge",
			module: billing.ModuleIPD,
			rec:    Record{"id": "bed-general", "chargeName": "General Ward Bed", "standardCharge": "1250.5", "tax": "12.5"},
			want:   billing.CatalogCharge{ID: "bed-general", Name: "General Ward Bed", UnitPrice: 125050, TaxPercent: money.PercentFromBasisPoints(1250)},
		},
		{
			name:   "ambulance fare in minor units",
			module: billing.ModuleAmbulance,
			rec:    Record{"id": "als", "name": "ALS Trip", "fare": int64(250000)},
			want:   billing.CatalogCharge{ID: "als", Name: "ALS Trip", UnitPrice: 250000},
		},
		{
			name:   "pathology price",
			module: billing.ModulePathology,
			rec:    Record{"id": "cbc", "name": "CBC", "price": "450", "tax_percent": 5},
			want:   billing.CatalogCharge{ID: "cbc", Name: "CBC", UnitPrice: 45000, TaxPercent: money.WholePercent(5)},
		},
		{
			name:   "radiology price",
			module: billing.ModuleRadiology,
			rec:    Record{"id": 42, "name": "Chest X-Ray", "price": "800.00"},
			want:   billing.CatalogCharge{ID: "42", Name: "Chest X-Ray", UnitPrice: 80000},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.module, tc.rec)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeFromDecodedJSON(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`[{"id":"mri","name":"MRI","price":1500000,"tax":"18"}]`))
	dec.UseNumber()
	var recs []Record
	require.NoError(t, dec.Decode(&recs))

	charges, err := NormalizeAll(billing.ModuleRadiology, recs)
	require.NoError(t, err)
	require.Len(t, charges, 1)
	require.Equal(t, money.Money(1500000), charges[0].UnitPrice)
	require.Equal(t, money.WholePercent(18), charges[0].TaxPercent)
}

func TestNormalizeRejectsBadRecords(t *testing.T) {
	cases := []struct {
		name   string
		module billing.Module
		rec    Record
	}{
		{"wrong field for module", billing.ModulePathology, Record{"id": "cbc", "amount": "450"}},
		{"float price", billing.ModuleOPD, Record{"id": "x", "amount": 300.5}},
		{"sub-paise price", billing.ModuleOPD, Record{"id": "x", "amount": "300.505"}},
		{"missing id", billing.ModuleOPD, Record{"amount": "300"}},
		{"bad tax", billing.ModuleOPD, Record{"id": "x", "amount": "300", "tax": "eighteen"}},
		{"unknown module", billing.Module("pharmacy"), Record{"id": "x", "price": "1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.module, tc.rec)
			require.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}
