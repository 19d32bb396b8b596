package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/medbill/internal/billing"
	"github.com/noah-isme/medbill/internal/chargemaster"
)

type recordingStore struct {
	deactivated []string
}

func (s *recordingStore) Get(context.Context, billing.Module, string) (billing.CatalogCharge, error) {
	return billing.CatalogCharge{}, chargemaster.ErrChargeNotFound
}

func (s *recordingStore) List(context.Context, billing.Module) ([]billing.CatalogCharge, error) {
	return nil, nil
}

func (s *recordingStore) Upsert(context.Context, billing.Module, billing.CatalogCharge) error {
	return nil
}

func (s *recordingStore) Deactivate(_ context.Context, module billing.Module, id string) error {
	s.deactivated = append(s.deactivated, string(module)+"/"+id)
	return nil
}

func TestSampleChargesNormalise(t *testing.T) {
	for _, module := range billing.Modules() {
		charges, err := chargemaster.NormalizeAll(module, sampleCharges[module])
		require.NoError(t, err, module)
		require.NotEmpty(t, charges, module)
		for _, c := range charges {
			require.True(t, c.UnitPrice > 0, c.ID)
		}
	}
}

func TestDeactivateCharge(t *testing.T) {
	store := &recordingStore{}
	svc, err := chargemaster.NewService(chargemaster.ServiceConfig{Source: store, Writer: store, Logger: zerolog.Nop()})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, deactivateCharge(ctx, svc, "IPD/ bed-icu "))
	require.Equal(t, []string{"ipd/bed-icu"}, store.deactivated)

	require.Error(t, deactivateCharge(ctx, svc, "ipd"))
	require.Error(t, deactivateCharge(ctx, svc, "ipd/"))
	require.Error(t, deactivateCharge(ctx, svc, "pharmacy/x"))
	require.Len(t, store.deactivated, 1)
}
