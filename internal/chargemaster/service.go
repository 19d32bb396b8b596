package chargemaster

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/medbill/internal/billing"
	"github.com/noah-isme/medbill/internal/obs"
)

// Source is the authoritative charge lookup, normally *Store.
type Source interface {
	Get(ctx context.Context, module billing.Module, id string) (billing.CatalogCharge, error)
	List(ctx context.Context, module billing.Module) ([]billing.CatalogCharge, error)
}

// Writer persists charge master edits, normally *Store.
type Writer interface {
	Upsert(ctx context.Context, module billing.Module, charge billing.CatalogCharge) error
	Deactivate(ctx context.Context, module billing.Module, id string) error
}

// ErrReadOnly is returned by write operations on a Service built without a Writer.
var ErrReadOnly = errors.New("charge master is read-only")

// Service is a read-through charge lookup with a Redis cache in front of the store.
type Service struct {
	source Source
	writer Writer
	cache  *Cache
	logger zerolog.Logger
}

// ServiceConfig groups Service dependencies. Writer is optional.
type ServiceConfig struct {
	Source Source
	Writer Writer
	Cache  *Cache
	Logger zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Source == nil {
		return nil, errors.New("charge source is required")
	}
	return &Service{source: cfg.Source, writer: cfg.Writer, cache: cfg.Cache, logger: cfg.Logger}, nil
}

// Get returns a single charge. Cache failures are logged and fall through to the store.
func (s *Service) Get(ctx context.Context, module billing.Module, id string) (billing.CatalogCharge, error) {
	ctx, span := otel.Tracer("chargemaster.Service").Start(ctx, "ChargeMaster.Get")
	defer span.End()
	span.SetAttributes(attribute.String("billing.module", string(module)), attribute.String("charge.id", id))

	charge, hit, err := s.cache.Get(ctx, module, id)
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Str("module", string(module)).Str("charge_id", id).Msg("charge cache read failed")
		recordCache("error")
	case hit:
		recordCache("hit")
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return charge, nil
	default:
		recordCache("miss")
	}

	charge, err = s.source.Get(ctx, module, id)
	if err != nil {
		span.RecordError(err)
		return billing.CatalogCharge{}, err
	}
	if err := s.cache.Set(ctx, module, charge); err != nil {
		s.logger.Warn().Err(err).Str("module", string(module)).Str("charge_id", id).Msg("charge cache write failed")
	}
	return charge, nil
}

// GetMany resolves every distinct id, failing on the first unknown charge.
func (s *Service) GetMany(ctx context.Context, module billing.Module, ids []string) ([]billing.CatalogCharge, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]billing.CatalogCharge, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		charge, err := s.Get(ctx, module, id)
		if err != nil {
			return nil, err
		}
		out = append(out, charge)
	}
	return out, nil
}

// List returns the module catalog straight from the store.
func (s *Service) List(ctx context.Context, module billing.Module) ([]billing.CatalogCharge, error) {
	return s.source.List(ctx, module)
}

// Upsert writes a charge and evicts its cached copy.
func (s *Service) Upsert(ctx context.Context, module billing.Module, charge billing.CatalogCharge) error {
	if s.writer == nil {
		return ErrReadOnly
	}
	if err := s.writer.Upsert(ctx, module, charge); err != nil {
		return err
	}
	return s.evict(ctx, module, charge.ID)
}

// Deactivate hides a charge from lookups and evicts its cached copy.
func (s *Service) Deactivate(ctx context.Context, module billing.Module, id string) error {
	if s.writer == nil {
		return ErrReadOnly
	}
	if err := s.writer.Deactivate(ctx, module, id); err != nil {
		return err
	}
	return s.evict(ctx, module, id)
}

func (s *Service) evict(ctx context.Context, module billing.Module, id string) error {
	if err := s.cache.Invalidate(ctx, module, id); err != nil {
		return fmt.Errorf("invalidate cached charge %s/%s: %w", module, id, err)
	}
	return nil
}

func recordCache(result string) {
	if obs.ChargeCacheTotal != nil {
		obs.ChargeCacheTotal.WithLabelValues(result).Inc()
	}
}
