package chargemaster

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/medbill/internal/billing"
	"github.com/noah-isme/medbill/internal/money"
)

// ErrChargeNotFound is returned for unknown or inactive charges.
var ErrChargeNotFound = errors.New("charge not found")

// DB is the subset of pgxpool.Pool used by the store.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store reads and writes the charge_master table.
type Store struct {
	db DB
}

// NewStore constructs a Store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const getChargeSQL = `
SELECT id, name, unit_price_minor, tax_percent::text
FROM charge_master
WHERE module = $1 AND id = $2 AND active`

const listChargesSQL = `
SELECT id, name, unit_price_minor, tax_percent::text
FROM charge_master
WHERE module = $1 AND active
ORDER BY name, id`

const upsertChargeSQL = `
INSERT INTO charge_master (module, id, name, unit_price_minor, tax_percent, active, updated_at)
VALUES ($1, $2, $3, $4, $5::numeric, TRUE, NOW())
ON CONFLICT (module, id) DO UPDATE
SET name = EXCLUDED.name,
    unit_price_minor = EXCLUDED.unit_price_minor,
    tax_percent = EXCLUDED.tax_percent,
    active = TRUE,
    updated_at = NOW()`

const deactivateChargeSQL = `
UPDATE charge_master SET active = FALSE, updated_at = NOW()
WHERE module = $1 AND id = $2 AND active`

// Get loads an active charge.
func (s *Store) Get(ctx context.Context, module billing.Module, id string) (billing.CatalogCharge, error) {
	charge, err := scanCharge(s.db.QueryRow(ctx, getChargeSQL, string(module), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return billing.CatalogCharge{}, fmt.Errorf("%w: %s/%s", ErrChargeNotFound, module, id)
		}
		return billing.CatalogCharge{}, fmt.Errorf("get charge %s/%s: %w", module, id, err)
	}
	return charge, nil
}

// List returns all active charges of a module.
func (s *Store) List(ctx context.Context, module billing.Module) ([]billing.CatalogCharge, error) {
	rows, err := s.db.Query(ctx, listChargesSQL, string(module))
	if err != nil {
		return nil, fmt.Errorf("list charges %s: %w", module, err)
	}
	defer rows.Close()

	var out []billing.CatalogCharge
	for rows.Next() {
		charge, err := scanCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan charge %s: %w", module, err)
		}
		out = append(out, charge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list charges %s: %w", module, err)
	}
	return out, nil
}

// Upsert inserts or replaces a charge and reactivates it.
func (s *Store) Upsert(ctx context.Context, module billing.Module, charge billing.CatalogCharge) error {
	if !charge.TaxPercent.InRange() {
		return fmt.Errorf("upsert charge %s/%s: tax percent %s out of range", module, charge.ID, charge.TaxPercent)
	}
	if charge.UnitPrice.IsNegative() {
		return fmt.Errorf("upsert charge %s/%s: negative unit price", module, charge.ID)
	}
	_, err := s.db.Exec(ctx, upsertChargeSQL, string(module), charge.ID, charge.Name, charge.UnitPrice.Minor(), charge.TaxPercent.String())
	if err != nil {
		return fmt.Errorf("upsert charge %s/%s: %w", module, charge.ID, err)
	}
	return nil
}

// Deactivate hides a charge from lookups without deleting billed history.
func (s *Store) Deactivate(ctx context.Context, module billing.Module, id string) error {
	tag, err := s.db.Exec(ctx, deactivateChargeSQL, string(module), id)
	if err != nil {
		return fmt.Errorf("deactivate charge %s/%s: %w", module, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", ErrChargeNotFound, module, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharge(row rowScanner) (billing.CatalogCharge, error) {
	var (
		charge   billing.CatalogCharge
		minor    int64
		taxValue string
	)
	if err := row.Scan(&charge.ID, &charge.Name, &minor, &taxValue); err != nil {
		return billing.CatalogCharge{}, err
	}
	tax, err := money.ParsePercent(taxValue)
	if err != nil {
		return billing.CatalogCharge{}, err
	}
	charge.UnitPrice = money.FromMinor(minor)
	charge.TaxPercent = tax
	return charge, nil
}
