package database

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const tenantColumns = `id, name, business_type, active, metadata, created_at, updated_at`

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.BusinessType, &t.Active, &t.Metadata,
		&t.CreatedAt, &t.UpdatedAt)
	return t, err
}

type CreateTenantParams struct {
	Name         string
	BusinessType string
	Metadata     json.RawMessage
}

func (q *Queries) CreateTenant(ctx context.Context, arg CreateTenantParams) (Tenant, error) {
	metadata := arg.Metadata
	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO tenants (name, business_type, metadata)
		VALUES ($1, $2, $3)
		RETURNING `+tenantColumns,
		arg.Name, arg.BusinessType, metadata)
	return scanTenant(row)
}

func (q *Queries) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

func (q *Queries) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+tenantColumns+` FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

type UpdateTenantParams struct {
	ID           uuid.UUID
	BusinessType string
	Active       bool
	Metadata     json.RawMessage
}

// UpdateTenant changes the mutable tenant fields. Name is immutable and
// tenants are never hard-deleted; disabling sets active=false.
func (q *Queries) UpdateTenant(ctx context.Context, arg UpdateTenantParams) (Tenant, error) {
	metadata := arg.Metadata
	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}
	row := q.db.QueryRow(ctx, `
		UPDATE tenants
		SET business_type = $2, active = $3, metadata = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+tenantColumns,
		arg.ID, arg.BusinessType, arg.Active, metadata)
	return scanTenant(row)
}
