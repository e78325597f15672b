package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const counterColumns = `id, tenant_id, counter_name, last_token, created_at, updated_at`

func scanTokenCounter(row pgx.Row) (TokenCounter, error) {
	var c TokenCounter
	err := row.Scan(&c.ID, &c.TenantID, &c.CounterName, &c.LastToken,
		&c.CreatedAt, &c.UpdatedAt)
	return c, err
}

type CreateTokenCounterParams struct {
	TenantID    uuid.UUID
	CounterName string
}

func (q *Queries) CreateTokenCounter(ctx context.Context, arg CreateTokenCounterParams) (TokenCounter, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO token_counters (tenant_id, counter_name)
		VALUES ($1, $2)
		RETURNING `+counterColumns,
		arg.TenantID, arg.CounterName)
	return scanTokenCounter(row)
}

type GetTokenCounterParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetTokenCounter(ctx context.Context, arg GetTokenCounterParams) (TokenCounter, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+counterColumns+` FROM token_counters
		WHERE id = $1 AND tenant_id = $2`, arg.ID, arg.TenantID)
	return scanTokenCounter(row)
}

func (q *Queries) ListTokenCounters(ctx context.Context, tenantID uuid.UUID) ([]TokenCounter, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+counterColumns+` FROM token_counters
		WHERE tenant_id = $1
		ORDER BY counter_name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counters []TokenCounter
	for rows.Next() {
		c, err := scanTokenCounter(rows)
		if err != nil {
			return nil, err
		}
		counters = append(counters, c)
	}
	return counters, rows.Err()
}

type UpdateTokenCounterParams struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	CounterName string
}

func (q *Queries) UpdateTokenCounter(ctx context.Context, arg UpdateTokenCounterParams) (TokenCounter, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE token_counters
		SET counter_name = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+counterColumns,
		arg.ID, arg.TenantID, arg.CounterName)
	return scanTokenCounter(row)
}

type DeleteTokenCounterParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) DeleteTokenCounter(ctx context.Context, arg DeleteTokenCounterParams) error {
	tag, err := q.db.Exec(ctx, `
		DELETE FROM token_counters WHERE id = $1 AND tenant_id = $2`,
		arg.ID, arg.TenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type IncrementTokenCounterParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

// IncrementTokenCounter advances last_token by one and returns the new value.
// The increment is a single atomic read-modify-write; concurrent callers can
// never observe the same token.
func (q *Queries) IncrementTokenCounter(ctx context.Context, arg IncrementTokenCounterParams) (int32, error) {
	var lastToken int32
	err := q.db.QueryRow(ctx, `
		UPDATE token_counters
		SET last_token = last_token + 1, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING last_token`,
		arg.ID, arg.TenantID).Scan(&lastToken)
	return lastToken, err
}
