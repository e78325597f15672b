package database

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, tenant_id, business_type, order_number, token_number, counter_id,
	status, items, payment_mode, is_paid, grand_total, metadata, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var items []byte
	err := row.Scan(&o.ID, &o.TenantID, &o.BusinessType, &o.OrderNumber,
		&o.TokenNumber, &o.CounterID, &o.Status, &items, &o.PaymentMode,
		&o.IsPaid, &o.GrandTotal, &o.Metadata, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, err
	}
	return o, nil
}

type CreateOrderParams struct {
	TenantID     uuid.UUID
	BusinessType string
	OrderNumber  string
	TokenNumber  pgtype.Int4
	CounterID    pgtype.UUID
	Status       string
	Items        ItemList
	PaymentMode  string
	IsPaid       bool
	GrandTotal   pgtype.Numeric
	Metadata     json.RawMessage
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	items, err := json.Marshal(arg.Items)
	if err != nil {
		return Order{}, err
	}
	metadata := arg.Metadata
	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (tenant_id, business_type, order_number, token_number,
			counter_id, status, items, payment_mode, is_paid, grand_total, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+orderColumns,
		arg.TenantID, arg.BusinessType, arg.OrderNumber, arg.TokenNumber,
		arg.CounterID, arg.Status, items, arg.PaymentMode, arg.IsPaid,
		arg.GrandTotal, metadata)
	return scanOrder(row)
}

type GetOrderParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE id = $1 AND tenant_id = $2`, arg.ID, arg.TenantID)
	return scanOrder(row)
}

// GetOrderForUpdate locks the order row for the duration of the enclosing
// transaction, serializing concurrent mutations of the same order.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE`, arg.ID, arg.TenantID)
	return scanOrder(row)
}

// GetLatestOrder returns the tenant's most recently created order.
func (q *Queries) GetLatestOrder(ctx context.Context, tenantID uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, tenantID)
	return scanOrder(row)
}

type ListOrdersParams struct {
	TenantID uuid.UUID
	Status   string
	Limit    int32
	Offset   int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		arg.TenantID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type UpdateOrderParams struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Status     string
	Items      ItemList
	IsPaid     bool
	GrandTotal pgtype.Numeric
}

// UpdateOrder writes back the mutable order fields after a workflow step.
func (q *Queries) UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error) {
	items, err := json.Marshal(arg.Items)
	if err != nil {
		return Order{}, err
	}
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET status = $3, items = $4, is_paid = $5, grand_total = $6, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+orderColumns,
		arg.ID, arg.TenantID, arg.Status, items, arg.IsPaid, arg.GrandTotal)
	return scanOrder(row)
}
