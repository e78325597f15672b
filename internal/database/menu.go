package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Menu categories ---

const menuCategoryColumns = `id, tenant_id, name, active, created_at, updated_at`

func scanMenuCategory(row pgx.Row) (MenuCategory, error) {
	var c MenuCategory
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

type CreateMenuCategoryParams struct {
	TenantID uuid.UUID
	Name     string
}

func (q *Queries) CreateMenuCategory(ctx context.Context, arg CreateMenuCategoryParams) (MenuCategory, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO menu_categories (tenant_id, name)
		VALUES ($1, $2)
		RETURNING `+menuCategoryColumns,
		arg.TenantID, arg.Name)
	return scanMenuCategory(row)
}

func (q *Queries) ListMenuCategories(ctx context.Context, tenantID uuid.UUID) ([]MenuCategory, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+menuCategoryColumns+` FROM menu_categories
		WHERE tenant_id = $1 AND active = true
		ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []MenuCategory
	for rows.Next() {
		c, err := scanMenuCategory(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// --- Menu items ---

const menuItemColumns = `id, tenant_id, category_id, name, price, active, created_at, updated_at`

func scanMenuItem(row pgx.Row) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(&m.ID, &m.TenantID, &m.CategoryID, &m.Name, &m.Price,
		&m.Active, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

type CreateMenuItemParams struct {
	TenantID   uuid.UUID
	CategoryID pgtype.UUID
	Name       string
	Price      pgtype.Numeric
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO menu_items (tenant_id, category_id, name, price)
		VALUES ($1, $2, $3, $4)
		RETURNING `+menuItemColumns,
		arg.TenantID, arg.CategoryID, arg.Name, arg.Price)
	return scanMenuItem(row)
}

type GetMenuItemParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetMenuItem(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+menuItemColumns+` FROM menu_items
		WHERE id = $1 AND tenant_id = $2`, arg.ID, arg.TenantID)
	return scanMenuItem(row)
}

func (q *Queries) ListMenuItems(ctx context.Context, tenantID uuid.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+menuItemColumns+` FROM menu_items
		WHERE tenant_id = $1 AND active = true
		ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

type ListMenuItemsByIDsParams struct {
	TenantID uuid.UUID
	IDs      []uuid.UUID
}

// ListMenuItemsByIDs fetches menu items referenced by order lines; used for
// read-time enrichment.
func (q *Queries) ListMenuItemsByIDs(ctx context.Context, arg ListMenuItemsByIDsParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+menuItemColumns+` FROM menu_items
		WHERE tenant_id = $1 AND id = ANY($2)`, arg.TenantID, arg.IDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

type UpdateMenuItemParams struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	CategoryID pgtype.UUID
	Name       string
	Price      pgtype.Numeric
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE menu_items
		SET category_id = $3, name = $4, price = $5, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND active = true
		RETURNING `+menuItemColumns,
		arg.ID, arg.TenantID, arg.CategoryID, arg.Name, arg.Price)
	return scanMenuItem(row)
}

type SoftDeleteMenuItemParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) SoftDeleteMenuItem(ctx context.Context, arg SoftDeleteMenuItemParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, `
		UPDATE menu_items SET active = false, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND active = true
		RETURNING id`,
		arg.ID, arg.TenantID).Scan(&id)
	return id, err
}
