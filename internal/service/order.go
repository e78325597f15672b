package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tokopos/api/internal/database"
	"github.com/tokopos/api/internal/enum"
)

const maxOrderNumberRetries = 3

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order workflow needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	IncrementTokenCounter(ctx context.Context, arg database.IncrementTokenCounterParams) (int32, error)
	GetTokenCounter(ctx context.Context, arg database.GetTokenCounterParams) (database.TokenCounter, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetLatestOrder(ctx context.Context, tenantID uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error)
	ListMenuItemsByIDs(ctx context.Context, arg database.ListMenuItemsByIDsParams) ([]database.MenuItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	TenantID     uuid.UUID
	BusinessType string
	OrderNumber  string
	CounterID    string
	PaymentMode  string
	Metadata     json.RawMessage
	Items        []RawItem
}

// OrderResult is an order together with its read-time enrichment. Enrichment
// is best effort: a failure after commit degrades to the bare record with
// Enriched=false rather than failing the mutation.
type OrderResult struct {
	Order     database.Order
	MenuItems map[uuid.UUID]database.MenuItem
	Counter   *database.TokenCounter
	Enriched  bool
}

// OrderService orchestrates the order workflow. Every mutation runs in a
// single transaction; the order row is locked for the duration of any
// in-place mutation.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService. store reads outside
// transactions; newStore derives a store from a started transaction.
func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, store: store, newStore: newStore}
}

// Create validates the request and creates the order atomically. Retries up
// to maxOrderNumberRetries times on order_number unique violations (two
// concurrent creates can generate the same fallback number).
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	if len(req.Items) == 0 {
		return nil, validationf("items are required")
	}
	if req.PaymentMode == "" {
		req.PaymentMode = enum.PaymentModeCOD
	}
	if !enum.IsValidPaymentMode(req.PaymentMode) {
		return nil, validationf("invalid paymentMode %q", req.PaymentMode)
	}

	items, err := buildItems(req.BusinessType, req.Items)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		order, err := s.createTx(ctx, req, items)
		if err == nil {
			return s.enrich(ctx, order), nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, conflictf("order number conflict: %v", lastErr)
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the per-tenant order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_tenant_id_order_number_key"
	}
	return false
}

func (s *OrderService) createTx(ctx context.Context, req CreateOrderRequest, items database.ItemList) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, internalErr(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Token allocation and order insert commit together or not at all.
	tokenNumber := pgtype.Int4{}
	counterID := pgtype.UUID{}
	if req.CounterID != "" {
		cid, err := uuid.Parse(req.CounterID)
		if err != nil {
			return database.Order{}, validationf("invalid counterId")
		}
		token, err := store.IncrementTokenCounter(ctx, database.IncrementTokenCounterParams{
			ID:       cid,
			TenantID: req.TenantID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Order{}, notFoundf("counter not found for tenant")
			}
			return database.Order{}, internalErr(fmt.Errorf("increment counter: %w", err))
		}
		tokenNumber = pgtype.Int4{Int32: token, Valid: true}
		counterID = pgtype.UUID{Bytes: cid, Valid: true}
	}

	orderNumber := req.OrderNumber
	if orderNumber == "" {
		orderNumber = fmt.Sprintf("ORD-%d", time.Now().UnixMilli())
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TenantID:     req.TenantID,
		BusinessType: req.BusinessType,
		OrderNumber:  orderNumber,
		TokenNumber:  tokenNumber,
		CounterID:    counterID,
		Status:       enum.OrderStatusPending,
		Items:        items,
		PaymentMode:  req.PaymentMode,
		IsPaid:       false,
		GrandTotal:   decimalToNumeric(items.GrandTotal()),
		Metadata:     req.Metadata,
	})
	if err != nil {
		if isOrderNumberConflict(err) {
			return database.Order{}, err
		}
		return database.Order{}, internalErr(fmt.Errorf("create order: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, internalErr(fmt.Errorf("commit tx: %w", err))
	}
	return order, nil
}

// Get returns a single order with enrichment.
func (s *OrderService) Get(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderResult, error) {
	order, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, TenantID: tenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("order not found")
		}
		return nil, internalErr(fmt.Errorf("get order: %w", err))
	}
	return s.enrich(ctx, order), nil
}

// ListOrdersRequest filters the tenant's order listing.
type ListOrdersRequest struct {
	TenantID uuid.UUID
	Status   string
	Limit    int32
	Offset   int32
}

// List returns the tenant's orders, newest first.
func (s *OrderService) List(ctx context.Context, req ListOrdersRequest) ([]database.Order, error) {
	if req.Status != "" && !enum.IsValidOrderStatus(req.Status) {
		return nil, validationf("unknown order status %q", req.Status)
	}
	if req.Limit <= 0 {
		req.Limit = defaultListLimit
	}
	if req.Limit > maxListLimit {
		req.Limit = maxListLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	orders, err := s.store.ListOrders(ctx, database.ListOrdersParams{
		TenantID: req.TenantID,
		Status:   req.Status,
		Limit:    req.Limit,
		Offset:   req.Offset,
	})
	if err != nil {
		return nil, internalErr(fmt.Errorf("list orders: %w", err))
	}
	return orders, nil
}

// UpdateItemStatus moves one item through the item state machine and
// recomputes the order status from the result.
func (s *OrderService) UpdateItemStatus(ctx context.Context, tenantID, orderID, itemID uuid.UUID, status string, preparedQty *int32) (*OrderResult, error) {
	order, err := s.mutateTx(ctx, tenantID, orderID, func(o *database.Order) error {
		item := o.Items.FindItem(itemID)
		if item == nil {
			return notFoundf("item not found in order")
		}
		if err := applyItemTransition(item, status, preparedQty); err != nil {
			return err
		}
		o.Status = recomputeOrderStatus(o.Items)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, order), nil
}

// RemakeItem rejects the original item and appends a fresh pending clone
// linked back to it. qty defaults to the original's quantity.
func (s *OrderService) RemakeItem(ctx context.Context, tenantID, orderID, itemID uuid.UUID, qty *int32) (*OrderResult, error) {
	if qty != nil && *qty <= 0 {
		return nil, validationf("qty must be > 0")
	}
	order, err := s.mutateTx(ctx, tenantID, orderID, func(o *database.Order) error {
		original := o.Items.FindItem(itemID)
		if original == nil {
			return notFoundf("item not found in order")
		}
		remakeQty := original.Qty()
		if qty != nil {
			remakeQty = *qty
		}
		replacement, err := cloneForRemake(original, remakeQty)
		if err != nil {
			return err
		}
		original.SetStatus(enum.OrderItemStatusRejected)
		o.Items = append(o.Items, replacement)
		o.Status = recomputeOrderStatus(o.Items)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, order), nil
}

// MarkPaid flags the order paid. No status cascade.
func (s *OrderService) MarkPaid(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderResult, error) {
	order, err := s.mutateTx(ctx, tenantID, orderID, func(o *database.Order) error {
		o.IsPaid = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, order), nil
}

// Cancel voids the order and every item not already cooked or delivered.
func (s *OrderService) Cancel(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderResult, error) {
	order, err := s.mutateTx(ctx, tenantID, orderID, func(o *database.Order) error {
		o.Status = enum.OrderStatusCancelled
		forceCancelItems(o.Items)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, order), nil
}

// UpdateOrderStatus applies a direct order-status move with its item-level
// side effects.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, tenantID, orderID uuid.UUID, next string) (*OrderResult, error) {
	order, err := s.mutateTx(ctx, tenantID, orderID, func(o *database.Order) error {
		if err := validateOrderTransition(o.Status, next); err != nil {
			return err
		}
		forceItemsForOrderStatus(o.Items, next)
		o.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, order), nil
}

// ReorderLastRequest re-places the tenant's most recent order.
type ReorderLastRequest struct {
	TenantID   uuid.UUID
	CounterID  string
	ExtraItems []RawItem
}

// ReorderLast clones the tenant's latest order into a fresh pending order
// with a new token, optionally appending extra items.
func (s *OrderService) ReorderLast(ctx context.Context, req ReorderLastRequest) (*OrderResult, error) {
	if req.CounterID == "" {
		return nil, validationf("counterId is required")
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		order, err := s.reorderLastTx(ctx, req)
		if err == nil {
			return s.enrich(ctx, order), nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, conflictf("order number conflict: %v", lastErr)
}

func (s *OrderService) reorderLastTx(ctx context.Context, req ReorderLastRequest) (database.Order, error) {
	cid, err := uuid.Parse(req.CounterID)
	if err != nil {
		return database.Order{}, validationf("invalid counterId")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, internalErr(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	latest, err := store.GetLatestOrder(ctx, req.TenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, notFoundf("no previous order for tenant")
		}
		return database.Order{}, internalErr(fmt.Errorf("get latest order: %w", err))
	}

	token, err := store.IncrementTokenCounter(ctx, database.IncrementTokenCounterParams{
		ID:       cid,
		TenantID: req.TenantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, notFoundf("counter not found for tenant")
		}
		return database.Order{}, internalErr(fmt.Errorf("increment counter: %w", err))
	}

	items := make(database.ItemList, 0, len(latest.Items)+len(req.ExtraItems))
	for _, it := range latest.Items {
		cp, err := cloneForReorder(it)
		if err != nil {
			return database.Order{}, err
		}
		items = append(items, cp)
	}
	if len(req.ExtraItems) > 0 {
		extra, err := buildItems(latest.BusinessType, req.ExtraItems)
		if err != nil {
			return database.Order{}, err
		}
		items = append(items, extra...)
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TenantID:     req.TenantID,
		BusinessType: latest.BusinessType,
		OrderNumber:  fmt.Sprintf("ORD-%d", time.Now().UnixMilli()),
		TokenNumber:  pgtype.Int4{Int32: token, Valid: true},
		CounterID:    pgtype.UUID{Bytes: cid, Valid: true},
		Status:       enum.OrderStatusPending,
		Items:        items,
		PaymentMode:  latest.PaymentMode,
		IsPaid:       false,
		GrandTotal:   decimalToNumeric(items.GrandTotal()),
		Metadata:     latest.Metadata,
	})
	if err != nil {
		if isOrderNumberConflict(err) {
			return database.Order{}, err
		}
		return database.Order{}, internalErr(fmt.Errorf("create order: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, internalErr(fmt.Errorf("commit tx: %w", err))
	}
	return order, nil
}

// mutateTx locks the order row, applies mutate to the in-memory record, and
// writes back status, items, paid flag and recomputed grand total in one
// transaction. A mutate error rolls everything back.
func (s *OrderService) mutateTx(ctx context.Context, tenantID, orderID uuid.UUID, mutate func(*database.Order) error) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, internalErr(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: orderID, TenantID: tenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, notFoundf("order not found")
		}
		return database.Order{}, internalErr(fmt.Errorf("get order: %w", err))
	}

	if err := mutate(&order); err != nil {
		return database.Order{}, err
	}

	updated, err := store.UpdateOrder(ctx, database.UpdateOrderParams{
		ID:         order.ID,
		TenantID:   tenantID,
		Status:     order.Status,
		Items:      order.Items,
		IsPaid:     order.IsPaid,
		GrandTotal: decimalToNumeric(order.Items.GrandTotal()),
	})
	if err != nil {
		return database.Order{}, internalErr(fmt.Errorf("update order: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, internalErr(fmt.Errorf("commit tx: %w", err))
	}
	return updated, nil
}

// enrich resolves the order's cross-entity references (menu items, counter)
// after the mutation has committed. Failures degrade to the bare record.
func (s *OrderService) enrich(ctx context.Context, order database.Order) *OrderResult {
	res := &OrderResult{Order: order, Enriched: true}

	var menuIDs []uuid.UUID
	seen := map[uuid.UUID]bool{}
	for _, it := range order.Items {
		if r, ok := it.(*database.RestaurantItem); ok && !seen[r.MenuItemID] {
			seen[r.MenuItemID] = true
			menuIDs = append(menuIDs, r.MenuItemID)
		}
	}
	if len(menuIDs) > 0 {
		menuItems, err := s.store.ListMenuItemsByIDs(ctx, database.ListMenuItemsByIDsParams{
			TenantID: order.TenantID,
			IDs:      menuIDs,
		})
		if err != nil {
			log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("order enrichment failed: menu items")
			res.Enriched = false
		} else {
			res.MenuItems = make(map[uuid.UUID]database.MenuItem, len(menuItems))
			for _, m := range menuItems {
				res.MenuItems[m.ID] = m
			}
		}
	}

	if order.CounterID.Valid {
		counter, err := s.store.GetTokenCounter(ctx, database.GetTokenCounterParams{
			ID:       uuid.UUID(order.CounterID.Bytes),
			TenantID: order.TenantID,
		})
		if err != nil {
			log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("order enrichment failed: counter")
			res.Enriched = false
		} else {
			res.Counter = &counter
		}
	}

	return res
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
