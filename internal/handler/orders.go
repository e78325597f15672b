package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tokopos/api/internal/database"
	"github.com/tokopos/api/internal/enum"
	"github.com/tokopos/api/internal/service"
	"github.com/tokopos/api/internal/ws"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Create(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	Get(ctx context.Context, tenantID, orderID uuid.UUID) (*service.OrderResult, error)
	List(ctx context.Context, req service.ListOrdersRequest) ([]database.Order, error)
	UpdateItemStatus(ctx context.Context, tenantID, orderID, itemID uuid.UUID, status string, preparedQty *int32) (*service.OrderResult, error)
	RemakeItem(ctx context.Context, tenantID, orderID, itemID uuid.UUID, qty *int32) (*service.OrderResult, error)
	MarkPaid(ctx context.Context, tenantID, orderID uuid.UUID) (*service.OrderResult, error)
	Cancel(ctx context.Context, tenantID, orderID uuid.UUID) (*service.OrderResult, error)
	UpdateOrderStatus(ctx context.Context, tenantID, orderID uuid.UUID, next string) (*service.OrderResult, error)
	ReorderLast(ctx context.Context, req service.ReorderLastRequest) (*service.OrderResult, error)
}

// Broadcaster pushes order events to connected clients.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToTenant(tenantID uuid.UUID, event ws.Event)
}

// OrderHandler handles order workflow endpoints.
type OrderHandler struct {
	svc OrderServicer
	hub Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a tenant-scoped subrouter: /tenants/{tid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Post("/reorder", h.ReorderLast)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/items/status", h.UpdateItemStatus)
	r.Post("/{id}/items/remake", h.RemakeItem)
	r.Patch("/{id}/paid", h.MarkPaid)
	r.Patch("/{id}/cancel", h.Cancel)
	r.Patch("/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type rawItemRequest struct {
	MenuItemID           string           `json:"menu_item_id"`
	ProductID            string           `json:"product_id"`
	ServiceID            string           `json:"service_id"`
	VariantID            string           `json:"variant_id"`
	WarehouseID          string           `json:"warehouse_id"`
	AssignedProviderID   string           `json:"assigned_provider_id"`
	ServiceName          string           `json:"service_name"`
	Variant              string           `json:"variant"`
	SKU                  string           `json:"sku"`
	ShippingMethod       string           `json:"shipping_method"`
	TrackingNumber       string           `json:"tracking_number"`
	Qty                  *int32           `json:"qty"`
	Price                *decimal.Decimal `json:"price"`
	UnitPrice            *decimal.Decimal `json:"unit_price"`
	Total                *decimal.Decimal `json:"total"`
	DurationMinutes      *int32           `json:"duration_minutes"`
	ExpectedDeliveryDate *time.Time       `json:"expected_delivery_date"`
	ScheduledTime        *time.Time       `json:"scheduled_time"`
}

type createOrderRequest struct {
	BusinessType string           `json:"business_type"`
	OrderNumber  string           `json:"order_number"`
	CounterID    string           `json:"counter_id"`
	PaymentMode  string           `json:"payment_mode"`
	Metadata     json.RawMessage  `json:"metadata"`
	Items        []rawItemRequest `json:"items"`
}

type updateItemStatusRequest struct {
	ItemID      string `json:"item_id"`
	Status      string `json:"status"`
	PreparedQty *int32 `json:"prepared_qty"`
}

type remakeItemRequest struct {
	ItemID string `json:"item_id"`
	Qty    *int32 `json:"qty"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

type reorderRequest struct {
	CounterID  string           `json:"counter_id"`
	ExtraItems []rawItemRequest `json:"extra_items"`
}

type orderResponse struct {
	ID           uuid.UUID         `json:"id"`
	TenantID     uuid.UUID         `json:"tenant_id"`
	BusinessType string            `json:"business_type"`
	OrderNumber  string            `json:"order_number"`
	TokenNumber  *int32            `json:"token_number"`
	CounterID    *string           `json:"counter_id"`
	Status       string            `json:"status"`
	Items        database.ItemList `json:"items"`
	PaymentMode  string            `json:"payment_mode"`
	IsPaid       bool              `json:"is_paid"`
	GrandTotal   string            `json:"grand_total"`
	Metadata     json.RawMessage   `json:"metadata"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// orderDetailResponse extends orderResponse with resolved references.
type orderDetailResponse struct {
	orderResponse
	MenuItems []menuItemResponse `json:"menu_items,omitempty"`
	Counter   *counterResponse   `json:"counter,omitempty"`
	Enriched  bool               `json:"enriched"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// Create handles POST /tenants/{tid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.BusinessType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "business_type is required"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	result, err := h.svc.Create(r.Context(), service.CreateOrderRequest{
		TenantID:     tenantID,
		BusinessType: req.BusinessType,
		OrderNumber:  req.OrderNumber,
		CounterID:    req.CounterID,
		PaymentMode:  req.PaymentMode,
		Metadata:     req.Metadata,
		Items:        toRawItems(req.Items),
	})
	if err != nil {
		writeServiceError(w, "create order", err)
		return
	}

	h.broadcast(tenantID, "order.created", result)
	writeJSON(w, http.StatusCreated, toOrderDetailResponse(result))
}

// List handles GET /tenants/{tid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	orders, err := h.svc.List(r.Context(), service.ListOrdersRequest{
		TenantID: tenantID,
		Status:   r.URL.Query().Get("status"),
		Limit:    int32(limit),
		Offset:   int32(offset),
	})
	if err != nil {
		writeServiceError(w, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /tenants/{tid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Get(r.Context(), tenantID, orderID)
	if err != nil {
		writeServiceError(w, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderDetailResponse(result))
}

// UpdateItemStatus handles PATCH /tenants/{tid}/orders/{id}/items/status.
func (h *OrderHandler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	var req updateItemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_id"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}
	if !enum.IsValidOrderItemStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown item status"})
		return
	}

	result, err := h.svc.UpdateItemStatus(r.Context(), tenantID, orderID, itemID, req.Status, req.PreparedQty)
	if err != nil {
		writeServiceError(w, "update item status", err)
		return
	}

	h.broadcast(tenantID, "order.updated", result)
	writeJSON(w, http.StatusOK, toOrderDetailResponse(result))
}

// RemakeItem handles POST /tenants/{tid}/orders/{id}/items/remake.
func (h *OrderHandler) RemakeItem(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	var req remakeItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_id"})
		return
	}

	result, err := h.svc.RemakeItem(r.Context(), tenantID, orderID, itemID, req.Qty)
	if err != nil {
		writeServiceError(w, "remake item", err)
		return
	}

	h.broadcast(tenantID, "order.updated", result)
	writeJSON(w, http.StatusOK, toOrderDetailResponse(result))
}

// MarkPaid handles PATCH /tenants/{tid}/orders/{id}/paid.
func (h *OrderHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	result, err := h.svc.MarkPaid(r.Context(), tenantID, orderID)
	if err != nil {
		writeServiceError(w, "mark paid", err)
		return
	}

	h.broadcast(tenantID, "order.updated", result)
	writeJSON(w, http.StatusOK, toOrderDetailResponse(result))
}

// Cancel handles PATCH /tenants/{tid}/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Cancel(r.Context(), tenantID, orderID)
	if err != nil {
		writeServiceError(w, "cancel order", err)
		return
	}

	h.broadcast(tenantID, "order.cancelled", result)
	writeJSON(w, http.StatusOK, toOrderDetailResponse(result))
}

// UpdateStatus handles PATCH /tenants/{tid}/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	result, err := h.svc.UpdateOrderStatus(r.Context(), tenantID, orderID, req.Status)
	if err != nil {
		writeServiceError(w, "update order status", err)
		return
	}

	h.broadcast(tenantID, "order.updated", result)
	writeJSON(w, http.StatusOK, toOrderDetailResponse(result))
}

// ReorderLast handles POST /tenants/{tid}/orders/reorder.
func (h *OrderHandler) ReorderLast(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.ReorderLast(r.Context(), service.ReorderLastRequest{
		TenantID:   tenantID,
		CounterID:  req.CounterID,
		ExtraItems: toRawItems(req.ExtraItems),
	})
	if err != nil {
		writeServiceError(w, "reorder last", err)
		return
	}

	h.broadcast(tenantID, "order.created", result)
	writeJSON(w, http.StatusCreated, toOrderDetailResponse(result))
}

// --- Helpers ---

func parseOrderPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return uuid.Nil, uuid.Nil, false
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, orderID, true
}

// writeServiceError maps the service error taxonomy to HTTP status codes.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch service.Kind(err) {
	case service.KindValidation, service.KindUnsupportedBusinessType:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case service.KindNotFound:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case service.KindConflict, service.KindInvalidTransition:
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Error().Err(err).Msg(op)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (h *OrderHandler) broadcast(tenantID uuid.UUID, eventType string, result *service.OrderResult) {
	payload, err := json.Marshal(toOrderResponse(result.Order))
	if err != nil {
		log.Error().Err(err).Msg("marshal order event")
		return
	}
	h.hub.BroadcastToTenant(tenantID, ws.Event{Type: eventType, Payload: payload})
}

func toRawItems(items []rawItemRequest) []service.RawItem {
	raw := make([]service.RawItem, len(items))
	for i, it := range items {
		raw[i] = service.RawItem{
			MenuItemID:           it.MenuItemID,
			ProductID:            it.ProductID,
			ServiceID:            it.ServiceID,
			VariantID:            it.VariantID,
			WarehouseID:          it.WarehouseID,
			AssignedProviderID:   it.AssignedProviderID,
			ServiceName:          it.ServiceName,
			Variant:              it.Variant,
			SKU:                  it.SKU,
			ShippingMethod:       it.ShippingMethod,
			TrackingNumber:       it.TrackingNumber,
			Qty:                  it.Qty,
			Price:                it.Price,
			UnitPrice:            it.UnitPrice,
			Total:                it.Total,
			DurationMinutes:      it.DurationMinutes,
			ExpectedDeliveryDate: it.ExpectedDeliveryDate,
			ScheduledTime:        it.ScheduledTime,
		}
	}
	return raw
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		TenantID:     o.TenantID,
		BusinessType: o.BusinessType,
		OrderNumber:  o.OrderNumber,
		Status:       o.Status,
		Items:        o.Items,
		PaymentMode:  o.PaymentMode,
		IsPaid:       o.IsPaid,
		GrandTotal:   numericToString(o.GrandTotal),
		Metadata:     o.Metadata,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	if o.TokenNumber.Valid {
		resp.TokenNumber = &o.TokenNumber.Int32
	}
	if o.CounterID.Valid {
		s := uuid.UUID(o.CounterID.Bytes).String()
		resp.CounterID = &s
	}
	return resp
}

func toOrderDetailResponse(result *service.OrderResult) orderDetailResponse {
	resp := orderDetailResponse{
		orderResponse: toOrderResponse(result.Order),
		Enriched:      result.Enriched,
	}
	if len(result.MenuItems) > 0 {
		resp.MenuItems = make([]menuItemResponse, 0, len(result.MenuItems))
		for _, m := range result.MenuItems {
			resp.MenuItems = append(resp.MenuItems, toMenuItemResponse(m))
		}
	}
	if result.Counter != nil {
		c := toCounterResponse(*result.Counter)
		resp.Counter = &c
	}
	return resp
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
