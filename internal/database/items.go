package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tokopos/api/internal/enum"
)

// OrderItem is the closed union of item shapes stored in an order's items
// array. Exactly one concrete type exists per business type; consumers
// dispatch with a type switch on the concrete pointer types.
type OrderItem interface {
	ItemID() uuid.UUID
	ItemType() string
	Status() string
	SetStatus(status string)
	Qty() int32
	Total() decimal.Decimal
}

// RestaurantItem is a menu-item line with kitchen progress tracking.
type RestaurantItem struct {
	Type         string          `json:"type"`
	ID           uuid.UUID       `json:"id"`
	MenuItemID   uuid.UUID       `json:"menuItemId"`
	Quantity     int32           `json:"qty"`
	Price        decimal.Decimal `json:"price"`
	Variant      string          `json:"variant,omitempty"`
	LineTotal    decimal.Decimal `json:"total"`
	ItemStatus   string          `json:"status,omitempty"`
	PreparedQty  int32           `json:"preparedQty"`
	ParentItemID *uuid.UUID      `json:"parentItemId,omitempty"`
}

// RetailItem is a stocked-product line.
type RetailItem struct {
	Type                 string          `json:"type"`
	ID                   uuid.UUID       `json:"id"`
	ProductID            uuid.UUID       `json:"productId"`
	SKU                  string          `json:"sku,omitempty"`
	Quantity             int32           `json:"qty"`
	UnitPrice            decimal.Decimal `json:"unitPrice"`
	LineTotal            decimal.Decimal `json:"total"`
	WarehouseID          *uuid.UUID      `json:"warehouseId,omitempty"`
	ExpectedDeliveryDate *time.Time      `json:"expectedDeliveryDate,omitempty"`
	ItemStatus           string          `json:"status,omitempty"`
	ParentItemID         *uuid.UUID      `json:"parentItemId,omitempty"`
}

// ServiceItem is a booked-service line. It has no quantity concept; a
// service line always counts as one unit.
type ServiceItem struct {
	Type               string          `json:"type"`
	ID                 uuid.UUID       `json:"id"`
	ServiceID          uuid.UUID       `json:"serviceId"`
	ServiceName        string          `json:"serviceName"`
	DurationMinutes    int32           `json:"durationMinutes"`
	Price              decimal.Decimal `json:"price"`
	LineTotal          decimal.Decimal `json:"total"`
	AssignedProviderID *uuid.UUID      `json:"assignedProviderId,omitempty"`
	ScheduledTime      *time.Time      `json:"scheduledTime,omitempty"`
	ItemStatus         string          `json:"status,omitempty"`
	ParentItemID       *uuid.UUID      `json:"parentItemId,omitempty"`
}

// EcommerceItem is an online-shop product line.
type EcommerceItem struct {
	Type           string          `json:"type"`
	ID             uuid.UUID       `json:"id"`
	ProductID      uuid.UUID       `json:"productId"`
	VariantID      *uuid.UUID      `json:"variantId,omitempty"`
	Quantity       int32           `json:"qty"`
	Price          decimal.Decimal `json:"price"`
	LineTotal      decimal.Decimal `json:"total"`
	ShippingMethod string          `json:"shippingMethod,omitempty"`
	TrackingNumber string          `json:"trackingNumber,omitempty"`
	ItemStatus     string          `json:"status,omitempty"`
	ParentItemID   *uuid.UUID      `json:"parentItemId,omitempty"`
}

func (i *RestaurantItem) ItemID() uuid.UUID      { return i.ID }
func (i *RestaurantItem) ItemType() string       { return i.Type }
func (i *RestaurantItem) Status() string         { return i.ItemStatus }
func (i *RestaurantItem) SetStatus(s string)     { i.ItemStatus = s }
func (i *RestaurantItem) Qty() int32             { return i.Quantity }
func (i *RestaurantItem) Total() decimal.Decimal { return i.LineTotal }

func (i *RetailItem) ItemID() uuid.UUID      { return i.ID }
func (i *RetailItem) ItemType() string       { return i.Type }
func (i *RetailItem) Status() string         { return i.ItemStatus }
func (i *RetailItem) SetStatus(s string)     { i.ItemStatus = s }
func (i *RetailItem) Qty() int32             { return i.Quantity }
func (i *RetailItem) Total() decimal.Decimal { return i.LineTotal }

func (i *ServiceItem) ItemID() uuid.UUID      { return i.ID }
func (i *ServiceItem) ItemType() string       { return i.Type }
func (i *ServiceItem) Status() string         { return i.ItemStatus }
func (i *ServiceItem) SetStatus(s string)     { i.ItemStatus = s }
func (i *ServiceItem) Qty() int32             { return 1 }
func (i *ServiceItem) Total() decimal.Decimal { return i.LineTotal }

func (i *EcommerceItem) ItemID() uuid.UUID      { return i.ID }
func (i *EcommerceItem) ItemType() string       { return i.Type }
func (i *EcommerceItem) Status() string         { return i.ItemStatus }
func (i *EcommerceItem) SetStatus(s string)     { i.ItemStatus = s }
func (i *EcommerceItem) Qty() int32             { return i.Quantity }
func (i *EcommerceItem) Total() decimal.Decimal { return i.LineTotal }

// ItemList is the JSONB representation of an order's items. Decoding
// dispatches on the "type" discriminator; an unknown discriminator is a hard
// error rather than a lossy generic copy, since it indicates a corrupt order
// record. Items stored without a status (legacy retail/ecommerce rows) are
// read back as pending.
type ItemList []OrderItem

func (l *ItemList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}

	items := make([]OrderItem, 0, len(raws))
	for idx, raw := range raws {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return fmt.Errorf("items[%d]: %w", idx, err)
		}

		var item OrderItem
		switch head.Type {
		case enum.BusinessTypeRestaurant:
			item = &RestaurantItem{}
		case enum.BusinessTypeRetail:
			item = &RetailItem{}
		case enum.BusinessTypeService:
			item = &ServiceItem{}
		case enum.BusinessTypeEcommerce:
			item = &EcommerceItem{}
		default:
			return fmt.Errorf("items[%d]: unknown order item type %q", idx, head.Type)
		}
		if err := json.Unmarshal(raw, item); err != nil {
			return fmt.Errorf("items[%d]: %w", idx, err)
		}
		if item.Status() == "" {
			item.SetStatus(enum.OrderItemStatusPending)
		}
		items = append(items, item)
	}

	*l = items
	return nil
}

// FindItem returns the item with the given id, or nil.
func (l ItemList) FindItem(id uuid.UUID) OrderItem {
	for _, it := range l {
		if it.ItemID() == id {
			return it
		}
	}
	return nil
}

// GrandTotal sums every item's total, including rejected and cancelled lines.
func (l ItemList) GrandTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range l {
		sum = sum.Add(it.Total())
	}
	return sum
}
