package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tokopos/api/internal/database"
	"github.com/tokopos/api/internal/enum"
)

// RawItem is the untyped item input accepted on order creation. Which fields
// are meaningful depends on the order's business type; buildItems normalizes
// the relevant subset into the matching variant.
type RawItem struct {
	MenuItemID           string
	ProductID            string
	ServiceID            string
	VariantID            string
	WarehouseID          string
	AssignedProviderID   string
	ServiceName          string
	Variant              string
	SKU                  string
	ShippingMethod       string
	TrackingNumber       string
	Qty                  *int32
	Price                *decimal.Decimal
	UnitPrice            *decimal.Decimal
	Total                *decimal.Decimal
	DurationMinutes      *int32
	ExpectedDeliveryDate *time.Time
	ScheduledTime        *time.Time
}

func rawQty(p *int32) (int32, error) {
	if p == nil {
		return 1, nil
	}
	if *p <= 0 {
		return 0, validationf("item qty must be > 0")
	}
	return *p, nil
}

func rawMoney(p *decimal.Decimal) (decimal.Decimal, error) {
	if p == nil {
		return decimal.Zero, nil
	}
	if p.IsNegative() {
		return decimal.Zero, validationf("item price cannot be negative")
	}
	return *p, nil
}

func requireID(field, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, validationf("%s is required", field)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, validationf("invalid %s", field)
	}
	return id, nil
}

func optionalID(field, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, validationf("invalid %s", field)
	}
	return &id, nil
}

// buildItems converts raw input into typed, normalized item records for the
// given business type. Pure: no I/O, fresh ids, computed totals, initial
// pending status. Required identifier fields are enforced here, centrally.
func buildItems(businessType string, raw []RawItem) (database.ItemList, error) {
	switch businessType {
	case enum.BusinessTypeRestaurant:
		return buildRestaurantItems(raw)
	case enum.BusinessTypeRetail:
		return buildRetailItems(raw)
	case enum.BusinessTypeService:
		return buildServiceItems(raw)
	case enum.BusinessTypeEcommerce:
		return buildEcommerceItems(raw)
	default:
		return nil, unsupportedBusinessTypef("unsupported businessType: %s", businessType)
	}
}

func buildRestaurantItems(raw []RawItem) (database.ItemList, error) {
	items := make(database.ItemList, 0, len(raw))
	for i, r := range raw {
		menuItemID, err := requireID("menuItemId", r.MenuItemID)
		if err != nil {
			return nil, itemErr(i, err)
		}
		qty, err := rawQty(r.Qty)
		if err != nil {
			return nil, itemErr(i, err)
		}
		price, err := rawMoney(r.Price)
		if err != nil {
			return nil, itemErr(i, err)
		}
		total := price.Mul(decimal.NewFromInt32(qty))
		if r.Total != nil {
			total = *r.Total
		}
		items = append(items, &database.RestaurantItem{
			Type:        enum.BusinessTypeRestaurant,
			ID:          uuid.New(),
			MenuItemID:  menuItemID,
			Quantity:    qty,
			Price:       price,
			Variant:     r.Variant,
			LineTotal:   total,
			ItemStatus:  enum.OrderItemStatusPending,
			PreparedQty: 0,
		})
	}
	return items, nil
}

func buildRetailItems(raw []RawItem) (database.ItemList, error) {
	items := make(database.ItemList, 0, len(raw))
	for i, r := range raw {
		productID, err := requireID("productId", r.ProductID)
		if err != nil {
			return nil, itemErr(i, err)
		}
		qty, err := rawQty(r.Qty)
		if err != nil {
			return nil, itemErr(i, err)
		}
		// Retail prices arrive as unitPrice, but price is accepted as a
		// fallback for older clients.
		unitPrice, err := rawMoney(r.UnitPrice)
		if err != nil {
			return nil, itemErr(i, err)
		}
		if r.UnitPrice == nil && r.Price != nil {
			if unitPrice, err = rawMoney(r.Price); err != nil {
				return nil, itemErr(i, err)
			}
		}
		total := unitPrice.Mul(decimal.NewFromInt32(qty))
		if r.Total != nil {
			total = *r.Total
		}
		warehouseID, err := optionalID("warehouseId", r.WarehouseID)
		if err != nil {
			return nil, itemErr(i, err)
		}
		items = append(items, &database.RetailItem{
			Type:                 enum.BusinessTypeRetail,
			ID:                   uuid.New(),
			ProductID:            productID,
			SKU:                  r.SKU,
			Quantity:             qty,
			UnitPrice:            unitPrice,
			LineTotal:            total,
			WarehouseID:          warehouseID,
			ExpectedDeliveryDate: r.ExpectedDeliveryDate,
			ItemStatus:           enum.OrderItemStatusPending,
		})
	}
	return items, nil
}

func buildServiceItems(raw []RawItem) (database.ItemList, error) {
	items := make(database.ItemList, 0, len(raw))
	for i, r := range raw {
		serviceID, err := requireID("serviceId", r.ServiceID)
		if err != nil {
			return nil, itemErr(i, err)
		}
		price, err := rawMoney(r.Price)
		if err != nil {
			return nil, itemErr(i, err)
		}
		// A service line has no quantity; total defaults to the price.
		total := price
		if r.Total != nil {
			total = *r.Total
		}
		providerID, err := optionalID("assignedProviderId", r.AssignedProviderID)
		if err != nil {
			return nil, itemErr(i, err)
		}
		var duration int32
		if r.DurationMinutes != nil {
			if *r.DurationMinutes < 0 {
				return nil, itemErr(i, validationf("durationMinutes cannot be negative"))
			}
			duration = *r.DurationMinutes
		}
		items = append(items, &database.ServiceItem{
			Type:               enum.BusinessTypeService,
			ID:                 uuid.New(),
			ServiceID:          serviceID,
			ServiceName:        r.ServiceName,
			DurationMinutes:    duration,
			Price:              price,
			LineTotal:          total,
			AssignedProviderID: providerID,
			ScheduledTime:      r.ScheduledTime,
			ItemStatus:         enum.OrderItemStatusPending,
		})
	}
	return items, nil
}

func buildEcommerceItems(raw []RawItem) (database.ItemList, error) {
	items := make(database.ItemList, 0, len(raw))
	for i, r := range raw {
		productID, err := requireID("productId", r.ProductID)
		if err != nil {
			return nil, itemErr(i, err)
		}
		qty, err := rawQty(r.Qty)
		if err != nil {
			return nil, itemErr(i, err)
		}
		price, err := rawMoney(r.Price)
		if err != nil {
			return nil, itemErr(i, err)
		}
		total := price.Mul(decimal.NewFromInt32(qty))
		if r.Total != nil {
			total = *r.Total
		}
		variantID, err := optionalID("variantId", r.VariantID)
		if err != nil {
			return nil, itemErr(i, err)
		}
		items = append(items, &database.EcommerceItem{
			Type:           enum.BusinessTypeEcommerce,
			ID:             uuid.New(),
			ProductID:      productID,
			VariantID:      variantID,
			Quantity:       qty,
			Price:          price,
			LineTotal:      total,
			ShippingMethod: r.ShippingMethod,
			TrackingNumber: r.TrackingNumber,
			ItemStatus:     enum.OrderItemStatusPending,
		})
	}
	return items, nil
}

// itemErr prefixes a build error with the offending item's position.
func itemErr(idx int, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Message: fmt.Sprintf("items[%d]: %s", idx, e.Message), Err: e.Err}
	}
	return err
}

// cloneForRemake builds the replacement for a rejected item: same variant
// type, fresh id, pending status, parent link back to the original. The
// closed union makes the match exhaustive; anything else means the stored
// order is corrupt.
func cloneForRemake(original database.OrderItem, qty int32) (database.OrderItem, error) {
	parentID := original.ItemID()
	switch it := original.(type) {
	case *database.RestaurantItem:
		return &database.RestaurantItem{
			Type:         it.Type,
			ID:           uuid.New(),
			MenuItemID:   it.MenuItemID,
			Quantity:     qty,
			Price:        it.Price,
			Variant:      it.Variant,
			LineTotal:    it.Price.Mul(decimal.NewFromInt32(qty)),
			ItemStatus:   enum.OrderItemStatusPending,
			PreparedQty:  0,
			ParentItemID: &parentID,
		}, nil
	case *database.RetailItem:
		return &database.RetailItem{
			Type:         it.Type,
			ID:           uuid.New(),
			ProductID:    it.ProductID,
			SKU:          it.SKU,
			Quantity:     qty,
			UnitPrice:    it.UnitPrice,
			LineTotal:    it.UnitPrice.Mul(decimal.NewFromInt32(qty)),
			WarehouseID:  it.WarehouseID,
			ItemStatus:   enum.OrderItemStatusPending,
			ParentItemID: &parentID,
		}, nil
	case *database.ServiceItem:
		return &database.ServiceItem{
			Type:               it.Type,
			ID:                 uuid.New(),
			ServiceID:          it.ServiceID,
			ServiceName:        it.ServiceName,
			DurationMinutes:    it.DurationMinutes,
			Price:              it.Price,
			LineTotal:          it.Price.Mul(decimal.NewFromInt32(qty)),
			AssignedProviderID: it.AssignedProviderID,
			ItemStatus:         enum.OrderItemStatusPending,
			ParentItemID:       &parentID,
		}, nil
	case *database.EcommerceItem:
		return &database.EcommerceItem{
			Type:           it.Type,
			ID:             uuid.New(),
			ProductID:      it.ProductID,
			VariantID:      it.VariantID,
			Quantity:       qty,
			Price:          it.Price,
			LineTotal:      it.Price.Mul(decimal.NewFromInt32(qty)),
			ShippingMethod: it.ShippingMethod,
			ItemStatus:     enum.OrderItemStatusPending,
			ParentItemID:   &parentID,
		}, nil
	default:
		return nil, unsupportedBusinessTypef("cannot remake item of unknown type")
	}
}

// cloneForReorder copies an item into a fresh pending line for a new order,
// stripping prior status, progress and parent links.
func cloneForReorder(original database.OrderItem) (database.OrderItem, error) {
	switch it := original.(type) {
	case *database.RestaurantItem:
		cp := *it
		cp.ID = uuid.New()
		cp.ItemStatus = enum.OrderItemStatusPending
		cp.PreparedQty = 0
		cp.ParentItemID = nil
		return &cp, nil
	case *database.RetailItem:
		cp := *it
		cp.ID = uuid.New()
		cp.ItemStatus = enum.OrderItemStatusPending
		cp.ParentItemID = nil
		return &cp, nil
	case *database.ServiceItem:
		cp := *it
		cp.ID = uuid.New()
		cp.ItemStatus = enum.OrderItemStatusPending
		cp.ParentItemID = nil
		return &cp, nil
	case *database.EcommerceItem:
		cp := *it
		cp.ID = uuid.New()
		cp.ItemStatus = enum.OrderItemStatusPending
		cp.ParentItemID = nil
		return &cp, nil
	default:
		return nil, unsupportedBusinessTypef("cannot reorder item of unknown type")
	}
}
