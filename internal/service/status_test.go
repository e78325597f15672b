package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tokopos/api/internal/database"
	"github.com/tokopos/api/internal/enum"
)

func restaurantItem(status string, qty int32) *database.RestaurantItem {
	price := decimal.NewFromInt(50)
	return &database.RestaurantItem{
		Type:       enum.BusinessTypeRestaurant,
		ID:         uuid.New(),
		MenuItemID: uuid.New(),
		Quantity:   qty,
		Price:      price,
		LineTotal:  price.Mul(decimal.NewFromInt32(qty)),
		ItemStatus: status,
	}
}

func int32ptr(v int32) *int32 { return &v }

// =====================
// Item transitions
// =====================

func TestApplyItemTransition_DisallowedPairs(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{enum.OrderItemStatusDelivered, enum.OrderItemStatusInProgress},
		{enum.OrderItemStatusCancelled, enum.OrderItemStatusInProgress},
		{enum.OrderItemStatusRejected, enum.OrderItemStatusInProgress},
		{enum.OrderItemStatusCooked, enum.OrderItemStatusPending},
	}

	for _, tc := range cases {
		item := restaurantItem(tc.from, 2)
		err := applyItemTransition(item, tc.to, nil)
		if Kind(err) != KindInvalidTransition {
			t.Fatalf("%s -> %s: expected invalid transition, got %v", tc.from, tc.to, err)
		}
		if item.Status() != tc.from {
			t.Fatalf("%s -> %s: item mutated on failed transition", tc.from, tc.to)
		}
	}
}

func TestApplyItemTransition_InProgress(t *testing.T) {
	item := restaurantItem(enum.OrderItemStatusPending, 2)
	if err := applyItemTransition(item, enum.OrderItemStatusInProgress, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Status() != enum.OrderItemStatusInProgress {
		t.Fatalf("expected in-progress, got %s", item.Status())
	}
}

func TestApplyItemTransition_PartialCookedBounds(t *testing.T) {
	for _, prepared := range []*int32{nil, int32ptr(0), int32ptr(3), int32ptr(5)} {
		item := restaurantItem(enum.OrderItemStatusInProgress, 3)
		err := applyItemTransition(item, enum.OrderItemStatusPartialCooked, prepared)
		if Kind(err) != KindValidation {
			t.Fatalf("prepared=%v: expected validation error, got %v", prepared, err)
		}
		if item.Status() != enum.OrderItemStatusInProgress {
			t.Fatal("item mutated on failed partial-cooked transition")
		}
	}
}

func TestApplyItemTransition_PartialCooked(t *testing.T) {
	item := restaurantItem(enum.OrderItemStatusInProgress, 3)
	if err := applyItemTransition(item, enum.OrderItemStatusPartialCooked, int32ptr(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Status() != enum.OrderItemStatusPartialCooked {
		t.Fatalf("expected partial-cooked, got %s", item.Status())
	}
	if item.PreparedQty != 2 {
		t.Fatalf("expected preparedQty=2, got %d", item.PreparedQty)
	}
}

func TestApplyItemTransition_CookedSetsFullPreparedQty(t *testing.T) {
	item := restaurantItem(enum.OrderItemStatusInProgress, 4)
	if err := applyItemTransition(item, enum.OrderItemStatusCooked, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.PreparedQty != 4 {
		t.Fatalf("expected preparedQty=4, got %d", item.PreparedQty)
	}
}

func TestApplyItemTransition_DeliveredSetsFullPreparedQty(t *testing.T) {
	item := restaurantItem(enum.OrderItemStatusCooked, 2)
	if err := applyItemTransition(item, enum.OrderItemStatusDelivered, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Status() != enum.OrderItemStatusDelivered || item.PreparedQty != 2 {
		t.Fatalf("expected delivered with preparedQty=2, got %s/%d", item.Status(), item.PreparedQty)
	}
}

func TestApplyItemTransition_Unhandled(t *testing.T) {
	item := restaurantItem(enum.OrderItemStatusPending, 1)
	err := applyItemTransition(item, "shipped", nil)
	if Kind(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyItemTransition_NonRestaurantVariant(t *testing.T) {
	item := &database.RetailItem{
		Type:       enum.BusinessTypeRetail,
		ID:         uuid.New(),
		ProductID:  uuid.New(),
		Quantity:   2,
		ItemStatus: enum.OrderItemStatusPending,
	}
	if err := applyItemTransition(item, enum.OrderItemStatusCooked, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Status() != enum.OrderItemStatusCooked {
		t.Fatalf("expected cooked, got %s", item.Status())
	}
}

// =====================
// Order status aggregation
// =====================

func itemsWithStatuses(statuses ...string) database.ItemList {
	items := make(database.ItemList, len(statuses))
	for i, s := range statuses {
		items[i] = restaurantItem(s, 1)
	}
	return items
}

func TestRecomputeOrderStatus(t *testing.T) {
	cases := []struct {
		name     string
		statuses []string
		want     string
	}{
		{"empty", nil, enum.OrderStatusCancelled},
		{"all voided", []string{enum.OrderItemStatusCancelled, enum.OrderItemStatusRejected}, enum.OrderStatusCancelled},
		{"all delivered", []string{enum.OrderItemStatusDelivered, enum.OrderItemStatusDelivered}, enum.OrderStatusDelivered},
		{"cooked plus in-progress", []string{enum.OrderItemStatusCooked, enum.OrderItemStatusInProgress}, enum.OrderStatusPartialPending},
		{"partial-cooked", []string{enum.OrderItemStatusPartialCooked, enum.OrderItemStatusPending}, enum.OrderStatusPartialPending},
		{"all cooked", []string{enum.OrderItemStatusCooked, enum.OrderItemStatusCooked}, enum.OrderStatusReady},
		{"cooked plus rejected", []string{enum.OrderItemStatusCooked, enum.OrderItemStatusRejected}, enum.OrderStatusReady},
		{"all pending", []string{enum.OrderItemStatusPending, enum.OrderItemStatusPending}, enum.OrderStatusPending},
		{"delivered plus pending", []string{enum.OrderItemStatusDelivered, enum.OrderItemStatusPending}, enum.OrderStatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := recomputeOrderStatus(itemsWithStatuses(tc.statuses...))
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
			// Pure function: recomputing yields the same result.
			if again := recomputeOrderStatus(itemsWithStatuses(tc.statuses...)); again != got {
				t.Fatalf("recompute not deterministic: %s then %s", got, again)
			}
		})
	}
}

// =====================
// Order transitions
// =====================

func TestValidateOrderTransition_Disallowed(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{enum.OrderStatusDelivered, enum.OrderStatusPending},
		{enum.OrderStatusCancelled, enum.OrderStatusPending},
		{enum.OrderStatusCancelled, enum.OrderStatusReady},
		{enum.OrderStatusDelivered, enum.OrderStatusReady},
	}
	for _, tc := range cases {
		if err := validateOrderTransition(tc.from, tc.to); Kind(err) != KindInvalidTransition {
			t.Fatalf("%s -> %s: expected invalid transition", tc.from, tc.to)
		}
	}
}

func TestValidateOrderTransition_UnknownStatus(t *testing.T) {
	if err := validateOrderTransition(enum.OrderStatusPending, "done"); Kind(err) != KindValidation {
		t.Fatal("expected validation error for unknown status")
	}
}

func TestForceItemsForOrderStatus_Ready(t *testing.T) {
	items := database.ItemList{
		restaurantItem(enum.OrderItemStatusPending, 3),
		restaurantItem(enum.OrderItemStatusInProgress, 2),
		restaurantItem(enum.OrderItemStatusRejected, 1),
	}
	forceItemsForOrderStatus(items, enum.OrderStatusReady)

	r0 := items[0].(*database.RestaurantItem)
	r1 := items[1].(*database.RestaurantItem)
	if r0.ItemStatus != enum.OrderItemStatusCooked || r0.PreparedQty != 3 {
		t.Fatalf("item 0 not completed: %s/%d", r0.ItemStatus, r0.PreparedQty)
	}
	if r1.ItemStatus != enum.OrderItemStatusCooked || r1.PreparedQty != 2 {
		t.Fatalf("item 1 not completed: %s/%d", r1.ItemStatus, r1.PreparedQty)
	}
	if items[2].Status() != enum.OrderItemStatusRejected {
		t.Fatal("rejected item should be left alone")
	}
}

func TestForceItemsForOrderStatus_Delivered(t *testing.T) {
	items := database.ItemList{
		restaurantItem(enum.OrderItemStatusCooked, 2),
		restaurantItem(enum.OrderItemStatusCancelled, 1),
	}
	forceItemsForOrderStatus(items, enum.OrderStatusDelivered)

	if items[0].Status() != enum.OrderItemStatusDelivered {
		t.Fatalf("expected delivered, got %s", items[0].Status())
	}
	if items[1].Status() != enum.OrderItemStatusCancelled {
		t.Fatal("cancelled item should be left alone")
	}
}

func TestForceCancelItems(t *testing.T) {
	items := database.ItemList{
		restaurantItem(enum.OrderItemStatusPending, 1),
		restaurantItem(enum.OrderItemStatusCooked, 1),
		restaurantItem(enum.OrderItemStatusDelivered, 1),
	}
	forceCancelItems(items)

	if items[0].Status() != enum.OrderItemStatusCancelled {
		t.Fatalf("pending item not cancelled: %s", items[0].Status())
	}
	if items[1].Status() != enum.OrderItemStatusCooked {
		t.Fatal("cooked item should survive cancel")
	}
	if items[2].Status() != enum.OrderItemStatusDelivered {
		t.Fatal("delivered item should survive cancel")
	}
}
