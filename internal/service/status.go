package service

import (
	"github.com/tokopos/api/internal/database"
	"github.com/tokopos/api/internal/enum"
)

// disallowedItemTransitions lists the item-status moves that are always
// rejected regardless of the item's shape.
var disallowedItemTransitions = map[[2]string]bool{
	{enum.OrderItemStatusDelivered, enum.OrderItemStatusInProgress}: true,
	{enum.OrderItemStatusCancelled, enum.OrderItemStatusInProgress}: true,
	{enum.OrderItemStatusRejected, enum.OrderItemStatusInProgress}:  true,
	{enum.OrderItemStatusCooked, enum.OrderItemStatusPending}:       true,
}

// disallowedOrderTransitions lists order-level status moves rejected on
// direct order status updates.
var disallowedOrderTransitions = map[[2]string]bool{
	{enum.OrderStatusDelivered, enum.OrderStatusPending}: true,
	{enum.OrderStatusCancelled, enum.OrderStatusPending}: true,
	{enum.OrderStatusCancelled, enum.OrderStatusReady}:   true,
	{enum.OrderStatusDelivered, enum.OrderStatusReady}:   true,
}

// applyItemTransition validates and applies a single item-status move,
// mutating the item in place. preparedQty is only consulted for the
// partial-cooked move.
func applyItemTransition(item database.OrderItem, requested string, preparedQty *int32) error {
	from := item.Status()
	if disallowedItemTransitions[[2]string{from, requested}] {
		return invalidTransitionf("cannot transition item from %s to %s", from, requested)
	}

	switch requested {
	case enum.OrderItemStatusInProgress:
		item.SetStatus(requested)
	case enum.OrderItemStatusPartialCooked:
		if preparedQty == nil || *preparedQty <= 0 || *preparedQty >= item.Qty() {
			return validationf("Partial cooked requires 0 < prepared < qty")
		}
		item.SetStatus(requested)
		setPreparedQty(item, *preparedQty)
	case enum.OrderItemStatusCooked:
		item.SetStatus(requested)
		setPreparedQty(item, item.Qty())
	case enum.OrderItemStatusDelivered:
		item.SetStatus(requested)
		setPreparedQty(item, item.Qty())
	case enum.OrderItemStatusCancelled, enum.OrderItemStatusRejected:
		item.SetStatus(requested)
	default:
		return validationf("unhandled item status transition to %q", requested)
	}
	return nil
}

// setPreparedQty records preparation progress. Only restaurant lines track
// it; the move itself is still applied to every variant.
func setPreparedQty(item database.OrderItem, qty int32) {
	if r, ok := item.(*database.RestaurantItem); ok {
		r.PreparedQty = qty
	}
}

// recomputeOrderStatus derives the order status from the items. The checks
// form a priority cascade: a mix of cooked and in-progress items is
// partial-pending, not ready.
func recomputeOrderStatus(items database.ItemList) string {
	if len(items) == 0 {
		return enum.OrderStatusCancelled
	}

	allVoided := true
	allDelivered := true
	anyActive := false
	anyCooked := false
	anyInProgress := false
	for _, it := range items {
		s := it.Status()
		if s != enum.OrderItemStatusCancelled && s != enum.OrderItemStatusRejected {
			allVoided = false
		}
		if s != enum.OrderItemStatusDelivered {
			allDelivered = false
		}
		switch s {
		case enum.OrderItemStatusPartialCooked:
			anyActive = true
		case enum.OrderItemStatusInProgress:
			anyActive = true
			anyInProgress = true
		case enum.OrderItemStatusCooked:
			anyCooked = true
		}
	}

	switch {
	case allVoided:
		return enum.OrderStatusCancelled
	case allDelivered:
		return enum.OrderStatusDelivered
	case anyActive:
		return enum.OrderStatusPartialPending
	case anyCooked && !anyInProgress:
		return enum.OrderStatusReady
	default:
		return enum.OrderStatusPending
	}
}

// validateOrderTransition checks a direct order-status move against the
// disallow list.
func validateOrderTransition(current, next string) error {
	if !enum.IsValidOrderStatus(next) {
		return validationf("unknown order status %q", next)
	}
	if disallowedOrderTransitions[[2]string{current, next}] {
		return invalidTransitionf("cannot transition order from %s to %s", current, next)
	}
	return nil
}

// forceItemsForOrderStatus applies the item-level side effects of a direct
// order-status move. Moving to ready or delivered completes every line that
// was not voided; moving to cancelled voids every line not already finished.
func forceItemsForOrderStatus(items database.ItemList, next string) {
	switch next {
	case enum.OrderStatusReady:
		for _, it := range items {
			if s := it.Status(); s == enum.OrderItemStatusCancelled || s == enum.OrderItemStatusRejected {
				continue
			}
			it.SetStatus(enum.OrderItemStatusCooked)
			setPreparedQty(it, it.Qty())
		}
	case enum.OrderStatusDelivered:
		for _, it := range items {
			if s := it.Status(); s == enum.OrderItemStatusCancelled || s == enum.OrderItemStatusRejected {
				continue
			}
			it.SetStatus(enum.OrderItemStatusDelivered)
			setPreparedQty(it, it.Qty())
		}
	case enum.OrderStatusCancelled:
		forceCancelItems(items)
	}
}

// forceCancelItems voids every item not already cooked or delivered.
func forceCancelItems(items database.ItemList) {
	for _, it := range items {
		if s := it.Status(); s == enum.OrderItemStatusCooked || s == enum.OrderItemStatusDelivered {
			continue
		}
		it.SetStatus(enum.OrderItemStatusCancelled)
	}
}
