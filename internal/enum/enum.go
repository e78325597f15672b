package enum

// ── Business types (tenant + order item discriminator) ──

const (
	BusinessTypeRestaurant = "restaurant"
	BusinessTypeRetail     = "retail"
	BusinessTypeService    = "service"
	BusinessTypeEcommerce  = "ecommerce"
)

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending        = "pending"
	OrderStatusPartialPending = "partial-pending"
	OrderStatusReady          = "ready"
	OrderStatusDelivered      = "delivered"
	OrderStatusCancelled      = "cancelled"
)

const (
	OrderItemStatusPending       = "pending"
	OrderItemStatusInProgress    = "in-progress"
	OrderItemStatusPartialCooked = "partial-cooked"
	OrderItemStatusCooked        = "cooked"
	OrderItemStatusRejected      = "rejected"
	OrderItemStatusCancelled     = "cancelled"
	OrderItemStatusDelivered     = "delivered"
)

// ── Payments ──

const (
	PaymentModeCOD    = "cod"
	PaymentModeOnline = "online"
	PaymentModeWallet = "wallet"
)

// ── Roles (CHECK constrained in DB) ──

const (
	UserRoleSuperAdmin = "super-admin"
	UserRoleAdmin      = "admin"
	UserRoleStaff      = "staff"
)

// IsValidBusinessType reports whether s is one of the four known business types.
func IsValidBusinessType(s string) bool {
	switch s {
	case BusinessTypeRestaurant, BusinessTypeRetail,
		BusinessTypeService, BusinessTypeEcommerce:
		return true
	}
	return false
}

// IsValidOrderItemStatus reports whether s is a known item status.
func IsValidOrderItemStatus(s string) bool {
	switch s {
	case OrderItemStatusPending, OrderItemStatusInProgress,
		OrderItemStatusPartialCooked, OrderItemStatusCooked,
		OrderItemStatusRejected, OrderItemStatusCancelled,
		OrderItemStatusDelivered:
		return true
	}
	return false
}

// IsValidOrderStatus reports whether s is a known order status.
func IsValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusPartialPending, OrderStatusReady,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsValidPaymentMode reports whether s is a known payment mode.
func IsValidPaymentMode(s string) bool {
	switch s {
	case PaymentModeCOD, PaymentModeOnline, PaymentModeWallet:
		return true
	}
	return false
}

// IsValidRole reports whether s is a known user role.
func IsValidRole(s string) bool {
	switch s {
	case UserRoleSuperAdmin, UserRoleAdmin, UserRoleStaff:
		return true
	}
	return false
}
