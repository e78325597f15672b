package database

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Tenant struct {
	ID           uuid.UUID
	Name         string
	BusinessType string
	Active       bool
	Metadata     json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type User struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type MenuCategory struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MenuItem struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	CategoryID pgtype.UUID
	Name       string
	Price      pgtype.Numeric
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type TokenCounter struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	CounterName string
	LastToken   int32
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Order struct {
	ID           uuid.UUID
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
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
