package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type EntityType string

const (
	EntityExpense     EntityType = "expense"
	EntityIncome      EntityType = "income"
	EntityCategory    EntityType = "category"
	EntityBudget      EntityType = "budget"
	EntityContact     EntityType = "contact"
	EntityLoan        EntityType = "loan"
	EntityLoanPayment EntityType = "loan_payment"
)

// EntityTypes lists every synchronized entity type. Loans come before their
// payments so a full pull never inserts a payment whose loan is missing.
var EntityTypes = []EntityType{
	EntityCategory,
	EntityContact,
	EntityExpense,
	EntityIncome,
	EntityBudget,
	EntityLoan,
	EntityLoanPayment,
}

var collections = map[EntityType]string{
	EntityExpense:     "expenses",
	EntityIncome:      "incomes",
	EntityCategory:    "categories",
	EntityBudget:      "budgets",
	EntityContact:     "contacts",
	EntityLoan:        "loans",
	EntityLoanPayment: "loan-payments",
}

// Collection is the REST collection name, e.g. "loan-payments".
func (t EntityType) Collection() string {
	return collections[t]
}

func (t EntityType) Valid() bool {
	_, ok := collections[t]
	return ok
}

func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown entity type %q", s)
	}
	return t, nil
}

func EntityTypeForCollection(collection string) (EntityType, bool) {
	for t, c := range collections {
		if c == collection {
			return t, true
		}
	}
	return "", false
}

// Entity is implemented by pointers to every domain record type.
type Entity interface {
	EntityType() EntityType
	GetID() string
	SetID(id string)
	GetUserID() string
	SetUserID(userID string)
	GetCreatedAt() time.Time
	SetCreatedAt(t time.Time)
	GetUpdatedAt() time.Time
	Stamp(now time.Time)
}

// Base holds the fields shared by all entities.
type Base struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

func (b *Base) GetID() string            { return b.ID }
func (b *Base) SetID(id string)          { b.ID = id }
func (b *Base) GetUserID() string        { return b.UserID }
func (b *Base) SetUserID(userID string)  { b.UserID = userID }
func (b *Base) GetCreatedAt() time.Time  { return b.CreatedAt }
func (b *Base) SetCreatedAt(t time.Time) { b.CreatedAt = t }
func (b *Base) GetUpdatedAt() time.Time  { return b.UpdatedAt }

// Stamp sets UpdatedAt to now, and CreatedAt too if it was never set.
func (b *Base) Stamp(now time.Time) {
	now = now.UTC().Truncate(time.Millisecond)
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// New returns an empty entity of type t.
func New(t EntityType) (Entity, error) {
	switch t {
	case EntityExpense:
		return &Expense{}, nil
	case EntityIncome:
		return &Income{}, nil
	case EntityCategory:
		return &Category{}, nil
	case EntityBudget:
		return &Budget{}, nil
	case EntityContact:
		return &Contact{}, nil
	case EntityLoan:
		return &Loan{}, nil
	case EntityLoanPayment:
		return &LoanPayment{}, nil
	}
	return nil, fmt.Errorf("unknown entity type %q", t)
}

// Decode unmarshals a JSON payload into a new entity of type t.
func Decode(t EntityType, payload []byte) (Entity, error) {
	e, err := New(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, e); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", t, err)
	}
	return e, nil
}
