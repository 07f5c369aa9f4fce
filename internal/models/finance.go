package models

type Expense struct {
	Base
	Amount        Money  `json:"amount" db:"amount_cents"`
	Category      string `json:"category" db:"category"`
	Description   string `json:"description" db:"description"`
	Date          Date   `json:"date" db:"date"`
	PaymentMethod string `json:"paymentMethod" db:"payment_method"`
}

func (*Expense) EntityType() EntityType { return EntityExpense }

type Income struct {
	Base
	Amount      Money  `json:"amount" db:"amount_cents"`
	Source      string `json:"source" db:"source"`
	Description string `json:"description" db:"description"`
	Date        Date   `json:"date" db:"date"`
}

func (*Income) EntityType() EntityType { return EntityIncome }

type CategoryKind string

const (
	CategoryExpense CategoryKind = "expense"
	CategoryIncome  CategoryKind = "income"
)

type Category struct {
	Base
	Name  string       `json:"name" db:"name"`
	Kind  CategoryKind `json:"kind" db:"kind"`
	Color string       `json:"color" db:"color"`
}

func (*Category) EntityType() EntityType { return EntityCategory }

type BudgetPeriod string

const (
	PeriodWeekly  BudgetPeriod = "weekly"
	PeriodMonthly BudgetPeriod = "monthly"
	PeriodYearly  BudgetPeriod = "yearly"
)

type Budget struct {
	Base
	Category  string       `json:"category" db:"category"`
	Amount    Money        `json:"amount" db:"amount_cents"`
	Period    BudgetPeriod `json:"period" db:"period"`
	StartDate Date         `json:"startDate" db:"start_date"`
	EndDate   *Date        `json:"endDate,omitempty" db:"end_date"`
}

func (*Budget) EntityType() EntityType { return EntityBudget }

type Contact struct {
	Base
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
	Phone string `json:"phone" db:"phone"`
	Notes string `json:"notes" db:"notes"`
}

func (*Contact) EntityType() EntityType { return EntityContact }
