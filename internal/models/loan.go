package models

type LoanStatus string

const (
	LoanActive  LoanStatus = "active"
	LoanPaid    LoanStatus = "paid"
	LoanOverdue LoanStatus = "overdue"
)

type LoanDirection string

const (
	LoanGiven LoanDirection = "given"
	LoanTaken LoanDirection = "taken"
)

type Loan struct {
	Base
	ContactID         string        `json:"contactId" db:"contact_id"`
	Direction         LoanDirection `json:"direction" db:"direction"`
	PrincipalAmount   Money         `json:"principalAmount" db:"principal_cents"`
	OutstandingAmount Money         `json:"outstandingAmount" db:"outstanding_cents"`
	Status            LoanStatus    `json:"status" db:"status"`
	Description       string        `json:"description" db:"description"`
	StartDate         Date          `json:"startDate" db:"start_date"`
	DueDate           *Date         `json:"dueDate,omitempty" db:"due_date"`
}

func (*Loan) EntityType() EntityType { return EntityLoan }

// Recalculate derives OutstandingAmount and Status from the loan's
// non-deleted payments. Payments for other loans are ignored.
func (l *Loan) Recalculate(payments []*LoanPayment, today Date) {
	var paid Money
	for _, p := range payments {
		if p.LoanID == l.ID {
			paid += p.Amount
		}
	}
	l.OutstandingAmount = l.PrincipalAmount - paid
	l.RefreshStatus(today)
}

// ApplyPayment adjusts the outstanding amount by a payment delta: positive
// for a new or increased payment, negative for a removed or reduced one.
func (l *Loan) ApplyPayment(delta Money, today Date) {
	l.OutstandingAmount -= delta
	l.RefreshStatus(today)
}

// RefreshStatus is paid at exactly zero outstanding, overdue past the due
// date, active otherwise.
func (l *Loan) RefreshStatus(today Date) {
	switch {
	case l.OutstandingAmount == 0:
		l.Status = LoanPaid
	case l.DueDate != nil && !l.DueDate.IsZero() && l.DueDate.Before(today):
		l.Status = LoanOverdue
	default:
		l.Status = LoanActive
	}
}

type LoanPayment struct {
	Base
	LoanID string `json:"loanId" db:"loan_id"`
	Amount Money  `json:"amount" db:"amount_cents"`
	Date   Date   `json:"date" db:"date"`
	Note   string `json:"note" db:"note"`
}

func (*LoanPayment) EntityType() EntityType { return EntityLoanPayment }
