// Package validation is the validation collaborator: a pure function from a
// raw entity to a verdict plus a sanitized copy.
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
)

const (
	maxDescriptionLength = 200
	maxNameLength        = 100
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type Result struct {
	IsValid   bool
	Errors    []string
	Sanitized models.Entity
}

// Err returns the failure as an apperr.ValidationError, or nil when valid.
func (r Result) Err() error {
	if r.IsValid {
		return nil
	}
	return apperr.NewValidationError(r.Errors...)
}

// Validate never mutates raw. Sanitized is only set when the entity is valid.
func Validate(raw models.Entity) Result {
	if raw == nil {
		return Result{Errors: []string{"entity is required"}}
	}
	e, err := clone(raw)
	if err != nil {
		return Result{Errors: []string{err.Error()}}
	}

	var errs []string
	switch v := e.(type) {
	case *models.Expense:
		errs = validateExpense(v)
	case *models.Income:
		errs = validateIncome(v)
	case *models.Category:
		errs = validateCategory(v)
	case *models.Budget:
		errs = validateBudget(v)
	case *models.Contact:
		errs = validateContact(v)
	case *models.Loan:
		errs = validateLoan(v)
	case *models.LoanPayment:
		errs = validateLoanPayment(v)
	default:
		errs = []string{fmt.Sprintf("unsupported entity type %T", raw)}
	}

	if len(errs) > 0 {
		return Result{Errors: errs}
	}
	return Result{IsValid: true, Sanitized: e}
}

func clone(e models.Entity) (models.Entity, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("entity is not serializable: %w", err)
	}
	return models.Decode(e.EntityType(), data)
}

// normalize trims and collapses runs of whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func validateExpense(e *models.Expense) []string {
	var errs []string
	e.Category = normalize(e.Category)
	e.Description = normalize(e.Description)
	e.PaymentMethod = normalize(e.PaymentMethod)

	if e.Amount <= 0 {
		errs = append(errs, "amount must be greater than zero")
	}
	if e.Category == "" {
		errs = append(errs, "category is required")
	}
	if e.Date.IsZero() {
		errs = append(errs, "date is required")
	}
	if len(e.Description) > maxDescriptionLength {
		errs = append(errs, fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
	}
	return errs
}

func validateIncome(e *models.Income) []string {
	var errs []string
	e.Source = normalize(e.Source)
	e.Description = normalize(e.Description)

	if e.Amount <= 0 {
		errs = append(errs, "amount must be greater than zero")
	}
	if e.Source == "" {
		errs = append(errs, "source is required")
	}
	if e.Date.IsZero() {
		errs = append(errs, "date is required")
	}
	if len(e.Description) > maxDescriptionLength {
		errs = append(errs, fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
	}
	return errs
}

func validateCategory(e *models.Category) []string {
	var errs []string
	e.Name = normalize(e.Name)
	e.Color = strings.TrimSpace(e.Color)
	if e.Kind == "" {
		e.Kind = models.CategoryExpense
	}

	if e.Name == "" {
		errs = append(errs, "name is required")
	}
	if len(e.Name) > maxNameLength {
		errs = append(errs, fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}
	if e.Kind != models.CategoryExpense && e.Kind != models.CategoryIncome {
		errs = append(errs, "kind must be 'expense' or 'income'")
	}
	if e.Color != "" && !colorPattern.MatchString(e.Color) {
		errs = append(errs, "color must be a hex value like #a6e3a1")
	}
	return errs
}

func validateBudget(e *models.Budget) []string {
	var errs []string
	e.Category = normalize(e.Category)
	if e.Period == "" {
		e.Period = models.PeriodMonthly
	}

	if e.Category == "" {
		errs = append(errs, "category is required")
	}
	if e.Amount <= 0 {
		errs = append(errs, "amount must be greater than zero")
	}
	switch e.Period {
	case models.PeriodWeekly, models.PeriodMonthly, models.PeriodYearly:
	default:
		errs = append(errs, "period must be 'weekly', 'monthly' or 'yearly'")
	}
	if e.StartDate.IsZero() {
		errs = append(errs, "startDate is required")
	}
	if e.EndDate != nil && !e.EndDate.IsZero() && e.EndDate.Before(e.StartDate) {
		errs = append(errs, "endDate must not be before startDate")
	}
	return errs
}

func validateContact(e *models.Contact) []string {
	var errs []string
	e.Name = normalize(e.Name)
	e.Email = strings.ToLower(strings.TrimSpace(e.Email))
	e.Phone = strings.TrimSpace(e.Phone)
	e.Notes = strings.TrimSpace(e.Notes)

	if e.Name == "" {
		errs = append(errs, "name is required")
	}
	if len(e.Name) > maxNameLength {
		errs = append(errs, fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}
	if e.Email != "" {
		if err := checkmail.ValidateFormat(e.Email); err != nil {
			errs = append(errs, "email is not a valid address")
		}
	}
	return errs
}

func validateLoan(e *models.Loan) []string {
	var errs []string
	e.Description = normalize(e.Description)
	if e.Status == "" {
		e.Status = models.LoanActive
	}

	if e.PrincipalAmount <= 0 {
		errs = append(errs, "principalAmount must be greater than zero")
	}
	if e.OutstandingAmount < 0 {
		errs = append(errs, "outstandingAmount must not be negative")
	}
	if e.OutstandingAmount > e.PrincipalAmount {
		errs = append(errs, "outstandingAmount must not exceed principalAmount")
	}
	if e.Direction != models.LoanGiven && e.Direction != models.LoanTaken {
		errs = append(errs, "direction must be 'given' or 'taken'")
	}
	switch e.Status {
	case models.LoanActive, models.LoanPaid, models.LoanOverdue:
	default:
		errs = append(errs, "status must be 'active', 'paid' or 'overdue'")
	}
	if e.StartDate.IsZero() {
		errs = append(errs, "startDate is required")
	}
	if e.DueDate != nil && !e.DueDate.IsZero() && e.DueDate.Before(e.StartDate) {
		errs = append(errs, "dueDate must not be before startDate")
	}
	if len(e.Description) > maxDescriptionLength {
		errs = append(errs, fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
	}
	return errs
}

func validateLoanPayment(e *models.LoanPayment) []string {
	var errs []string
	e.Note = normalize(e.Note)

	if e.LoanID == "" {
		errs = append(errs, "loanId is required")
	}
	if e.Amount <= 0 {
		errs = append(errs, "amount must be greater than zero")
	}
	if e.Date.IsZero() {
		errs = append(errs, "date is required")
	}
	return errs
}
