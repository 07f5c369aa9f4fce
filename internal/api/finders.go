package api

import (
	"net/http"

	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/prudhvinik1/ledgersync/internal/repositories"
)

// find serves GET /api/{collection}. Query parameters select an
// entity-specific finder; without them every record of the user is listed.
//
//	expenses       from+to, category
//	incomes        from+to
//	categories     q
//	budgets        category
//	contacts       q
//	loans          status, contactId
//	loan-payments  loanId
func find(r *http.Request, t models.EntityType, set *repositories.Set, userID string) ([]models.Entity, error) {
	ctx := r.Context()
	q := r.URL.Query()

	switch t {
	case models.EntityExpense:
		if q.Has("from") || q.Has("to") {
			from, to, err := dateRange(q.Get("from"), q.Get("to"))
			if err != nil {
				return nil, err
			}
			return entities(set.Expenses.FindByDateRange(ctx, userID, from, to))
		}
		if c := q.Get("category"); c != "" {
			return entities(set.Expenses.FindByCategory(ctx, userID, c))
		}
	case models.EntityIncome:
		if q.Has("from") || q.Has("to") {
			from, to, err := dateRange(q.Get("from"), q.Get("to"))
			if err != nil {
				return nil, err
			}
			return entities(set.Incomes.FindByDateRange(ctx, userID, from, to))
		}
	case models.EntityCategory:
		if s := q.Get("q"); s != "" {
			return entities(set.Categories.SearchByName(ctx, userID, s))
		}
	case models.EntityBudget:
		if c := q.Get("category"); c != "" {
			return entities(set.Budgets.FindByCategory(ctx, userID, c))
		}
	case models.EntityContact:
		if s := q.Get("q"); s != "" {
			return entities(set.Contacts.SearchByName(ctx, userID, s))
		}
	case models.EntityLoan:
		if s := q.Get("status"); s != "" {
			return entities(set.Loans.FindByStatus(ctx, userID, models.LoanStatus(s)))
		}
		if c := q.Get("contactId"); c != "" {
			return entities(set.Loans.FindByContact(ctx, userID, c))
		}
	case models.EntityLoanPayment:
		if l := q.Get("loanId"); l != "" {
			return entities(set.LoanPayments.FindByLoanID(ctx, userID, l))
		}
	}

	store, err := set.Store(t)
	if err != nil {
		return nil, err
	}
	return store.FindByUserID(ctx, userID)
}

func entities[T models.Entity](found []T, err error) ([]models.Entity, error) {
	if err != nil {
		return nil, err
	}
	return repositories.Entities(found), nil
}

func dateRange(from, to string) (models.Date, models.Date, error) {
	if from == "" || to == "" {
		return models.Date{}, models.Date{}, apperr.NewValidationError("from and to are both required")
	}
	f, err := models.ParseDate(from)
	if err != nil {
		return models.Date{}, models.Date{}, apperr.NewValidationError("from is not a valid date")
	}
	t, err := models.ParseDate(to)
	if err != nil {
		return models.Date{}, models.Date{}, apperr.NewValidationError("to is not a valid date")
	}
	if t.Before(f) {
		return models.Date{}, models.Date{}, apperr.NewValidationError("to must not be before from")
	}
	return f, t, nil
}
