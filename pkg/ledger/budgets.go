package ledger

import (
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/dvoloshyn/finet/pkg/dates"
)

// Budget represents a spending budget for a category over a period.
type Budget struct {
	ID         int64
	CategoryID int64
	Period     string
	Amount     float64
	StartDate  string
	EndDate    sql.NullString
}

// BudgetProgress reports spend against a budget. Spent is the magnitude of the
// net expense in the window; Ratio is Spent/Amount.
type BudgetProgress struct {
	Budget Budget
	Spent  float64
	Ratio  float64
}

// AddBudget creates a budget and returns its id.
func (s *Store) AddBudget(categoryID int64, period string, amount float64, startDate, endDate string) (int64, error) {
	if period != "monthly" && period != "yearly" {
		return 0, Validationf("period", "unsupported budget period: %s", period)
	}
	if _, err := dates.Parse(startDate); err != nil {
		return 0, Validationf("start_date", "%v", err)
	}
	var end sql.NullString
	if endDate != "" {
		if _, err := dates.Parse(endDate); err != nil {
			return 0, Validationf("end_date", "%v", err)
		}
		end = sql.NullString{String: endDate, Valid: true}
	}

	result, err := s.conn.Exec(
		`INSERT INTO budgets (category_id, period, amount, start_date, end_date)
		 VALUES (?, ?, ?, ?, ?)`,
		categoryID, period, amount, startDate, end,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add budget: %w", err)
	}
	return result.LastInsertId()
}

// Budgets retrieves all budgets.
func (s *Store) Budgets() ([]Budget, error) {
	rows, err := s.conn.Query(
		`SELECT id, category_id, period, amount, start_date, end_date FROM budgets`)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.CategoryID, &b.Period, &b.Amount, &b.StartDate, &b.EndDate); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// BudgetUpdate carries the fields to change on a budget; nil leaves a field
// untouched.
type BudgetUpdate struct {
	CategoryID *int64
	Period     *string
	Amount     *float64
	StartDate  *string
	EndDate    *string
}

// UpdateBudget applies a partial update to a budget.
func (s *Store) UpdateBudget(id int64, upd BudgetUpdate) error {
	var setters []string
	var args []interface{}

	if upd.CategoryID != nil {
		setters = append(setters, "category_id = ?")
		args = append(args, *upd.CategoryID)
	}
	if upd.Period != nil {
		if *upd.Period != "monthly" && *upd.Period != "yearly" {
			return Validationf("period", "unsupported budget period: %s", *upd.Period)
		}
		setters = append(setters, "period = ?")
		args = append(args, *upd.Period)
	}
	if upd.Amount != nil {
		setters = append(setters, "amount = ?")
		args = append(args, *upd.Amount)
	}
	if upd.StartDate != nil {
		setters = append(setters, "start_date = ?")
		args = append(args, *upd.StartDate)
	}
	if upd.EndDate != nil {
		setters = append(setters, "end_date = ?")
		args = append(args, *upd.EndDate)
	}
	if len(setters) == 0 {
		return nil
	}
	args = append(args, id)

	_, err := s.conn.Exec(
		fmt.Sprintf(`UPDATE budgets SET %s WHERE id = ?`, strings.Join(setters, ", ")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update budget: %w", err)
	}
	return nil
}

// DeleteBudget removes a budget.
func (s *Store) DeleteBudget(id int64) error {
	if _, err := s.conn.Exec(`DELETE FROM budgets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	return nil
}

// Progress computes spend against a budget using the signed category total
// over the budget window. An open-ended budget runs through today.
func (s *Store) Progress(b Budget) (BudgetProgress, error) {
	end := dates.String(dates.Today())
	if b.EndDate.Valid {
		end = b.EndDate.String
	}

	net, err := s.CategorySpend(b.CategoryID, b.StartDate, end)
	if err != nil {
		return BudgetProgress{}, err
	}

	progress := BudgetProgress{Budget: b, Spent: math.Abs(net)}
	if b.Amount != 0 {
		progress.Ratio = progress.Spent / b.Amount
	}
	return progress, nil
}
