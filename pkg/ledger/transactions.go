package ledger

import (
	"database/sql"
	"fmt"

	"github.com/dvoloshyn/finet/pkg/dates"
)

// Transaction represents a stored ledger posting. Amount is signed; the
// converted amount was cached at write time with the rates active then.
type Transaction struct {
	ID              int64
	Date            string
	Amount          float64
	AmountConverted float64
	CategoryID      sql.NullInt64
	AccountID       sql.NullInt64
	Currency        string
	Notes           string
	RecurringID     sql.NullInt64
	OccurrenceDate  sql.NullString
}

// NewTransaction is the input for a direct user-entered posting. Amount is the
// raw non-negative value; the category's sign convention is applied on write.
type NewTransaction struct {
	Date       string
	Amount     float64
	CategoryID int64
	AccountID  int64
	Currency   string
	Notes      string
}

// OccurrencePosting is the input for a recurring-definition posting. Amount is
// already signed. The (RecurringID, OccurrenceDate) pair is unique per posting,
// which makes generation idempotent.
type OccurrencePosting struct {
	Date           string
	Amount         float64
	CategoryID     int64
	AccountID      int64
	Currency       string
	Notes          string
	RecurringID    int64
	OccurrenceDate string
}

// AddTransaction validates, signs, converts and stores a posting, adjusting
// the cached balance in the same transaction.
func (s *Store) AddTransaction(nt NewTransaction) (int64, error) {
	if _, err := dates.Parse(nt.Date); err != nil {
		return 0, Validationf("date", "%v", err)
	}
	if nt.Amount < 0 {
		return 0, Validationf("amount", "raw amount must be non-negative, got %v", nt.Amount)
	}
	if nt.Currency == "" {
		return 0, Validationf("currency", "must not be empty")
	}

	signed, err := s.SignFor(nt.CategoryID, nt.Amount)
	if err != nil {
		return 0, err
	}
	converted := s.converter.ToBase(signed, nt.Currency)

	var id int64
	err = s.conn.Transaction(func(tx *sql.Tx) error {
		result, err := tx.Exec(
			`INSERT INTO transactions
			   (date, amount, amount_converted, category_id, account_id, currency, notes)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			nt.Date, signed, converted, nt.CategoryID, nt.AccountID, nt.Currency, nt.Notes,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return err
		}
		return adjustBalanceTx(tx, nt.AccountID, nt.Currency, signed)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// PostOccurrence stores a recurring posting and adjusts the balance as one
// atomic unit. A (recurring_id, occurrence_date) collision returns
// ErrDuplicatePosting with no balance effect.
func (s *Store) PostOccurrence(p OccurrencePosting) error {
	converted := s.converter.ToBase(p.Amount, p.Currency)

	err := s.conn.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO transactions
			   (date, amount, amount_converted, category_id, account_id, currency, notes,
			    recurring_id, occurrence_date)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Date, p.Amount, converted, p.CategoryID, p.AccountID, p.Currency, p.Notes,
			p.RecurringID, p.OccurrenceDate,
		)
		if err != nil {
			return fmt.Errorf("failed to insert occurrence posting: %w", err)
		}
		return adjustBalanceTx(tx, p.AccountID, p.Currency, p.Amount)
	})
	if isUniqueViolation(err) {
		return ErrDuplicatePosting
	}
	return err
}

// DeleteTransaction removes a posting and reverses its balance effect.
// Since amounts are signed, reversal subtracts the stored amount. Lookup,
// balance update and row removal are one atomic unit.
func (s *Store) DeleteTransaction(id int64) error {
	return s.conn.Transaction(func(tx *sql.Tx) error {
		var amount float64
		var accountID sql.NullInt64
		var currency string
		err := tx.QueryRow(
			`SELECT amount, account_id, currency FROM transactions WHERE id = ?`, id,
		).Scan(&amount, &accountID, &currency)
		if err == sql.ErrNoRows {
			return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to look up transaction: %w", err)
		}

		if accountID.Valid {
			if err := adjustBalanceTx(tx, accountID.Int64, currency, -amount); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(`DELETE FROM transactions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete transaction: %w", err)
		}
		return nil
	})
}

// RecentTransactions retrieves the most recent postings, newest first.
func (s *Store) RecentTransactions(limit int) ([]Transaction, error) {
	rows, err := s.conn.Query(
		`SELECT id, date, amount, amount_converted, category_id, account_id,
		        currency, notes, recurring_id, occurrence_date
		 FROM transactions
		 ORDER BY date DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// CategorySpend returns the net signed sum for a category over [start, end].
// Callers decide how to interpret the sign.
func (s *Store) CategorySpend(categoryID int64, start, end string) (float64, error) {
	var total sql.NullFloat64
	err := s.conn.QueryRow(
		`SELECT SUM(amount) FROM transactions
		 WHERE category_id = ? AND date >= ? AND date <= ?`,
		categoryID, start, end,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum category spend: %w", err)
	}
	return total.Float64, nil
}

func scanTransactions(rows *sql.Rows) ([]Transaction, error) {
	var txs []Transaction
	for rows.Next() {
		var t Transaction
		var notes sql.NullString
		if err := rows.Scan(
			&t.ID, &t.Date, &t.Amount, &t.AmountConverted, &t.CategoryID,
			&t.AccountID, &t.Currency, &notes, &t.RecurringID, &t.OccurrenceDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Notes = notes.String
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
