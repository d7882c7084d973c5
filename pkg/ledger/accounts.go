package ledger

import (
	"database/sql"
	"fmt"
	"strings"
)

// Account represents an account with its cached per-currency balances.
type Account struct {
	ID       int64
	Name     string
	Type     string
	Notes    string
	Balances []AccountBalance
}

// AccountBalance is the cached balance for one (account, currency) pair.
type AccountBalance struct {
	AccountID int64
	Currency  string
	Balance   float64
	Threshold sql.NullFloat64
}

// LowBalanceAlert reports a balance that dropped below its threshold.
type LowBalanceAlert struct {
	AccountName string
	Currency    string
	Balance     float64
	Threshold   float64
}

// AddAccount creates an account and returns its id.
func (s *Store) AddAccount(name, accountType, notes string) (int64, error) {
	if name == "" {
		return 0, Validationf("name", "must not be empty")
	}
	result, err := s.conn.Exec(
		`INSERT INTO accounts (name, type, notes) VALUES (?, ?, ?)`,
		name, accountType, notes,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add account: %w", err)
	}
	return result.LastInsertId()
}

// AccountUpdate carries the fields to change on an account; nil leaves a field
// untouched.
type AccountUpdate struct {
	Name  *string
	Type  *string
	Notes *string
}

// UpdateAccount applies a partial update to an account.
func (s *Store) UpdateAccount(id int64, upd AccountUpdate) error {
	var setters []string
	var args []interface{}

	if upd.Name != nil {
		setters = append(setters, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Type != nil {
		setters = append(setters, "type = ?")
		args = append(args, *upd.Type)
	}
	if upd.Notes != nil {
		setters = append(setters, "notes = ?")
		args = append(args, *upd.Notes)
	}
	if len(setters) == 0 {
		return nil
	}
	args = append(args, id)

	_, err := s.conn.Exec(
		fmt.Sprintf(`UPDATE accounts SET %s WHERE id = ?`, strings.Join(setters, ", ")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

// DeleteAccount removes an account and its cached balances.
func (s *Store) DeleteAccount(id int64) error {
	return s.conn.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM account_balances WHERE account_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete account balances: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM accounts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}
		return nil
	})
}

// Accounts retrieves all accounts with their balances.
func (s *Store) Accounts() ([]Account, error) {
	rows, err := s.conn.Query(`SELECT id, name, type, notes FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		var accountType, notes sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &accountType, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		a.Type = accountType.String
		a.Notes = notes.String
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range accounts {
		balances, err := s.AccountBalances(accounts[i].ID)
		if err != nil {
			return nil, err
		}
		accounts[i].Balances = balances
	}
	return accounts, nil
}

// AccountBalances retrieves the cached balances for an account.
func (s *Store) AccountBalances(accountID int64) ([]AccountBalance, error) {
	rows, err := s.conn.Query(
		`SELECT account_id, currency, balance, balance_threshold
		 FROM account_balances WHERE account_id = ? ORDER BY currency`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list account balances: %w", err)
	}
	defer rows.Close()

	var balances []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Currency, &b.Balance, &b.Threshold); err != nil {
			return nil, fmt.Errorf("failed to scan account balance: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// Balance retrieves the cached balance for one (account, currency) pair.
// A pair with no balance row reads as zero.
func (s *Store) Balance(accountID int64, currency string) (float64, error) {
	var balance float64
	err := s.conn.QueryRow(
		`SELECT balance FROM account_balances WHERE account_id = ? AND currency = ?`,
		accountID, currency,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

// AdjustBalance applies a signed delta to the cached balance for the
// (account, currency) pair, creating the row if needed. This is the sole
// primitive for mutating cached balances; manual edits, posting and deletion
// all funnel through it (or its transaction-scoped variant).
func (s *Store) AdjustBalance(accountID int64, currency string, delta float64) error {
	return s.conn.Transaction(func(tx *sql.Tx) error {
		return adjustBalanceTx(tx, accountID, currency, delta)
	})
}

func adjustBalanceTx(tx *sql.Tx, accountID int64, currency string, delta float64) error {
	_, err := tx.Exec(
		`INSERT INTO account_balances (account_id, currency, balance)
		 VALUES (?, ?, ?)
		 ON CONFLICT(account_id, currency) DO UPDATE SET
		     balance = balance + excluded.balance`,
		accountID, currency, delta,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust balance: %w", err)
	}
	return nil
}

// SetBalanceThreshold sets or clears (nil) the low-balance threshold for a
// specific currency on an account.
func (s *Store) SetBalanceThreshold(accountID int64, currency string, threshold *float64) error {
	var value sql.NullFloat64
	if threshold != nil {
		value = sql.NullFloat64{Float64: *threshold, Valid: true}
	}
	_, err := s.conn.Exec(
		`UPDATE account_balances SET balance_threshold = ?
		 WHERE account_id = ? AND currency = ?`,
		value, accountID, currency,
	)
	if err != nil {
		return fmt.Errorf("failed to set balance threshold: %w", err)
	}
	return nil
}

// LowBalanceAlerts retrieves all balances currently below their threshold.
func (s *Store) LowBalanceAlerts() ([]LowBalanceAlert, error) {
	rows, err := s.conn.Query(`
		SELECT a.name, ab.currency, ab.balance, ab.balance_threshold
		FROM account_balances ab
		JOIN accounts a ON ab.account_id = a.id
		WHERE ab.balance_threshold IS NOT NULL
		  AND ab.balance < ab.balance_threshold
		ORDER BY a.name, ab.currency`)
	if err != nil {
		return nil, fmt.Errorf("failed to list low balance alerts: %w", err)
	}
	defer rows.Close()

	var alerts []LowBalanceAlert
	for rows.Next() {
		var alert LowBalanceAlert
		if err := rows.Scan(&alert.AccountName, &alert.Currency, &alert.Balance, &alert.Threshold); err != nil {
			return nil, fmt.Errorf("failed to scan low balance alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}
