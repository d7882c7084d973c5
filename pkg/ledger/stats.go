package ledger

import (
	"database/sql"
	"fmt"
)

// Stats represents ledger statistics for the CLI stats command.
type Stats struct {
	Transactions      int
	GeneratedPostings int
	ActiveRecurring   int
	TotalRecurring    int
	Accounts          int
	LastGeneratedAt   sql.NullString
}

// Stats retrieves aggregate counters over the ledger.
func (s *Store) Stats() (*Stats, error) {
	var stats Stats

	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&stats.Transactions); err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	err := s.conn.QueryRow(
		`SELECT COUNT(*) FROM transactions WHERE recurring_id IS NOT NULL`,
	).Scan(&stats.GeneratedPostings)
	if err != nil {
		return nil, fmt.Errorf("failed to count generated postings: %w", err)
	}

	err = s.conn.QueryRow(
		`SELECT COUNT(*) FROM recurring_transactions WHERE active = 1`,
	).Scan(&stats.ActiveRecurring)
	if err != nil {
		return nil, fmt.Errorf("failed to count active recurring definitions: %w", err)
	}

	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM recurring_transactions`).Scan(&stats.TotalRecurring); err != nil {
		return nil, fmt.Errorf("failed to count recurring definitions: %w", err)
	}

	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&stats.Accounts); err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}

	err = s.conn.QueryRow(
		`SELECT MAX(last_generated_at) FROM recurring_transactions`,
	).Scan(&stats.LastGeneratedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read last generation time: %w", err)
	}

	return &stats, nil
}
