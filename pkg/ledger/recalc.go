package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dvoloshyn/finet/pkg/currency"
)

// RecalculateAllConversions rewrites the cached base-currency amount on every
// stored transaction and recurring definition using the current rate table.
// It is an explicit batch job: signed amounts and balances are never touched.
// Returns the number of transactions and recurring definitions updated.
//
// The context is honored between tables and rows; each table's rewrite commits
// as its own unit, and re-running after an interruption is safe because the
// job is a pure overwrite.
func (s *Store) RecalculateAllConversions(ctx context.Context) (int, int, error) {
	base, rates, err := s.converter.Snapshot()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load rate snapshot: %w", err)
	}

	txCount, err := s.recalcTable(ctx, "transactions", base, rates)
	if err != nil {
		return 0, 0, err
	}

	recCount, err := s.recalcTable(ctx, "recurring_transactions", base, rates)
	if err != nil {
		return txCount, 0, err
	}

	return txCount, recCount, nil
}

func (s *Store) recalcTable(ctx context.Context, table, base string, rates map[string]float64) (int, error) {
	rows, err := s.conn.Query(fmt.Sprintf(`SELECT id, amount, currency FROM %s`, table))
	if err != nil {
		return 0, fmt.Errorf("failed to read %s for recalculation: %w", table, err)
	}

	type rowUpdate struct {
		id        int64
		converted float64
	}
	var updates []rowUpdate
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			rows.Close()
			return 0, err
		}
		var id int64
		var amount float64
		var curr string
		if err := rows.Scan(&id, &amount, &curr); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		updates = append(updates, rowUpdate{
			id:        id,
			converted: currency.ToBaseWith(amount, curr, base, rates),
		})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	err = s.conn.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(fmt.Sprintf(`UPDATE %s SET amount_converted = ? WHERE id = ?`, table))
		if err != nil {
			return fmt.Errorf("failed to prepare %s update: %w", table, err)
		}
		defer stmt.Close()

		for _, u := range updates {
			if _, err := stmt.Exec(u.converted, u.id); err != nil {
				return fmt.Errorf("failed to update %s row %d: %w", table, u.id, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(updates), nil
}
