// Package ledger implements the signed-posting store and balance reconciler.
//
// Postings carry signed amounts (income positive, expense negative) and every
// balance-affecting operation runs inside a single SQL transaction, so the
// cached per-(account, currency) balances always equal the sum of non-deleted
// posting amounts.
package ledger

import (
	"time"

	"github.com/dvoloshyn/finet/pkg/currency"
	"github.com/dvoloshyn/finet/pkg/db"
)

// Store provides ledger operations over a SQLite connection.
type Store struct {
	conn      *db.Connection
	converter *currency.Converter
}

// NewStore creates a ledger Store. The converter is consulted at write time to
// populate the cached base-currency amount on every posting.
func NewStore(conn *db.Connection, converter *currency.Converter) *Store {
	return &Store{conn: conn, converter: converter}
}

// ConvertToBase converts an amount to the base currency using the active rate
// table. Exposed for collaborators that display converted values.
func (s *Store) ConvertToBase(amount float64, curr string) float64 {
	return s.converter.ToBase(amount, curr)
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
