package recurring

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dvoloshyn/finet/pkg/dates"
	"github.com/dvoloshyn/finet/pkg/db"
	"github.com/dvoloshyn/finet/pkg/ledger"
)

// Definition represents a recurring-payment definition. Amount is signed.
// NextOccurrence is the cursor: the earliest occurrence not yet posted.
type Definition struct {
	ID              int64
	AccountID       int64
	CategoryID      int64
	Amount          float64
	AmountConverted float64
	Currency        string
	Frequency       Frequency
	Interval        sql.NullInt64
	DayOfMonth      sql.NullInt64
	Weekday         sql.NullInt64 // reserved
	StartDate       string
	EndDate         sql.NullString
	NextOccurrence  sql.NullString
	LastGeneratedAt sql.NullString
	Notes           string
	Active          bool
	CreatedAt       string
	UpdatedAt       string
}

// NewDefinition is the input for creating a definition. Amount is the raw
// non-negative value; the category's sign convention is applied on create.
type NewDefinition struct {
	AccountID  int64
	CategoryID int64
	Amount     float64
	Currency   string
	Frequency  Frequency
	Interval   *int64
	DayOfMonth *int64
	Weekday    *int64
	StartDate  string
	EndDate    string // empty = no end date
	Notes      string
}

// Store provides CRUD over recurring definitions.
type Store struct {
	conn   *db.Connection
	ledger *ledger.Store
}

// NewStore creates a definition store. The ledger store supplies the category
// sign convention and write-time currency conversion.
func NewStore(conn *db.Connection, ledgerStore *ledger.Store) *Store {
	return &Store{conn: conn, ledger: ledgerStore}
}

// CreateDefinition validates and stores a definition. The cursor is seeded at
// the start date. A "once" definition gets end_date = start_date; after its
// single posting the rule engine yields no successor and it self-deactivates.
func (s *Store) CreateDefinition(nd NewDefinition) (int64, error) {
	if !nd.Frequency.Valid() {
		return 0, ledger.Validationf("frequency", "unsupported frequency: %s", nd.Frequency)
	}
	if _, err := dates.Parse(nd.StartDate); err != nil {
		return 0, ledger.Validationf("start_date", "%v", err)
	}
	endDate := nd.EndDate
	if endDate != "" {
		if _, err := dates.Parse(endDate); err != nil {
			return 0, ledger.Validationf("end_date", "%v", err)
		}
	}
	if nd.Amount < 0 {
		return 0, ledger.Validationf("amount", "raw amount must be non-negative, got %v", nd.Amount)
	}
	if nd.Currency == "" {
		return 0, ledger.Validationf("currency", "must not be empty")
	}

	if nd.Frequency == FrequencyOnce {
		endDate = nd.StartDate
	}

	signed, err := s.ledger.SignFor(nd.CategoryID, nd.Amount)
	if err != nil {
		return 0, err
	}
	converted := s.ledger.ConvertToBase(signed, nd.Currency)

	now := nowStamp()
	result, err := s.conn.Exec(
		`INSERT INTO recurring_transactions
		   (account_id, category_id, amount, amount_converted, currency, frequency,
		    interval, day_of_month, weekday, start_date, end_date, next_occurrence,
		    last_generated_at, notes, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, 1, ?, ?)`,
		nd.AccountID, nd.CategoryID, signed, converted, nd.Currency, string(nd.Frequency),
		nullInt(nd.Interval), nullInt(nd.DayOfMonth), nullInt(nd.Weekday),
		nd.StartDate, nullStr(endDate), nd.StartDate, nd.Notes, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create recurring definition: %w", err)
	}
	return result.LastInsertId()
}

// Get retrieves a definition by id.
func (s *Store) Get(id int64) (*Definition, error) {
	row := s.conn.QueryRow(selectDefinition+` WHERE id = ?`, id)
	def, err := scanDefinition(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("recurring definition %d: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recurring definition: %w", err)
	}
	return def, nil
}

// List retrieves definitions, active ones first when activeOnly is false,
// ordered by ascending cursor so catch-up processes due definitions in order.
func (s *Store) List(activeOnly bool) ([]Definition, error) {
	query := selectDefinition + ` ORDER BY active DESC, next_occurrence ASC`
	if activeOnly {
		query = selectDefinition + ` WHERE active = 1 ORDER BY next_occurrence ASC`
	}

	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring definitions: %w", err)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring definition: %w", err)
		}
		defs = append(defs, *def)
	}
	return defs, rows.Err()
}

// UpcomingDefinition is a definition joined with its category for display.
type UpcomingDefinition struct {
	Definition
	CategoryName string
	CategoryIcon string
	CategoryType string
}

// Upcoming retrieves active definitions whose next occurrence falls within the
// given number of days ahead.
func (s *Store) Upcoming(limit, daysAhead int) ([]UpcomingDefinition, error) {
	horizon := dates.String(dates.Today().AddDate(0, 0, daysAhead))

	rows, err := s.conn.Query(`
		SELECT r.id, r.account_id, r.category_id, r.amount, r.amount_converted,
		       r.currency, r.frequency, r.interval, r.day_of_month, r.weekday,
		       r.start_date, r.end_date, r.next_occurrence, r.last_generated_at,
		       r.notes, r.active, r.created_at, r.updated_at,
		       c.name, c.icon, c.type
		FROM recurring_transactions r
		LEFT JOIN categories c ON r.category_id = c.id
		WHERE r.active = 1 AND r.next_occurrence <= ?
		ORDER BY r.next_occurrence ASC
		LIMIT ?`,
		horizon, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming definitions: %w", err)
	}
	defer rows.Close()

	var upcoming []UpcomingDefinition
	for rows.Next() {
		var u UpcomingDefinition
		var freq string
		var notes, catName, catIcon, catType sql.NullString
		if err := rows.Scan(
			&u.ID, &u.AccountID, &u.CategoryID, &u.Amount, &u.AmountConverted,
			&u.Currency, &freq, &u.Interval, &u.DayOfMonth, &u.Weekday,
			&u.StartDate, &u.EndDate, &u.NextOccurrence, &u.LastGeneratedAt,
			&notes, &u.Active, &u.CreatedAt, &u.UpdatedAt,
			&catName, &catIcon, &catType,
		); err != nil {
			return nil, fmt.Errorf("failed to scan upcoming definition: %w", err)
		}
		u.Frequency = Frequency(freq)
		u.Notes = notes.String
		u.CategoryName = catName.String
		u.CategoryIcon = catIcon.String
		u.CategoryType = catType.String
		upcoming = append(upcoming, u)
	}
	return upcoming, rows.Err()
}

// DefinitionUpdate carries the fields to change on a definition; nil leaves a
// field untouched. Amount is raw non-negative and is re-signed using the
// definition's (possibly updated) category.
type DefinitionUpdate struct {
	Amount          *float64
	Currency        *string
	CategoryID      *int64
	Frequency       *Frequency
	Interval        *int64
	DayOfMonth      *int64
	Weekday         *int64
	StartDate       *string
	EndDate         *string
	Notes           *string
	Active          *bool
	NextOccurrence  *string
	LastGeneratedAt *string
}

// UpdateDefinition applies a partial update, re-signing and re-converting the
// amount when it or the category changes. updated_at is always stamped.
func (s *Store) UpdateDefinition(id int64, upd DefinitionUpdate) error {
	if upd.Frequency != nil && !upd.Frequency.Valid() {
		return ledger.Validationf("frequency", "unsupported frequency: %s", *upd.Frequency)
	}
	for field, value := range map[string]*string{
		"start_date":      upd.StartDate,
		"end_date":        upd.EndDate,
		"next_occurrence": upd.NextOccurrence,
	} {
		if value != nil && *value != "" {
			if _, err := dates.Parse(*value); err != nil {
				return ledger.Validationf(field, "%v", err)
			}
		}
	}

	var setters []string
	var args []interface{}

	if upd.Amount != nil || upd.CategoryID != nil || upd.Currency != nil {
		current, err := s.Get(id)
		if err != nil {
			return err
		}
		categoryID := current.CategoryID
		if upd.CategoryID != nil {
			categoryID = *upd.CategoryID
			setters = append(setters, "category_id = ?")
			args = append(args, categoryID)
		}
		currency := current.Currency
		if upd.Currency != nil {
			currency = *upd.Currency
			setters = append(setters, "currency = ?")
			args = append(args, currency)
		}
		raw := current.Amount
		if upd.Amount != nil {
			if *upd.Amount < 0 {
				return ledger.Validationf("amount", "raw amount must be non-negative, got %v", *upd.Amount)
			}
			raw = *upd.Amount
		}
		signed, err := s.ledger.SignFor(categoryID, raw)
		if err != nil {
			return err
		}
		setters = append(setters, "amount = ?", "amount_converted = ?")
		args = append(args, signed, s.ledger.ConvertToBase(signed, currency))
	}

	if upd.Frequency != nil {
		setters = append(setters, "frequency = ?")
		args = append(args, string(*upd.Frequency))
	}
	if upd.Interval != nil {
		setters = append(setters, "interval = ?")
		args = append(args, *upd.Interval)
	}
	if upd.DayOfMonth != nil {
		setters = append(setters, "day_of_month = ?")
		args = append(args, *upd.DayOfMonth)
	}
	if upd.Weekday != nil {
		setters = append(setters, "weekday = ?")
		args = append(args, *upd.Weekday)
	}
	if upd.StartDate != nil {
		setters = append(setters, "start_date = ?")
		args = append(args, *upd.StartDate)
	}
	if upd.EndDate != nil {
		setters = append(setters, "end_date = ?")
		args = append(args, nullStr(*upd.EndDate))
	}
	if upd.Notes != nil {
		setters = append(setters, "notes = ?")
		args = append(args, *upd.Notes)
	}
	if upd.Active != nil {
		setters = append(setters, "active = ?")
		args = append(args, boolInt(*upd.Active))
	}
	if upd.NextOccurrence != nil {
		setters = append(setters, "next_occurrence = ?")
		args = append(args, nullStr(*upd.NextOccurrence))
	}
	if upd.LastGeneratedAt != nil {
		setters = append(setters, "last_generated_at = ?")
		args = append(args, *upd.LastGeneratedAt)
	}
	if len(setters) == 0 {
		return nil
	}

	setters = append(setters, "updated_at = ?")
	args = append(args, nowStamp(), id)

	_, err := s.conn.Exec(
		fmt.Sprintf(`UPDATE recurring_transactions SET %s WHERE id = ?`, strings.Join(setters, ", ")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update recurring definition: %w", err)
	}
	return nil
}

// Deactivate marks a definition inactive. Terminal is permanent until an
// explicit Reactivate.
func (s *Store) Deactivate(id int64) error {
	inactive := false
	return s.UpdateDefinition(id, DefinitionUpdate{Active: &inactive})
}

// Reactivate marks a definition active again and re-seeds its cursor, since a
// terminal definition's cursor no longer points at a valid occurrence.
func (s *Store) Reactivate(id int64, nextOccurrence string) error {
	if _, err := dates.Parse(nextOccurrence); err != nil {
		return ledger.Validationf("next_occurrence", "%v", err)
	}
	active := true
	return s.UpdateDefinition(id, DefinitionUpdate{
		Active:         &active,
		NextOccurrence: &nextOccurrence,
	})
}

const selectDefinition = `
	SELECT id, account_id, category_id, amount, amount_converted, currency,
	       frequency, interval, day_of_month, weekday, start_date, end_date,
	       next_occurrence, last_generated_at, notes, active, created_at, updated_at
	FROM recurring_transactions`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDefinition(row rowScanner) (*Definition, error) {
	var def Definition
	var freq string
	var notes sql.NullString
	err := row.Scan(
		&def.ID, &def.AccountID, &def.CategoryID, &def.Amount, &def.AmountConverted,
		&def.Currency, &freq, &def.Interval, &def.DayOfMonth, &def.Weekday,
		&def.StartDate, &def.EndDate, &def.NextOccurrence, &def.LastGeneratedAt,
		&notes, &def.Active, &def.CreatedAt, &def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	def.Frequency = Frequency(freq)
	def.Notes = notes.String
	return &def, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
