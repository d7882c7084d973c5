// Package db provides SQLite database management for the finet ledger.
package db

// Schema defines the SQL statements to create database tables.
const Schema = `
-- Accounts and their cached per-currency balances
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    type TEXT,
    notes TEXT DEFAULT ''
);

-- Balance is a cached aggregate; every mutating operation keeps it equal to
-- the sum of non-deleted posting amounts for the (account, currency) pair.
CREATE TABLE IF NOT EXISTS account_balances (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    currency TEXT NOT NULL,
    balance REAL NOT NULL DEFAULT 0,
    balance_threshold REAL,            -- optional low-balance alert threshold
    UNIQUE(account_id, currency)
);

CREATE TABLE IF NOT EXISTS categories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    icon TEXT DEFAULT 'Other',
    type TEXT NOT NULL DEFAULT 'expense'  -- 'expense' or 'income'
);

-- Ledger postings. Amounts are signed: income positive, expense negative.
CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT NOT NULL,                -- YYYY-MM-DD
    amount REAL NOT NULL,              -- signed
    amount_converted REAL NOT NULL DEFAULT 0,  -- in base currency, cached at write time
    category_id INTEGER REFERENCES categories(id),
    account_id INTEGER REFERENCES accounts(id),
    currency TEXT NOT NULL,
    notes TEXT DEFAULT '',
    recurring_id INTEGER REFERENCES recurring_transactions(id),
    occurrence_date TEXT,              -- YYYY-MM-DD, set with recurring_id
    UNIQUE(recurring_id, occurrence_date)
);

CREATE INDEX IF NOT EXISTS idx_transactions_date
    ON transactions(date);

CREATE INDEX IF NOT EXISTS idx_transactions_category
    ON transactions(category_id, date);

CREATE TABLE IF NOT EXISTS recurring_transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id INTEGER NOT NULL REFERENCES accounts(id),
    category_id INTEGER NOT NULL REFERENCES categories(id),
    amount REAL NOT NULL,              -- signed
    amount_converted REAL NOT NULL DEFAULT 0,
    currency TEXT NOT NULL,
    frequency TEXT NOT NULL,           -- daily|weekly|monthly|yearly|custom_interval|once
    interval INTEGER,                  -- step size for weekly/monthly/yearly/custom_interval
    day_of_month INTEGER,              -- optional pin for monthly
    weekday INTEGER,                   -- reserved
    start_date TEXT NOT NULL,          -- YYYY-MM-DD
    end_date TEXT,                     -- YYYY-MM-DD
    next_occurrence TEXT,              -- cursor: earliest un-posted occurrence
    last_generated_at TEXT,            -- audit timestamp
    notes TEXT DEFAULT '',
    active INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recurring_next
    ON recurring_transactions(active, next_occurrence);

CREATE TABLE IF NOT EXISTS app_settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS exchange_rates (
    currency TEXT PRIMARY KEY,
    rate REAL NOT NULL                 -- 1 base-currency unit = rate foreign units
);

CREATE TABLE IF NOT EXISTS budgets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
    period TEXT NOT NULL,              -- 'monthly' or 'yearly'
    amount REAL NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT
);
`

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.Exec(Schema); err != nil {
		return err
	}
	return nil
}
