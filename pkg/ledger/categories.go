package ledger

import (
	"database/sql"
	"fmt"
	"math"
)

// CategoryType determines the sign convention applied to raw amounts.
type CategoryType string

const (
	CategoryExpense CategoryType = "expense"
	CategoryIncome  CategoryType = "income"
)

// Valid reports whether the category type is supported.
func (t CategoryType) Valid() bool {
	return t == CategoryExpense || t == CategoryIncome
}

// Category represents a transaction category.
type Category struct {
	ID   int64
	Name string
	Icon string
	Type CategoryType
}

// AddCategory creates a category and returns its id.
func (s *Store) AddCategory(name, icon string, typ CategoryType) (int64, error) {
	if name == "" {
		return 0, Validationf("name", "must not be empty")
	}
	if !typ.Valid() {
		return 0, Validationf("type", "unsupported category type: %s", typ)
	}
	if icon == "" {
		icon = "Other"
	}

	result, err := s.conn.Exec(
		`INSERT INTO categories (name, icon, type) VALUES (?, ?, ?)`,
		name, icon, string(typ),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add category: %w", err)
	}
	return result.LastInsertId()
}

// Categories retrieves all categories ordered by name.
func (s *Store) Categories() ([]Category, error) {
	rows, err := s.conn.Query(`SELECT id, name, icon, type FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		var typ string
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.Type = CategoryType(typ)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateCategory updates a category's name, icon and type.
func (s *Store) UpdateCategory(id int64, name, icon string, typ CategoryType) error {
	if !typ.Valid() {
		return Validationf("type", "unsupported category type: %s", typ)
	}
	_, err := s.conn.Exec(
		`UPDATE categories SET name = ?, icon = ?, type = ? WHERE id = ?`,
		name, icon, string(typ), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return nil
}

// DeleteCategory removes a category.
func (s *Store) DeleteCategory(id int64) error {
	if _, err := s.conn.Exec(`DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

// CategoryType looks up the type of a category.
func (s *Store) CategoryType(id int64) (CategoryType, error) {
	var typ string
	err := s.conn.QueryRow(`SELECT type FROM categories WHERE id = ?`, id).Scan(&typ)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up category type: %w", err)
	}
	return CategoryType(typ), nil
}

// SignFor applies the category's sign convention to a raw non-negative amount:
// income categories yield a positive amount, expense categories a negative one.
func (s *Store) SignFor(categoryID int64, raw float64) (float64, error) {
	typ, err := s.CategoryType(categoryID)
	if err != nil {
		return 0, err
	}
	return signedAmount(typ, raw), nil
}

func signedAmount(typ CategoryType, raw float64) float64 {
	if typ == CategoryIncome {
		return math.Abs(raw)
	}
	return -math.Abs(raw)
}
