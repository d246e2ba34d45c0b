package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/modernsoft/estock-support/backend/internal/model/customer"
)

// GetCustomers returns customers ordered by name.
func (s *Store) GetCustomers(ctx context.Context) ([]customer.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contract_number, is_active, created_at, last_login
		FROM customers ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	customers := make([]customer.Customer, 0)
	for rows.Next() {
		var c customer.Customer
		var active int
		var createdAt int64
		var lastLogin sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Name, &c.ContractNumber, &active, &createdAt, &lastLogin); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		c.IsActive = active == 1
		c.CreatedAt = fromMillis(createdAt)
		if lastLogin.Valid {
			t := fromMillis(lastLogin.Int64)
			c.LastLogin = &t
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return customers, nil
}

func (s *Store) SaveCustomer(ctx context.Context, c customer.Customer) error {
	var lastLogin interface{}
	if c.LastLogin != nil {
		lastLogin = c.LastLogin.UnixMilli()
	}
	active := 0
	if c.IsActive {
		active = 1
	}

	query := `
	INSERT INTO customers (id, name, contract_number, is_active, created_at, last_login)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		contract_number = excluded.contract_number,
		is_active = excluded.is_active,
		last_login = excluded.last_login`
	if _, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.ContractNumber, active, c.CreatedAt.UnixMilli(), lastLogin,
	); err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}

func (s *Store) GetSettings(ctx context.Context) (customer.Settings, bool, error) {
	var settings customer.Settings
	found, err := s.getJSON(ctx, keySettings, &settings)
	return settings, found, err
}

func (s *Store) SaveSettings(ctx context.Context, settings customer.Settings) error {
	return s.setJSON(ctx, keySettings, settings)
}

// GetAdminPassword returns the stored bcrypt hash, found=false when never set.
func (s *Store) GetAdminPassword(ctx context.Context) (string, bool, error) {
	return s.getValue(ctx, keyAdminPassword)
}

func (s *Store) SetAdminPassword(ctx context.Context, hash string) error {
	return s.setValue(ctx, keyAdminPassword, hash)
}
