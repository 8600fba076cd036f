package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	selectSchemaText = `SELECT form_schema_json FROM prestation_ref WHERE schema_key = $1 AND form_schema_json IS NOT NULL ORDER BY id DESC LIMIT 1`
	updateSchemaText = `UPDATE prestation_ref SET form_schema_json = $2, updated_at = NOW() WHERE schema_key = $1`
	selectSchemaKeys = `SELECT DISTINCT schema_key FROM prestation_ref WHERE schema_key IS NOT NULL ORDER BY schema_key`
)

// PostgresSource keeps schema text on the prestation_ref row that owns it.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) LoadSchemaText(ctx context.Context, key string) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, selectSchemaText, key).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSchemaTextNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load schema %s: %w", key, err)
	}
	return text, nil
}

// SaveSchemaText attaches text to every offering using key. A key with no
// offering yields ErrSchemaTextNotFound.
func (s *PostgresSource) SaveSchemaText(ctx context.Context, key, text string) error {
	res, err := s.db.ExecContext(ctx, updateSchemaText, key, text)
	if err != nil {
		return fmt.Errorf("save schema %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save schema %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("no prestation uses schema %s: %w", key, ErrSchemaTextNotFound)
	}
	return nil
}

// Keys lists the schema keys referenced by offerings.
func (s *PostgresSource) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, selectSchemaKeys)
	if err != nil {
		return nil, fmt.Errorf("list schema keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan schema key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
