package db

import (
	"context"

	"starling-server/src/models"
)

// UpsertDisplayName maps a raw counterparty name to a display name and applies
// it to counterparties already stored.
func (s *Store) UpsertDisplayName(ctx context.Context, d models.DisplayName) error {
	return s.inTx(ctx, func(q querier) error {
		query := `
			INSERT INTO display_names (name, display_name)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET display_name = EXCLUDED.display_name
		`
		if _, err := q.Exec(ctx, query, d.Name, d.DisplayName); err != nil {
			return err
		}
		_, err := q.Exec(ctx, `UPDATE counterparties SET display_name = $2 WHERE name = $1`, d.Name, d.DisplayName)
		return err
	})
}

func (s *Store) DeleteDisplayName(ctx context.Context, name string) error {
	return s.inTx(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, `DELETE FROM display_names WHERE name = $1`, name)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = q.Exec(ctx, `UPDATE counterparties SET display_name = NULL WHERE name = $1`, name)
		return err
	})
}

func (s *Store) SelectDisplayNames(ctx context.Context) ([]models.DisplayName, error) {
	rows, err := s.db.Query(ctx, `SELECT name, display_name FROM display_names ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []models.DisplayName
	for rows.Next() {
		var d models.DisplayName
		if err := rows.Scan(&d.Name, &d.DisplayName); err != nil {
			return nil, err
		}
		names = append(names, d)
	}

	return names, rows.Err()
}
