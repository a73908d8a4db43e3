package db

import (
	"context"

	"starling-server/src/models"

	"github.com/google/uuid"
)

// UpsertCategory creates the category, and its group when needed, and returns
// it with its UUID. Adding an existing category returns the stored one.
func (s *Store) UpsertCategory(ctx context.Context, c models.Category) (models.Category, error) {
	err := s.inTx(ctx, func(q querier) error {
		groupID, err := upsertGroup(ctx, q, c.GroupName)
		if err != nil {
			return err
		}
		query := `
			INSERT INTO categories (group_id, name)
			VALUES ($1::uuid, $2)
			ON CONFLICT (group_id, name) DO UPDATE SET name = EXCLUDED.name
			RETURNING uuid::text
		`
		var id string
		if err := q.QueryRow(ctx, query, groupID, c.Name).Scan(&id); err != nil {
			return err
		}
		c.UUID, err = uuid.Parse(id)
		return err
	})
	if err != nil {
		return models.Category{}, mapError(err)
	}
	return c, nil
}

func upsertGroup(ctx context.Context, q querier, name string) (string, error) {
	query := `
		INSERT INTO category_groups (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING uuid::text
	`
	var id string
	err := q.QueryRow(ctx, query, name).Scan(&id)
	return id, err
}

func deleteEmptyGroups(ctx context.Context, q querier) error {
	query := `
		DELETE FROM category_groups g
		WHERE NOT EXISTS (SELECT 1 FROM categories c WHERE c.group_id = g.uuid)
	`
	_, err := q.Exec(ctx, query)
	return err
}

func (s *Store) SelectCategories(ctx context.Context) ([]models.Category, error) {
	query := `
		SELECT c.uuid::text, c.name, g.name
		FROM categories c
		JOIN category_groups g ON g.uuid = c.group_id
		ORDER BY g.name, c.name
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var id string
		var c models.Category
		if err := rows.Scan(&id, &c.Name, &c.GroupName); err != nil {
			return nil, err
		}
		if c.UUID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}

func (s *Store) SelectCategory(ctx context.Context, groupName, name string) (models.Category, error) {
	query := `
		SELECT c.uuid::text
		FROM categories c
		JOIN category_groups g ON g.uuid = c.group_id
		WHERE g.name = $1 AND c.name = $2
	`
	var id string
	if err := s.db.QueryRow(ctx, query, groupName, name).Scan(&id); err != nil {
		return models.Category{}, mapError(err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return models.Category{}, err
	}
	return models.Category{UUID: parsed, Name: name, GroupName: groupName}, nil
}

// DeleteCategory removes the category; transactions that used it become
// uncategorised. Groups left empty are removed too.
func (s *Store) DeleteCategory(ctx context.Context, c models.Category) error {
	return s.inTx(ctx, func(q querier) error {
		query := `
			DELETE FROM categories c
			USING category_groups g
			WHERE c.group_id = g.uuid AND g.name = $1 AND c.name = $2
		`
		tag, err := q.Exec(ctx, query, c.GroupName, c.Name)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return deleteEmptyGroups(ctx, q)
	})
}

func (s *Store) RenameCategory(ctx context.Context, c models.Category, newName string) error {
	query := `
		UPDATE categories c
		SET name = $3
		FROM category_groups g
		WHERE c.group_id = g.uuid AND g.name = $1 AND c.name = $2
	`
	tag, err := s.db.Exec(ctx, query, c.GroupName, c.Name, newName)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ChangeCategoryGroup moves the category under newGroup, creating it if needed.
func (s *Store) ChangeCategoryGroup(ctx context.Context, c models.Category, newGroup string) error {
	err := s.inTx(ctx, func(q querier) error {
		groupID, err := upsertGroup(ctx, q, newGroup)
		if err != nil {
			return err
		}
		query := `
			UPDATE categories c
			SET group_id = $3::uuid
			FROM category_groups g
			WHERE c.group_id = g.uuid AND g.name = $1 AND c.name = $2
		`
		tag, err := q.Exec(ctx, query, c.GroupName, c.Name, groupID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return deleteEmptyGroups(ctx, q)
	})
	return mapError(err)
}

// AssignCategory sets the category on every transaction whose counterparty
// has the given raw or display name, and reports how many changed.
func (s *Store) AssignCategory(ctx context.Context, counterpartyName string, c models.Category) (int64, error) {
	category, err := s.SelectCategory(ctx, c.GroupName, c.Name)
	if err != nil {
		return 0, err
	}
	query := `
		UPDATE transactions t
		SET category_uuid = $2::uuid
		FROM counterparties cp
		WHERE t.counterparty_uuid = cp.uuid AND (cp.name = $1 OR cp.display_name = $1)
	`
	tag, err := s.db.Exec(ctx, query, counterpartyName, category.UUID.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
