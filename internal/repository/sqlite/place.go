package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/places-api/internal/apperror"
	"github.com/sakif/places-api/internal/model"
)

// PlaceRepo implements repository.PlaceRepository against a pool or an open
// transaction, depending on the querier it was built with.
type PlaceRepo struct {
	q querier
}

// Create inserts a new place. A zero ID gets a generated xid; a caller-set
// ID is kept, which the transactional tests rely on.
func (r *PlaceRepo) Create(ctx context.Context, place *model.Place) error {
	if place.ID == "" {
		place.ID = xid.New().String()
	}

	now := time.Now()
	place.CreatedAt = now
	place.UpdatedAt = now

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO places (id, title, description, address, lat, lng, image, creator_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		place.ID,
		place.Title,
		place.Description,
		place.Address,
		place.Location.Lat,
		place.Location.Lng,
		place.Image,
		place.CreatorID,
		place.CreatedAt,
		place.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting place: %w", err)
	}

	return nil
}

// GetByID retrieves a single place by its ID.
// Returns apperror.ErrNotFound if it doesn't exist.
func (r *PlaceRepo) GetByID(ctx context.Context, id string) (*model.Place, error) {
	var p model.Place

	err := r.q.QueryRowContext(ctx,
		`SELECT id, title, description, address, lat, lng, image, creator_id, created_at, updated_at
		 FROM places WHERE id = ?`,
		id,
	).Scan(
		&p.ID, &p.Title, &p.Description, &p.Address,
		&p.Location.Lat, &p.Location.Lng,
		&p.Image, &p.CreatorID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("place", id)
		}
		return nil, fmt.Errorf("sqlite: getting place %s: %w", id, err)
	}

	return &p, nil
}

// ListByCreator returns every place created by the given user, newest first.
// An existing user with no places yields an empty slice, not an error.
func (r *PlaceRepo) ListByCreator(ctx context.Context, creatorID string) ([]model.Place, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, title, description, address, lat, lng, image, creator_id, created_at, updated_at
		 FROM places
		 WHERE creator_id = ?
		 ORDER BY created_at DESC`,
		creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing places for user %s: %w", creatorID, err)
	}
	defer rows.Close()

	places := []model.Place{}
	for rows.Next() {
		var p model.Place
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Description, &p.Address,
			&p.Location.Lat, &p.Location.Lng,
			&p.Image, &p.CreatorID, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning place row: %w", err)
		}
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating places: %w", err)
	}

	return places, nil
}

// Update modifies a place's title and description.
// Returns apperror.ErrNotFound if the ID doesn't match anything.
func (r *PlaceRepo) Update(ctx context.Context, place *model.Place) error {
	place.UpdatedAt = time.Now()

	result, err := r.q.ExecContext(ctx,
		`UPDATE places SET title = ?, description = ?, updated_at = ? WHERE id = ?`,
		place.Title,
		place.Description,
		place.UpdatedAt,
		place.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating place %s: %w", place.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("place", place.ID)
	}

	return nil
}

// Delete removes a place by its ID.
// Same pattern as Update — RowsAffected detects "not found".
func (r *PlaceRepo) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx,
		`DELETE FROM places WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting place %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("place", id)
	}

	return nil
}
