package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	sqlite "modernc.org/sqlite"

	"github.com/sakif/places-api/internal/apperror"
	"github.com/sakif/places-api/internal/model"
)

// SQLITE_CONSTRAINT_UNIQUE extended result code. The driver surfaces it on
// any UNIQUE violation; for the users table that can only be the email
// column, the sole source of conflict errors in this system.
const sqliteConstraintUnique = 2067

// UserRepo implements repository.UserRepository against a pool or an open
// transaction, depending on the querier it was built with.
type UserRepo struct {
	q querier
}

// Create inserts a new user.
//
// The email uniqueness check is the INSERT itself: the UNIQUE constraint on
// users.email rejects duplicates atomically, so two concurrent signups with
// the same email cannot both succeed. The violation is translated to
// apperror.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, image, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Image,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user exists already, please login instead")
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	if user.Places == nil {
		user.Places = []string{}
	}
	return nil
}

// GetByID retrieves a user by internal ID, including their owned-place set.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, image, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	)

	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	user.Places, err = r.PlaceIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// GetByEmail retrieves a user by their login email.
// Returns apperror.ErrNotFound if no user is registered under it.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, image, created_at, updated_at
		 FROM users WHERE email = ?`,
		email,
	)

	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}

	user.Places, err = r.PlaceIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// List returns all users with their owned-place sets.
//
// The password hash comes back from the SELECT (the struct holds it for
// internal use) but it never reaches a client: the model tags it `json:"-"`.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, name, email, password_hash, image, created_at, updated_at
		 FROM users
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(
			&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Image,
			&u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		u.Places = []string{}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	// One pass over user_places instead of a query per user.
	linkRows, err := r.q.QueryContext(ctx,
		`SELECT user_id, place_id FROM user_places`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing place links: %w", err)
	}
	defer linkRows.Close()

	byUser := make(map[string][]string)
	for linkRows.Next() {
		var userID, placeID string
		if err := linkRows.Scan(&userID, &placeID); err != nil {
			return nil, fmt.Errorf("sqlite: scanning place link: %w", err)
		}
		byUser[userID] = append(byUser[userID], placeID)
	}
	if err := linkRows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating place links: %w", err)
	}

	for i := range users {
		if ids, ok := byUser[users[i].ID]; ok {
			users[i].Places = ids
		}
	}

	return users, nil
}

// AddPlace appends a place ID to the user's owned-place set.
func (r *UserRepo) AddPlace(ctx context.Context, userID, placeID string) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO user_places (user_id, place_id) VALUES (?, ?)`,
		userID, placeID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: linking place %s to user %s: %w", placeID, userID, err)
	}
	return nil
}

// RemovePlace removes a place ID from the user's owned-place set.
// Returns apperror.ErrNotFound if the back-reference was not present, since
// that would mean the two collections already disagree.
func (r *UserRepo) RemovePlace(ctx context.Context, userID, placeID string) error {
	result, err := r.q.ExecContext(ctx,
		`DELETE FROM user_places WHERE user_id = ? AND place_id = ?`,
		userID, placeID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: unlinking place %s from user %s: %w", placeID, userID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("place link", placeID)
	}
	return nil
}

// PlaceIDs returns the IDs of the places the user owns.
func (r *UserRepo) PlaceIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT place_id FROM user_places WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing places for user %s: %w", userID, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning place id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating place ids: %w", err)
	}

	return ids, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Image,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code() == sqliteConstraintUnique
}
