// Package repository declares the persistence interfaces the service layer
// depends on. The sqlite subpackage provides the real implementation; tests
// substitute in-memory mocks.
package repository

import (
	"context"

	"github.com/sakif/places-api/internal/model"
)

// UserRepository is the user directory plus the back-reference bookkeeping
// for the places a user owns.
//
// Create must rely on a store-level uniqueness constraint on email and
// report a violation as apperror.ErrConflict; there is no check-then-insert
// step, so concurrent signups with the same email cannot race.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)

	// AddPlace and RemovePlace maintain the user's owned-place set. They are
	// only meaningful inside the same transaction as the matching place
	// write; see TxRunner.
	AddPlace(ctx context.Context, userID, placeID string) error
	RemovePlace(ctx context.Context, userID, placeID string) error
	PlaceIDs(ctx context.Context, userID string) ([]string, error)
}

// PlaceRepository persists place records.
type PlaceRepository interface {
	Create(ctx context.Context, place *model.Place) error
	GetByID(ctx context.Context, id string) (*model.Place, error)
	ListByCreator(ctx context.Context, creatorID string) ([]model.Place, error)
	Update(ctx context.Context, place *model.Place) error
	Delete(ctx context.Context, id string) error
}

// RepositorySet groups the repositories bound to one storage backend, either
// the connection pool or a single open transaction.
type RepositorySet interface {
	Users() UserRepository
	Places() PlaceRepository
}

// TxRunner executes fn inside one atomic unit of work.
//
// Every repository call made through the RepositorySet handed to fn happens
// in the same transaction: if fn returns an error the whole unit rolls back,
// and none of its writes are ever visible to other readers. This is the only
// mechanism for mutations that touch both the places and users collections.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx RepositorySet) error) error
}

// Store is what the service layer is wired with: plain reads against the
// pool plus transactional multi-collection writes.
type Store interface {
	RepositorySet
	TxRunner
}
