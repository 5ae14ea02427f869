package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/places-api/internal/apperror"
	"github.com/sakif/places-api/internal/geocode"
	"github.com/sakif/places-api/internal/model"
	"github.com/sakif/places-api/internal/repository"
	"github.com/sakif/places-api/internal/storage"
)

// Validation constants for place fields.
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 2000
)

// PlaceService handles place CRUD and the cross-collection consistency
// around it: a place row and the creator's back-reference entry are written
// and removed inside one transaction, so neither ever exists without the
// other.
type PlaceService struct {
	store    repository.Store
	geocoder geocode.Geocoder
	assets   storage.ObjectStore
	logger   *slog.Logger
}

// NewPlaceService creates a PlaceService with all required dependencies.
func NewPlaceService(
	store repository.Store,
	geocoder geocode.Geocoder,
	assets storage.ObjectStore,
	logger *slog.Logger,
) *PlaceService {
	return &PlaceService{
		store:    store,
		geocoder: geocoder,
		assets:   assets,
		logger:   logger,
	}
}

// Create validates the input, geocodes the address, and stores the place.
//
// Ordering matters: geocoding happens before the transaction opens, so a
// failed lookup aborts creation with nothing written. Inside the transaction
// the place row goes in first, then the creator's back-reference; an error
// at either step (including an absent creator) rolls both back.
func (s *PlaceService) Create(ctx context.Context, title, description, address, image, creatorID string) (*model.Place, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	address = strings.TrimSpace(address)

	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if description == "" {
		return nil, apperror.ValidationFailed("description", "description is required")
	}
	if len(description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	if address == "" {
		return nil, apperror.ValidationFailed("address", "address is required")
	}

	coords, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("service/place: geocoding %q: %w", address, err)
	}

	place := &model.Place{
		Title:       title,
		Description: description,
		Address:     address,
		Location:    model.Location{Lat: coords.Lat, Lng: coords.Lng},
		Image:       image,
		CreatorID:   creatorID,
	}

	err = s.store.InTx(ctx, func(tx repository.RepositorySet) error {
		// Resolving the creator inside the transaction pins the row for the
		// duration of the unit of work.
		if _, err := tx.Users().GetByID(ctx, creatorID); err != nil {
			return err
		}
		if err := tx.Places().Create(ctx, place); err != nil {
			return err
		}
		return tx.Users().AddPlace(ctx, creatorID, place.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("service/place: creating place: %w", err)
	}

	s.logger.Info("place created",
		slog.String("id", place.ID),
		slog.String("creator", creatorID),
	)

	return place, nil
}

// GetByID retrieves a place by its ID.
func (s *PlaceService) GetByID(ctx context.Context, id string) (*model.Place, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "place ID is required")
	}
	return s.store.Places().GetByID(ctx, id)
}

// ListByUser returns the places a user created.
// An unknown user is a 404; a known user with no places is an empty list.
func (s *PlaceService) ListByUser(ctx context.Context, userID string) ([]model.Place, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}

	if _, err := s.store.Users().GetByID(ctx, userID); err != nil {
		return nil, err
	}

	places, err := s.store.Places().ListByCreator(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list places",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/place: listing places: %w", err)
	}
	return places, nil
}

// Update changes a place's title and description. Only the creator may do it.
func (s *PlaceService) Update(ctx context.Context, id, requesterID, title, description string) (*model.Place, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if description == "" {
		return nil, apperror.ValidationFailed("description", "description is required")
	}
	if len(description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	place, err := s.store.Places().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if place.CreatorID != requesterID {
		return nil, apperror.Forbidden("you are not allowed to edit this place")
	}

	place.Title = title
	place.Description = description

	if err := s.store.Places().Update(ctx, place); err != nil {
		return nil, fmt.Errorf("service/place: updating place %s: %w", id, err)
	}

	s.logger.Info("place updated", slog.String("id", place.ID))

	return place, nil
}

// Delete removes a place and the creator's back-reference to it in one
// transaction, then releases the stored image.
//
// The asset release happens only after the commit succeeds, and a failure
// there is logged rather than returned: the data deletion is already
// durable, and undoing it over a leftover file would be worse than the
// orphaned file.
func (s *PlaceService) Delete(ctx context.Context, id, requesterID string) error {
	place, err := s.store.Places().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if place.CreatorID != requesterID {
		return apperror.Forbidden("you are not allowed to delete this place")
	}

	err = s.store.InTx(ctx, func(tx repository.RepositorySet) error {
		if err := tx.Places().Delete(ctx, id); err != nil {
			return err
		}
		return tx.Users().RemovePlace(ctx, place.CreatorID, id)
	})
	if err != nil {
		return fmt.Errorf("service/place: deleting place %s: %w", id, err)
	}

	s.logger.Info("place deleted",
		slog.String("id", id),
		slog.String("creator", place.CreatorID),
	)

	if place.Image != "" {
		if err := s.assets.Remove(ctx, place.Image); err != nil {
			s.logger.Warn("failed to remove place image",
				slog.String("ref", place.Image),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}
