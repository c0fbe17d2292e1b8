package slots

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/observability"
)

type Store interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	CreateSlot(ctx context.Context, tx pgx.Tx, slot domain.Slot) error
	OwnerHasOverlap(ctx context.Context, tx pgx.Tx, ownerID, exclude uuid.UUID, start, end time.Time) (bool, error)
	GetUnbookedSlotForOwner(ctx context.Context, tx pgx.Tx, slotID, ownerID uuid.UUID) (domain.Slot, error)
	UpdateSlot(ctx context.Context, tx pgx.Tx, slot domain.Slot) error
	DeleteSlot(ctx context.Context, tx pgx.Tx, slotID, ownerID uuid.UUID, now time.Time) error
	FindSlotsByOwner(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]domain.Slot, error)
	FindAvailableOrOwnedByConsumer(ctx context.Context, consumerID uuid.UUID, from, to time.Time, now time.Time) ([]domain.Slot, error)
}

// Service owns the slot inventory.
type Service struct {
	store  Store
	logger observability.Logger
}

func NewService(store Store, logger observability.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// AddSlot creates a slot for the owner. Slots overlapping another slot of
// the same owner are rejected.
func (s *Service) AddSlot(ctx context.Context, spec domain.SlotSpec, ownerID uuid.UUID) (domain.Slot, error) {
	slot, err := domain.NewSlot(spec, ownerID)
	if err != nil {
		return domain.Slot{}, err
	}

	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		overlap, err := s.store.OwnerHasOverlap(ctx, tx, ownerID, slot.ID, slot.Start, slot.End)
		if err != nil {
			return err
		}
		if overlap {
			return fmt.Errorf("%w: owner already has a slot in this range", domain.ErrConflict)
		}
		return s.store.CreateSlot(ctx, tx, slot)
	})
	if err != nil {
		return domain.Slot{}, err
	}
	return slot, nil
}

// UpdateSlot patches an unclaimed slot owned by the caller.
func (s *Service) UpdateSlot(ctx context.Context, slotID, ownerID uuid.UUID, patch domain.SlotPatch) (domain.Slot, error) {
	var updated domain.Slot
	err := s.store.WithTx(ctx, func(tx pgx.Tx) error {
		existing, err := s.store.GetUnbookedSlotForOwner(ctx, tx, slotID, ownerID)
		if err != nil {
			return err
		}
		updated, err = existing.Apply(patch)
		if err != nil {
			return err
		}
		overlap, err := s.store.OwnerHasOverlap(ctx, tx, ownerID, slotID, updated.Start, updated.End)
		if err != nil {
			return err
		}
		if overlap {
			return fmt.Errorf("%w: owner already has a slot in this range", domain.ErrConflict)
		}
		return s.store.UpdateSlot(ctx, tx, updated)
	})
	if err != nil {
		return domain.Slot{}, err
	}
	return updated, nil
}

// DeleteSlot removes a slot that is unbooked and has not started yet.
func (s *Service) DeleteSlot(ctx context.Context, slotID, ownerID uuid.UUID) error {
	return s.store.WithTx(ctx, func(tx pgx.Tx) error {
		return s.store.DeleteSlot(ctx, tx, slotID, ownerID, time.Now().UTC())
	})
}

func (s *Service) FindByOwner(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]domain.Slot, error) {
	return s.store.FindSlotsByOwner(ctx, ownerID, from, to)
}

// FindAvailableOrOwnedByConsumer lists open future inventory plus the
// consumer's own reservations.
func (s *Service) FindAvailableOrOwnedByConsumer(ctx context.Context, consumerID uuid.UUID, from, to time.Time) ([]domain.Slot, error) {
	return s.store.FindAvailableOrOwnedByConsumer(ctx, consumerID, from, to, time.Now().UTC())
}
