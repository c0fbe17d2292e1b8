package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SlotSpec struct {
	Start     time.Time
	End       time.Time
	Price     float64
	Reduction *float64
	Type      string
}

func NewSlot(spec SlotSpec, ownerID uuid.UUID) (Slot, error) {
	if !spec.End.After(spec.Start) {
		return Slot{}, fmt.Errorf("%w: slot end must be after start", ErrInvalidInput)
	}
	if spec.Price < 0 {
		return Slot{}, fmt.Errorf("%w: negative price", ErrInvalidInput)
	}
	if spec.Reduction != nil && (*spec.Reduction < 0 || *spec.Reduction > spec.Price) {
		return Slot{}, fmt.Errorf("%w: reduction out of range", ErrInvalidInput)
	}
	return Slot{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Start:     spec.Start,
		End:       spec.End,
		Price:     spec.Price,
		Reduction: spec.Reduction,
		Type:      spec.Type,
	}, nil
}

// SlotPatch carries the updatable slot fields; nil means keep.
type SlotPatch struct {
	Start     *time.Time
	End       *time.Time
	Price     *float64
	Reduction *float64
	Type      *string
}

// Apply returns the slot with the patch folded in, revalidating the
// time-range invariant.
func (s Slot) Apply(p SlotPatch) (Slot, error) {
	if p.Start != nil {
		s.Start = *p.Start
	}
	if p.End != nil {
		s.End = *p.End
	}
	if p.Price != nil {
		s.Price = *p.Price
	}
	if p.Reduction != nil {
		s.Reduction = p.Reduction
	}
	if p.Type != nil {
		s.Type = *p.Type
	}
	if !s.End.After(s.Start) {
		return Slot{}, fmt.Errorf("%w: slot end must be after start", ErrInvalidInput)
	}
	return s, nil
}

// EffectivePrice is the slot price after any reduction.
func (s Slot) EffectivePrice() float64 {
	if s.Reduction != nil {
		return s.Price - *s.Reduction
	}
	return s.Price
}

// Overlaps reports whether two half-open intervals [Start, End) intersect.
func (s Slot) Overlaps(other Slot) bool {
	return s.Start.Before(other.End) && s.End.After(other.Start)
}
