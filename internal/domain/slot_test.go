package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewSlotRejectsInvertedRange(t *testing.T) {
	start := time.Now().Add(time.Hour)
	_, err := NewSlot(SlotSpec{Start: start, End: start.Add(-30 * time.Minute), Price: 50}, uuid.New())
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	_, err = NewSlot(SlotSpec{Start: start, End: start, Price: 50}, uuid.New())
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero-length slot: expected ErrInvalidInput, got %v", err)
	}
}

func TestNewSlotRejectsBadPrice(t *testing.T) {
	start := time.Now().Add(time.Hour)
	end := start.Add(time.Hour)

	_, err := NewSlot(SlotSpec{Start: start, End: end, Price: -1}, uuid.New())
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative price: expected ErrInvalidInput, got %v", err)
	}

	reduction := 60.0
	_, err = NewSlot(SlotSpec{Start: start, End: end, Price: 50, Reduction: &reduction}, uuid.New())
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("reduction above price: expected ErrInvalidInput, got %v", err)
	}
}

func TestSlotApplyRevalidates(t *testing.T) {
	start := time.Now().Add(time.Hour)
	slot, err := NewSlot(SlotSpec{Start: start, End: start.Add(time.Hour), Price: 50}, uuid.New())
	if err != nil {
		t.Fatal(err)
	}

	badEnd := start.Add(-time.Minute)
	_, err = slot.Apply(SlotPatch{End: &badEnd})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	newPrice := 80.0
	updated, err := slot.Apply(SlotPatch{Price: &newPrice})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Price != 80.0 {
		t.Errorf("expected price 80, got %f", updated.Price)
	}
	if updated.Start != slot.Start {
		t.Error("start should be unchanged")
	}
}

func TestSlotOverlaps(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	a := Slot{Start: base, End: base.Add(time.Hour)}

	cases := []struct {
		name string
		b    Slot
		want bool
	}{
		{"identical", Slot{Start: base, End: base.Add(time.Hour)}, true},
		{"contained", Slot{Start: base.Add(15 * time.Minute), End: base.Add(30 * time.Minute)}, true},
		{"partial", Slot{Start: base.Add(30 * time.Minute), End: base.Add(90 * time.Minute)}, true},
		{"adjacent after", Slot{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)}, false},
		{"adjacent before", Slot{Start: base.Add(-time.Hour), End: base}, false},
		{"disjoint", Slot{Start: base.Add(3 * time.Hour), End: base.Add(4 * time.Hour)}, false},
	}
	for _, tc := range cases {
		if got := a.Overlaps(tc.b); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestEffectivePrice(t *testing.T) {
	s := Slot{Price: 100}
	if s.EffectivePrice() != 100 {
		t.Errorf("expected 100, got %f", s.EffectivePrice())
	}
	reduction := 25.0
	s.Reduction = &reduction
	if s.EffectivePrice() != 75 {
		t.Errorf("expected 75, got %f", s.EffectivePrice())
	}
}
