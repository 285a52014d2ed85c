package types

import "testing"

func TestRectEdges(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 100, Height: 50}

	if r.MaxX() != 110 {
		t.Errorf("Expected MaxX 110, got %f", r.MaxX())
	}
	if r.MaxY() != 70 {
		t.Errorf("Expected MaxY 70, got %f", r.MaxY())
	}
}

func TestRectEmpty(t *testing.T) {
	tests := []struct {
		rect  Rect
		empty bool
	}{
		{Rect{Width: 1, Height: 1}, false},
		{Rect{Width: 0, Height: 1}, true},
		{Rect{Width: 1, Height: 0}, true},
		{Rect{Width: -1, Height: 5}, true},
	}

	for _, tt := range tests {
		if got := tt.rect.Empty(); got != tt.empty {
			t.Errorf("Empty(%+v) = %v, expected %v", tt.rect, got, tt.empty)
		}
	}
}

func TestRectTranslateAndScale(t *testing.T) {
	r := Rect{X: 1, Y: 2, Width: 3, Height: 4}

	moved := r.Translate(10, -2)
	if moved != (Rect{X: 11, Y: 0, Width: 3, Height: 4}) {
		t.Errorf("Unexpected translated rect %+v", moved)
	}

	scaled := r.Scale(2)
	if scaled != (Rect{X: 2, Y: 4, Width: 6, Height: 8}) {
		t.Errorf("Unexpected scaled rect %+v", scaled)
	}
}

func TestSize(t *testing.T) {
	if (Size{Width: 0, Height: 10}).Valid() {
		t.Error("Expected zero width size to be invalid")
	}

	s := Size{Width: 640, Height: 480}
	if !s.Valid() {
		t.Error("Expected 640x480 to be valid")
	}
	if s.Rect() != (Rect{Width: 640, Height: 480}) {
		t.Errorf("Unexpected full rect %+v", s.Rect())
	}
}
