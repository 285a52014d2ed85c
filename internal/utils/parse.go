package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/menta2k/photocrop/pkg/types"
)

// ParseRect parses "x,y,w,h"
func ParseRect(s string) (types.Rect, error) {
	v, err := parseFloats(s, 4)
	if err != nil {
		return types.Rect{}, fmt.Errorf("invalid rect %q (want x,y,w,h): %w", s, err)
	}
	return types.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

// ParsePoint parses "x,y"
func ParsePoint(s string) (types.Point, error) {
	v, err := parseFloats(s, 2)
	if err != nil {
		return types.Point{}, fmt.Errorf("invalid point %q (want x,y): %w", s, err)
	}
	return types.Point{X: v[0], Y: v[1]}, nil
}

// ParseSize parses "WxH" with positive integer dimensions
func ParseSize(s string) (types.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return types.Size{}, fmt.Errorf("invalid size %q (want WxH)", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return types.Size{}, fmt.Errorf("invalid size %q: %w", s, err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return types.Size{}, fmt.Errorf("invalid size %q: %w", s, err)
	}

	size := types.Size{Width: width, Height: height}
	if !size.Valid() {
		return types.Size{}, fmt.Errorf("invalid size %q: dimensions must be positive", s)
	}
	return size, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
