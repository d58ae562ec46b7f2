package mapmodel

import "errors"

// Structural-edit failures are all user-visible/recoverable per spec.md §7:
// the triggering command becomes a no-op and the map is left unchanged.
var (
	ErrEndpointsCoincide   = errors.New("mapmodel: connection endpoints coincide")
	ErrTooSteep            = errors.New("mapmodel: segment exceeds steepness limit")
	ErrDegenerateDerivative = errors.New("mapmodel: degenerate curve derivative")
	ErrNotFound            = errors.New("mapmodel: referenced entity not found")
	ErrLotOccupied         = errors.New("mapmodel: lot already has a building")
)
