package database

import (
	"fmt"
	"math"

	"github.com/fixfusion/chat-server/internal/types"
)

// ValidationError indicates a message payload that was rejected before it
// reached storage. It is never wrapped around a storage failure, so callers
// can distinguish the two with errors.As.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validateLocation(loc *types.Location) error {
	if loc == nil {
		return &ValidationError{Field: "locationData", Reason: "required for location messages"}
	}
	if !isFinite(loc.Latitude) || loc.Latitude < -90 || loc.Latitude > 90 {
		return &ValidationError{Field: "latitude", Reason: "must be a finite number between -90 and 90"}
	}
	if !isFinite(loc.Longitude) || loc.Longitude < -180 || loc.Longitude > 180 {
		return &ValidationError{Field: "longitude", Reason: "must be a finite number between -180 and 180"}
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
