package gateway

import (
	"errors"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/guest"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
)

var (
	// ErrInvalidOperation is returned for methods and properties outside the
	// allow-lists.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrFeatureDisabled is returned when the sender has guest embedding
	// turned off.
	ErrFeatureDisabled = errors.New("guest embedding is disabled")
)

// Error kinds reported on the wire.
const (
	KindNotFound         = "NotFound"
	KindAccessDenied     = "AccessDenied"
	KindInvalidOperation = "InvalidOperation"
	KindFeatureDisabled  = "FeatureDisabled"
	KindInternal         = "Internal"
)

// Kind maps err onto its wire error kind.
func Kind(err error) string {
	switch {
	case errors.Is(err, guest.ErrNotFound), errors.Is(err, surface.ErrDestroyed):
		return KindNotFound
	case errors.Is(err, guest.ErrAccessDenied):
		return KindAccessDenied
	case errors.Is(err, ErrInvalidOperation), errors.Is(err, surface.ErrUnsupported),
		errors.Is(err, surface.ErrInvalidArgument):
		return KindInvalidOperation
	case errors.Is(err, ErrFeatureDisabled):
		return KindFeatureDisabled
	default:
		return KindInternal
	}
}
