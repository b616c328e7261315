package command

import (
	"errors"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/catalog"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ranking"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/roster"
)

// Reason is a stable machine-readable failure code for the adapter to turn
// into a message.
type Reason string

const (
	ReasonNotRegistered      Reason = "not_registered"
	ReasonUnknownCode        Reason = "unknown_code"
	ReasonAlreadyRedeemed    Reason = "already_redeemed"
	ReasonNotFoundTarget     Reason = "not_found_target"
	ReasonOutOfRange         Reason = "points_out_of_range"
	ReasonStorageUnavailable Reason = "storage_unavailable"
	ReasonUnknownCommand     Reason = "unknown_command"
	ReasonForbidden          Reason = "forbidden"
	ReasonBadArgument        Reason = "bad_argument"
	ReasonNotConfigured      Reason = "not_configured"
	ReasonInternal           Reason = "internal"
)

// Expected reports whether the reason is an ordinary business or user
// outcome, as opposed to a failure worth logging.
func (r Reason) Expected() bool {
	switch r {
	case ReasonStorageUnavailable, ReasonInternal:
		return false
	}
	return true
}

// ReasonFor classifies an error returned by Dispatch.
func ReasonFor(err error) Reason {
	switch {
	case errors.Is(err, ledger.ErrStorageUnavailable):
		return ReasonStorageUnavailable
	case errors.Is(err, ledger.ErrNotRegistered):
		return ReasonNotRegistered
	case errors.Is(err, ledger.ErrUnknownCode):
		return ReasonUnknownCode
	case errors.Is(err, ledger.ErrAlreadyRedeemed):
		return ReasonAlreadyRedeemed
	case errors.Is(err, ledger.ErrNotFoundTarget):
		return ReasonNotFoundTarget
	case errors.Is(err, ledger.ErrPointsOutOfRange):
		return ReasonOutOfRange
	case errors.Is(err, ErrUnknownCommand):
		return ReasonUnknownCommand
	case errors.Is(err, ErrForbidden):
		return ReasonForbidden
	case errors.Is(err, ErrBadArgument), errors.Is(err, ranking.ErrInvalidPage), errors.Is(err, catalog.ErrInvalidRow):
		return ReasonBadArgument
	case errors.Is(err, catalog.ErrNoSource), errors.Is(err, roster.ErrNoSource):
		return ReasonNotConfigured
	default:
		return ReasonInternal
	}
}
