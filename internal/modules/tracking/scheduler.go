// README: Adaptive scheduler deriving tracking parameters from the operating mode.
package tracking

import (
	"time"

	"beacon/internal/config"
)

// ParamsFor derives the acquisition parameters for a mode. Pure: same
// mode and config always yield the same parameters.
//
// Available agents need fresh, dense samples so dispatch can match them;
// unavailable agents only need coarse presence data, trading freshness
// for battery.
func ParamsFor(mode OperatingMode, cfg config.TrackingConfig) TrackingParameters {
	if mode == ModeAvailable {
		return TrackingParameters{
			Tier:         TierBalanced,
			MinInterval:  cfg.AvailableInterval,
			MinDistanceM: cfg.AvailableMinDistanceM,
		}
	}
	return TrackingParameters{
		Tier:         TierLow,
		MinInterval:  cfg.UnavailableInterval,
		MinDistanceM: cfg.UnavailableMinDistanceM,
	}
}

// TimeoutFor returns the per-attempt acquisition timeout for a tier.
func TimeoutFor(tier AccuracyTier, cfg config.TrackingConfig) time.Duration {
	switch tier {
	case TierHigh:
		return cfg.AcquireTimeoutHigh
	case TierBalanced:
		return cfg.AcquireTimeoutBalanced
	default:
		return cfg.AcquireTimeoutLow
	}
}
