package tracking

import (
	"testing"
)

func TestParamsFor_ModeMapping(t *testing.T) {
	cfg := testCfg()

	tests := []struct {
		name string
		mode OperatingMode
		want TrackingParameters
	}{
		{
			name: "available: denser, more precise",
			mode: ModeAvailable,
			want: TrackingParameters{
				Tier:         TierBalanced,
				MinInterval:  cfg.AvailableInterval,
				MinDistanceM: cfg.AvailableMinDistanceM,
			},
		},
		{
			name: "unavailable: coarse presence only",
			mode: ModeUnavailable,
			want: TrackingParameters{
				Tier:         TierLow,
				MinInterval:  cfg.UnavailableInterval,
				MinDistanceM: cfg.UnavailableMinDistanceM,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParamsFor(tt.mode, cfg)
			if got != tt.want {
				t.Errorf("ParamsFor(%s) = %+v, want %+v", tt.mode, got, tt.want)
			}
		})
	}

	available := ParamsFor(ModeAvailable, cfg)
	unavailable := ParamsFor(ModeUnavailable, cfg)
	if available.MinInterval >= unavailable.MinInterval {
		t.Error("available agents must be sampled more often than unavailable ones")
	}
	if available.Tier <= unavailable.Tier {
		t.Error("available agents must be sampled more precisely than unavailable ones")
	}
}

func TestParamsFor_Deterministic(t *testing.T) {
	cfg := testCfg()
	for i := 0; i < 100; i++ {
		if ParamsFor(ModeAvailable, cfg) != ParamsFor(ModeAvailable, cfg) {
			t.Fatal("ParamsFor is not deterministic")
		}
	}
}

func TestAccuracyTier_DegradeLadder(t *testing.T) {
	if TierHigh.Degrade() != TierBalanced {
		t.Error("high should degrade to balanced")
	}
	if TierBalanced.Degrade() != TierLow {
		t.Error("balanced should degrade to low")
	}
	if TierLow.Degrade() != TierLow {
		t.Error("low must stay low")
	}
}

func TestAccuracyTier_Order(t *testing.T) {
	if !(TierHigh > TierBalanced && TierBalanced > TierLow) {
		t.Error("tier order must be high > balanced > low")
	}
}
