// README: Profile service: availability reads/writes behind one persistence boundary.
package profile

import (
	"context"
	"errors"

	"beacon/internal/modules/tracking"
	"beacon/internal/types"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, agentID types.ID) (Profile, error) {
	return s.store.Get(ctx, agentID)
}

func (s *Service) SetAvailability(ctx context.Context, agentID types.ID, available bool) (Profile, error) {
	if err := s.store.SetAvailability(ctx, agentID, available); err != nil {
		return Profile{}, err
	}
	return s.store.Get(ctx, agentID)
}

// SetDeviceToken records the push token the dispatch backend notifies
// this agent's device through.
func (s *Service) SetDeviceToken(ctx context.Context, agentID types.ID, token string) (Profile, error) {
	if err := s.store.SetDeviceToken(ctx, agentID, token); err != nil {
		return Profile{}, err
	}
	return s.store.Get(ctx, agentID)
}

// Mode implements tracking.ProfileReader. An absent profile reads as
// unavailable rather than erroring, so a fresh agent still gets coarse
// presence tracking.
func (s *Service) Mode(ctx context.Context, agentID types.ID) (tracking.OperatingMode, error) {
	p, err := s.store.Get(ctx, agentID)
	if errors.Is(err, ErrNotFound) {
		return tracking.ModeUnavailable, nil
	}
	if err != nil {
		return tracking.ModeUnavailable, err
	}
	return tracking.ModeFor(p.Available), nil
}
