// README: Profile store backed by Postgres.
package profile

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"beacon/internal/types"
)

var ErrNotFound = errors.New("profile not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, agentID types.ID) (Profile, error) {
	var p Profile
	var id string
	err := s.db.QueryRow(ctx, `
		SELECT agent_id, available, device_token, updated_at
		FROM agent_profiles WHERE agent_id = $1`, string(agentID),
	).Scan(&id, &p.Available, &p.DeviceToken, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	p.AgentID = types.ID(id)
	return p, nil
}

func (s *Store) SetAvailability(ctx context.Context, agentID types.ID, available bool) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO agent_profiles (agent_id, available, device_token, updated_at)
		VALUES ($1, $2, '', $3)
		ON CONFLICT (agent_id)
		DO UPDATE SET available = EXCLUDED.available, updated_at = EXCLUDED.updated_at`,
		string(agentID), available, time.Now(),
	)
	return err
}

func (s *Store) SetDeviceToken(ctx context.Context, agentID types.ID, token string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO agent_profiles (agent_id, available, device_token, updated_at)
		VALUES ($1, false, $2, $3)
		ON CONFLICT (agent_id)
		DO UPDATE SET device_token = EXCLUDED.device_token, updated_at = EXCLUDED.updated_at`,
		string(agentID), token, time.Now(),
	)
	return err
}
