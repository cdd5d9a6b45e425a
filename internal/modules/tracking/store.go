// README: Fallback store backed by Redis (last-known fix + GEO index) and Postgres snapshots.
package tracking

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"beacon/internal/types"
)

const (
	lastLocationKeyFmt = "agent:%s:last_location"
	driverGeoKey       = "geo:drivers"
)

// saveLastKnown writes the fix only if it is newer than the stored one.
// Compare-and-set on captured_at_ms keeps LastKnownLocation monotonic
// even when invocations from different triggers interleave. The GEO
// mirror is updated inside the same script so a slow writer that lost
// the CAS can never overwrite the index with an older point.
var saveLastKnownScript = redis.NewScript(`
local ts = redis.call('HGET', KEYS[1], 'captured_at_ms')
if ts and tonumber(ts) >= tonumber(ARGV[3]) then
  return 0
end
redis.call('HSET', KEYS[1], 'lat', ARGV[1], 'lng', ARGV[2], 'captured_at_ms', ARGV[3])
redis.call('GEOADD', KEYS[2], ARGV[2], ARGV[1], ARGV[4])
return 1
`)

// Store is the single persistence boundary for the last-known fix. The
// Redis hash is authoritative; the GEO index mirrors it for dispatch-side
// locality queries, and Postgres keeps the append-only snapshot history.
type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, redis *redis.Client) *Store {
	return &Store{db: db, redis: redis}
}

func (s *Store) SaveLastKnown(ctx context.Context, agentID types.ID, sample Sample) error {
	key := lastLocationKey(agentID)
	_, err := saveLastKnownScript.Run(ctx, s.redis, []string{key, driverGeoKey},
		formatCoord(sample.Point.Lat),
		formatCoord(sample.Point.Lng),
		strconv.FormatInt(sample.CapturedAt.UnixMilli(), 10),
		string(agentID),
	).Int()
	if err != nil {
		return fmt.Errorf("save last known: %w", err)
	}
	return nil
}

func (s *Store) ReadLastKnown(ctx context.Context, agentID types.ID) (Sample, bool, error) {
	fields, err := s.redis.HGetAll(ctx, lastLocationKey(agentID)).Result()
	if err != nil {
		return Sample{}, false, fmt.Errorf("read last known: %w", err)
	}
	if len(fields) == 0 {
		return Sample{}, false, nil
	}
	lat, err := strconv.ParseFloat(fields["lat"], 64)
	if err != nil {
		return Sample{}, false, fmt.Errorf("parse lat: %w", err)
	}
	lng, err := strconv.ParseFloat(fields["lng"], 64)
	if err != nil {
		return Sample{}, false, fmt.Errorf("parse lng: %w", err)
	}
	ms, err := strconv.ParseInt(fields["captured_at_ms"], 10, 64)
	if err != nil {
		return Sample{}, false, fmt.Errorf("parse captured_at_ms: %w", err)
	}
	return Sample{
		Point:      types.Point{Lat: lat, Lng: lng},
		CapturedAt: time.UnixMilli(ms),
	}, true, nil
}

func (s *Store) AppendSnapshot(ctx context.Context, snap Snapshot) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO location_snapshots (agent_id, lat, lng, tier, stale, captured_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(snap.AgentID), snap.Point.Lat, snap.Point.Lng,
		snap.Tier.String(), snap.Stale, snap.CapturedAt, snap.RecordedAt,
	)
	return err
}

func lastLocationKey(agentID types.ID) string {
	return fmt.Sprintf(lastLocationKeyFmt, string(agentID))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
