// README: Agent profile: availability and device token, persisted across sessions.
package profile

import (
	"time"

	"beacon/internal/types"
)

type Profile struct {
	AgentID     types.ID
	Available   bool
	DeviceToken string
	UpdatedAt   time.Time
}
