// README: Road snapping via the Google Maps Roads API.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"beacon/internal/modules/tracking"
	"beacon/internal/types"
)

var _ tracking.RoadSnapper = (*RoadSnapService)(nil)

// RoadSnapService adjusts raw GPS fixes onto the road network so the
// dispatch map does not draw drivers inside buildings.
type RoadSnapService struct {
	client *maps.Client
}

// NewRoadSnapService creates a new RoadSnapService with the given API Key.
func NewRoadSnapService(apiKey string) (*RoadSnapService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RoadSnapService{client: client}, nil
}

// Snap returns the nearest on-road point for p. When the Roads API has
// no candidate (open water, unmapped areas) the raw point is returned
// unchanged rather than erroring, so a bad map tile never blocks an
// update.
func (s *RoadSnapService) Snap(ctx context.Context, p types.Point) (types.Point, error) {
	r := &maps.SnapToRoadRequest{
		Path: []maps.LatLng{{Lat: p.Lat, Lng: p.Lng}},
	}
	resp, err := s.client.SnapToRoad(ctx, r)
	if err != nil {
		return types.Point{}, fmt.Errorf("roads api error: %w", err)
	}
	if len(resp.SnappedPoints) == 0 {
		return p, nil
	}
	snapped := resp.SnappedPoints[0].Location
	return types.Point{Lat: snapped.Lat, Lng: snapped.Lng}, nil
}
