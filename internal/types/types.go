// README: Common identifier and geographic value objects used across modules.
package types

// ID is an opaque agent (driver) identifier. Immutable once tracking starts.
type ID string

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}
