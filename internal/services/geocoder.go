package services

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"strings"
)

// Geocoder resolves a free-text address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lng float64, ok bool)
}

// HashGeocoder places an address at a deterministic pseudo-random point
// within Spread degrees of the centre. It does not consult any map data, so
// the same address always lands on the same marker.
type HashGeocoder struct {
	CenterLat float64
	CenterLng float64
	Spread    float64
}

// Geocode implements Geocoder. Blank addresses are not placed.
func (g HashGeocoder) Geocode(_ context.Context, address string) (float64, float64, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(address), " "))
	if key == "" {
		return 0, 0, false
	}

	h := fnv.New128a()
	_, _ = h.Write([]byte(key))
	sum := h.Sum(nil)

	latUnit := float64(binary.BigEndian.Uint64(sum[:8])) / float64(^uint64(0))
	lngUnit := float64(binary.BigEndian.Uint64(sum[8:])) / float64(^uint64(0))

	lat := g.CenterLat + (latUnit*2-1)*g.Spread
	lng := g.CenterLng + (lngUnit*2-1)*g.Spread
	return lat, lng, true
}
