package app

import "github.com/lguportal/portal/internal/services"

// Geocoder returns the placeholder geocoder centred on the configured municipality.
func (c GISConfig) Geocoder() services.Geocoder {
	g := services.HashGeocoder{
		CenterLat: c.CenterLat,
		CenterLng: c.CenterLng,
		Spread:    c.Spread,
	}
	if g.CenterLat == 0 && g.CenterLng == 0 {
		g.CenterLat = services.DefaultGISCenterLat
		g.CenterLng = services.DefaultGISCenterLng
	}
	if g.Spread <= 0 {
		g.Spread = services.DefaultGISSpread
	}
	return g
}
