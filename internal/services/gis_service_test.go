package services

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/internal/testutil"
)

func TestHashGeocoderIsDeterministicAndBounded(t *testing.T) {
	g := HashGeocoder{CenterLat: DefaultGISCenterLat, CenterLng: DefaultGISCenterLng, Spread: DefaultGISSpread}
	ctx := context.Background()

	lat1, lng1, ok := g.Geocode(ctx, "Rizal Ave corner Mabini St")
	require.True(t, ok)
	lat2, lng2, ok := g.Geocode(ctx, "  rizal ave   CORNER mabini st ")
	require.True(t, ok)
	require.Equal(t, lat1, lat2)
	require.Equal(t, lng1, lng2)

	require.LessOrEqual(t, math.Abs(lat1-DefaultGISCenterLat), DefaultGISSpread)
	require.LessOrEqual(t, math.Abs(lng1-DefaultGISCenterLng), DefaultGISSpread)

	lat3, _, ok := g.Geocode(ctx, "Bonifacio St")
	require.True(t, ok)
	require.NotEqual(t, lat1, lat3)

	_, _, ok = g.Geocode(ctx, "   ")
	require.False(t, ok)
}

func TestGISFeaturesFilters(t *testing.T) {
	f := newServiceFixture(t)
	citizen := testutil.MustCreateUser(t, f.db, "citizen@example.com")

	seedReports := []models.IssueReport{
		{ReporterID: citizen.ID, Category: "road", Title: "pending", Location: "A St", Status: models.ReportPending},
		{ReporterID: citizen.ID, Category: "road", Title: "working", Location: "B St", Status: models.ReportInProgress},
		{ReporterID: citizen.ID, Category: "road", Title: "fixed", Location: "C St", Status: models.ReportResolved},
		{ReporterID: citizen.ID, Category: "road", Title: "spam", Location: "D St", Status: models.ReportRejected},
	}
	require.NoError(t, f.db.Create(&seedReports).Error)
	seedProjects := []models.Project{
		{Name: "planned", Location: "E St", Status: models.ProjectPlanned},
		{Name: "ongoing", Location: "F St", Status: models.ProjectOngoing},
		{Name: "done", Location: "G St", Status: models.ProjectCompleted},
	}
	require.NoError(t, f.db.Create(&seedProjects).Error)

	gis, err := NewGISService(f.db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	cases := map[string][]string{
		"":          {"pending", "working", "fixed", "planned", "ongoing", "done"},
		"all":       {"pending", "working", "fixed", "planned", "ongoing", "done"},
		"issues":    {"pending", "working"},
		"projects":  {"planned", "ongoing"},
		"completed": {"fixed", "done"},
	}
	for filter, want := range cases {
		collection, err := gis.Features(ctx, filter)
		require.NoError(t, err, filter)
		require.Equal(t, "FeatureCollection", collection.Type)

		var got []string
		for _, feature := range collection.Features {
			require.Equal(t, "Point", feature.Geometry.Type)
			got = append(got, feature.Properties["title"].(string))
		}
		require.ElementsMatch(t, want, got, filter)

		require.Equal(t, len(want), collection.Statistics.TotalMarkers)
		require.Equal(t, int64(2), collection.Statistics.ActiveIssues)
		require.Equal(t, int64(1), collection.Statistics.ConstructionZones)
		require.Equal(t, int64(2), collection.Statistics.CompletedWork)
	}

	_, err = gis.Features(ctx, "everything")
	require.Error(t, err)
}

type fixedGeocoder struct{}

func (fixedGeocoder) Geocode(_ context.Context, address string) (float64, float64, bool) {
	if address == "nowhere" {
		return 0, 0, false
	}
	return 1.5, 2.5, true
}

func TestGISFeaturesUseGeocoderAndSkipUnplaced(t *testing.T) {
	f := newServiceFixture(t)
	require.NoError(t, f.db.Create(&[]models.Project{
		{Name: "placed", Location: "somewhere", Status: models.ProjectOngoing},
		{Name: "lost", Location: "nowhere", Status: models.ProjectOngoing},
	}).Error)

	gis, err := NewGISService(f.db, fixedGeocoder{})
	require.NoError(t, err)

	collection, err := gis.Features(context.Background(), "projects")
	require.NoError(t, err)
	require.Len(t, collection.Features, 1)
	require.Equal(t, [2]float64{2.5, 1.5}, collection.Features[0].Geometry.Coordinates)
	require.Equal(t, 1, collection.Statistics.TotalMarkers)
}
