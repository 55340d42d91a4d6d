package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/internal/testutil"
)

func TestProjectLifecycle(t *testing.T) {
	f := newServiceFixture(t)
	projects, err := NewProjectService(f.db, f.audit, f.clock.Now)
	require.NoError(t, err)
	officer := testutil.MustCreateUser(t, f.db, "officer@example.com", testutil.WithRole(models.RoleLGUOfficer))
	ctx := asUser(officer)

	start := fixtureStart
	end := fixtureStart.AddDate(0, 6, 0)
	project, err := projects.Create(ctx, officer.ID, CreateProjectInput{
		Name:       "Road widening",
		Location:   "National Highway km 12",
		Budget:     2500000,
		Contractor: "ACME Builders",
		StartDate:  &start,
		EndDate:    &end,
	})
	require.NoError(t, err)
	require.Equal(t, models.ProjectPlanned, project.Status)

	f.clock.Advance(time.Minute)
	_, err = projects.Create(ctx, officer.ID, CreateProjectInput{Name: "Drainage", Location: "Purok 5", Status: "ongoing"})
	require.NoError(t, err)

	updated, err := projects.UpdateStatus(ctx, project.ID, "ongoing")
	require.NoError(t, err)
	require.Equal(t, models.ProjectOngoing, updated.Status)

	list, total, err := projects.List(context.Background(), "ongoing", 0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, "Drainage", list[0].Name)

	_, total, err = projects.List(context.Background(), "", 0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)

	require.Equal(t, int64(2), countRows(t, f.db, &models.AuditLog{}, "action = ?", AuditProjectCreated))
	require.Equal(t, int64(1), countRows(t, f.db, &models.AuditLog{}, "action = ?", AuditProjectStatus))
}

func TestProjectValidation(t *testing.T) {
	f := newServiceFixture(t)
	projects, err := NewProjectService(f.db, nil, f.clock.Now)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = projects.Create(ctx, 1, CreateProjectInput{Name: "No location"})
	require.Error(t, err)

	_, err = projects.Create(ctx, 1, CreateProjectInput{Name: "n", Location: "l", Budget: -1})
	require.Error(t, err)

	start := fixtureStart
	end := fixtureStart.Add(-time.Hour)
	_, err = projects.Create(ctx, 1, CreateProjectInput{Name: "n", Location: "l", StartDate: &start, EndDate: &end})
	require.Error(t, err)

	_, err = projects.Create(ctx, 1, CreateProjectInput{Name: "n", Location: "l", Status: "abandoned"})
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = projects.UpdateStatus(ctx, 99, "completed")
	require.ErrorIs(t, err, ErrNotFound)
}
