package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/internal/testutil"
)

func newReportService(t *testing.T, f *serviceFixture) *ReportService {
	t.Helper()
	svc, err := NewReportService(f.db, f.audit, f.notifications, f.clock.Now)
	require.NoError(t, err)
	return svc
}

func TestReportSubmitAndListMine(t *testing.T) {
	f := newServiceFixture(t)
	reports := newReportService(t, f)
	alice := testutil.MustCreateUser(t, f.db, "alice@example.com")
	bob := testutil.MustCreateUser(t, f.db, "bob@example.com")

	first, err := reports.Submit(asUser(alice), alice.ID, SubmitReportInput{
		Category: "Road",
		Title:    "Pothole on Rizal Ave",
		Location: "Rizal Ave corner Mabini St",
	})
	require.NoError(t, err)
	require.Equal(t, models.ReportPending, first.Status)
	require.Equal(t, "road", first.Category)
	require.Equal(t, "medium", first.Severity)

	f.clock.Advance(time.Minute)
	_, err = reports.Submit(asUser(alice), alice.ID, SubmitReportInput{Category: "drainage", Title: "Clogged drain", Location: "Purok 3", Severity: "HIGH"})
	require.NoError(t, err)
	_, err = reports.Submit(asUser(bob), bob.ID, SubmitReportInput{Category: "road", Title: "Cracks", Location: "Bonifacio St"})
	require.NoError(t, err)

	mine, total, err := reports.ListMine(context.Background(), alice.ID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, "Clogged drain", mine[0].Title)

	all, total, err := reports.List(context.Background(), ReportListOptions{Category: "road"})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, all, 2)

	count, err := f.notifications.UnreadCount(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	require.Equal(t, int64(3), countRows(t, f.db, &models.AuditLog{}, "action = ?", AuditReportSubmitted))
}

func TestReportSubmitValidation(t *testing.T) {
	f := newServiceFixture(t)
	reports := newReportService(t, f)
	user := testutil.MustCreateUser(t, f.db, "citizen@example.com")

	_, err := reports.Submit(context.Background(), user.ID, SubmitReportInput{Category: "road", Title: "No location"})
	require.Error(t, err)

	_, err = reports.Submit(context.Background(), user.ID, SubmitReportInput{Category: "road", Title: "t", Location: "l", Severity: "apocalyptic"})
	require.Error(t, err)

	_, err = reports.Submit(context.Background(), 0, SubmitReportInput{Category: "road", Title: "t", Location: "l"})
	require.Error(t, err)
}

func TestReportUpdateStatusNotifiesReporter(t *testing.T) {
	f := newServiceFixture(t)
	reports := newReportService(t, f)
	citizen := testutil.MustCreateUser(t, f.db, "citizen@example.com")
	engineer := testutil.MustCreateUser(t, f.db, "eng@example.com", testutil.WithRole(models.RoleEngineer))

	report, err := reports.Submit(context.Background(), citizen.ID, SubmitReportInput{Category: "road", Title: "Pothole", Location: "Main St"})
	require.NoError(t, err)
	_, err = f.notifications.MarkAllRead(context.Background(), citizen.ID)
	require.NoError(t, err)

	updated, err := reports.UpdateStatus(asUser(engineer), report.ID, "resolved", "Patched with asphalt", &engineer.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReportResolved, updated.Status)
	require.Equal(t, "Patched with asphalt", updated.Remarks)
	require.NotNil(t, updated.AssignedToID)

	unread, err := f.notifications.UnreadForUser(context.Background(), citizen.ID, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, models.NotificationSuccess, unread[0].Type)
	require.Contains(t, unread[0].Message, "Patched with asphalt")

	_, err = reports.UpdateStatus(asUser(engineer), report.ID, "rejected", "", nil)
	require.NoError(t, err)
	unread, err = f.notifications.UnreadForUser(context.Background(), citizen.ID, 10)
	require.NoError(t, err)
	require.Equal(t, models.NotificationWarning, unread[0].Type)

	require.Equal(t, int64(2), countRows(t, f.db, &models.AuditLog{}, "action = ? AND user_id = ?", AuditReportStatus, engineer.ID))

	_, err = reports.UpdateStatus(asUser(engineer), report.ID, "closed", "", nil)
	require.ErrorIs(t, err, ErrInvalidStatus)
	_, err = reports.UpdateStatus(asUser(engineer), 4242, "resolved", "", nil)
	require.ErrorIs(t, err, ErrNotFound)
}
