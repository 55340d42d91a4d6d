package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lguportal/portal/internal/models"
)

func TestBuiltInCapabilitiesAreConsistent(t *testing.T) {
	require.NoError(t, Validate())
	require.Contains(t, IDs(), ReportManage)
}

func TestAllowsByRole(t *testing.T) {
	require.True(t, Allows(models.RoleAdmin, AuditView))
	require.True(t, Allows(models.RoleAdmin, UserManage))
	require.False(t, Allows(models.RoleLGUOfficer, UserManage))
	require.True(t, Allows(models.RoleEngineer, ProjectManage))
	require.False(t, Allows(models.RoleStaff, ReportManage))
	require.True(t, Allows(models.RoleStaff, ReportViewAll))
	require.False(t, Allows(models.RoleCitizen, ReportViewAll))
	require.True(t, Allows(models.RoleCitizen, ReportViewOwn), "implied by report.submit")
	require.False(t, Allows(models.Role("mayor"), DashboardView))
}

func TestEveryRoleGetsBaseline(t *testing.T) {
	for _, role := range models.AllRoles {
		caps := ForRole(role)
		for _, id := range baseline {
			require.Contains(t, caps, id, "role %s", role)
		}
	}
}

func TestForRoleIsSorted(t *testing.T) {
	caps := ForRole(models.RoleAdmin)
	require.IsNonDecreasing(t, caps)
}

func TestResolveDependencies(t *testing.T) {
	deps, err := ResolveDependencies(NotificationSend)
	require.NoError(t, err)
	require.Equal(t, []string{UserView}, deps)

	_, err = ResolveDependencies("nope")
	require.ErrorIs(t, err, ErrUnknownCapability)
}

func TestRegisterRejectsInvalidDefinitions(t *testing.T) {
	require.ErrorIs(t, Register(nil), errNilCapability)
	require.ErrorIs(t, Register(&Capability{ID: " "}), errEmptyID)
	require.ErrorIs(t, Register(&Capability{ID: "x.self", DependsOn: []string{"x.self"}}), errSelfDependency)
	require.ErrorIs(t, Register(&Capability{ID: DashboardView}), errDuplicateID)
}
