package permissions

import (
	"sort"

	"github.com/lguportal/portal/internal/models"
)

var baseline = []string{DashboardView, ProfileManage, GISView, NotificationRead, ProjectView}

var roleGrants = map[models.Role][]string{
	models.RoleAdmin: {
		ReportViewAll, ReportManage, ProjectManage,
		UserView, UserManage, AuditView, NotificationSend,
	},
	models.RoleLGUOfficer: {
		ReportViewAll, ReportManage, ProjectManage, UserView, NotificationSend,
	},
	models.RoleEngineer:   {ReportViewAll, ReportManage, ProjectManage},
	models.RoleSupervisor: {ReportViewAll, ReportManage},
	models.RoleStaff:      {ReportViewAll},
	models.RoleCitizen:    {ReportSubmit},
}

// ForRole returns the sorted capability set granted to role. Unknown roles
// receive nothing. Capabilities whose dependencies are not all granted are
// excluded.
func ForRole(role models.Role) []string {
	granted := grantedSet(role)
	ids := make([]string, 0, len(granted))
	for id := range granted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Allows reports whether role holds capability.
func Allows(role models.Role, capability string) bool {
	_, ok := grantedSet(role)[capability]
	return ok
}

func grantedSet(role models.Role) map[string]struct{} {
	extra, known := roleGrants[role]
	if !known {
		return map[string]struct{}{}
	}

	ids := append(append([]string(nil), baseline...), extra...)
	expanded, err := expandImplied(ids)
	if err != nil {
		return map[string]struct{}{}
	}

	out := make(map[string]struct{}, len(expanded))
	for id := range expanded {
		deps, err := ResolveDependencies(id)
		if err != nil {
			continue
		}
		satisfied := true
		for _, dep := range deps {
			if _, ok := expanded[dep]; !ok {
				satisfied = false
				break
			}
		}
		if satisfied {
			out[id] = struct{}{}
		}
	}
	return out
}
