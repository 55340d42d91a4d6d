package permissions

// Capability identifiers.
const (
	DashboardView = "dashboard.view"
	ProfileManage = "profile.manage"
	GISView       = "gis.view"

	NotificationRead = "notification.read"
	NotificationSend = "notification.send"

	ReportSubmit  = "report.submit"
	ReportViewOwn = "report.view_own"
	ReportViewAll = "report.view_all"
	ReportManage  = "report.manage"

	ProjectView   = "project.view"
	ProjectManage = "project.manage"

	UserView   = "user.view"
	UserManage = "user.manage"
	AuditView  = "audit.view"
)

func init() {
	MustRegister(
		&Capability{ID: DashboardView, Module: "core", Description: "Open the role dashboard"},
		&Capability{ID: ProfileManage, Module: "core", Description: "View and complete own profile"},
		&Capability{ID: GISView, Module: "gis", Description: "View the GIS map"},

		&Capability{ID: NotificationRead, Module: "notifications", Description: "Read own notifications"},
		&Capability{ID: NotificationSend, Module: "notifications", DependsOn: []string{UserView}, Description: "Send notifications to other users"},

		&Capability{ID: ReportSubmit, Module: "reports", Implies: []string{ReportViewOwn}, Description: "Submit issue reports"},
		&Capability{ID: ReportViewOwn, Module: "reports", Description: "View own issue reports"},
		&Capability{ID: ReportViewAll, Module: "reports", Description: "View all issue reports"},
		&Capability{ID: ReportManage, Module: "reports", DependsOn: []string{ReportViewAll}, Description: "Change issue report status"},

		&Capability{ID: ProjectView, Module: "projects", Description: "View infrastructure projects"},
		&Capability{ID: ProjectManage, Module: "projects", DependsOn: []string{ProjectView}, Description: "Create and update projects"},

		&Capability{ID: UserView, Module: "admin", Description: "List user accounts"},
		&Capability{ID: UserManage, Module: "admin", DependsOn: []string{UserView}, Description: "Change account status and role"},
		&Capability{ID: AuditView, Module: "admin", Description: "Read the audit log"},
	)
}
