package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campusregistry/registrar-api/internal/middleware"
	"github.com/campusregistry/registrar-api/internal/models"
	"github.com/campusregistry/registrar-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Calendar      *CalendarHandler
	Departments   *DepartmentHandler
	Faculty       *FacultyHandler
	Students      *StudentHandler
	Courses       *CourseHandler
	Offerings     *OfferingHandler
	Enrollments   *EnrollmentHandler
	Grades        *GradeHandler
	Evaluations   *EvaluationHandler
	Announcements *AnnouncementHandler
	Events        *EventHandler
	Notifications *NotificationHandler
	Feedback      *FeedbackHandler
	Documents     *DocumentHandler
	Metrics       *MetricsHandler
}

// AuditFunc builds an audit-trail middleware for a given action/resource pair.
type AuditFunc func(action, resource string) gin.HandlerFunc

// RegisterRoutes attaches all API routes under the given prefix. audit may be
// nil, in which case sensitive routes skip the audit trail.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService, audit AuditFunc) {
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar)
	teaching := middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar, models.RoleFaculty)
	anyUser := middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar, models.RoleFaculty, models.RoleStudent)

	if audit == nil {
		audit = func(string, string) gin.HandlerFunc {
			return func(c *gin.Context) { c.Next() }
		}
	}

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", middleware.JWT(auth), h.Auth.Logout)
		authGroup.POST("/change-password", middleware.JWT(auth), h.Auth.ChangePassword)
		authGroup.GET("/me", middleware.JWT(auth), h.Auth.Me)
	}

	// Public browse surface: catalog, published events and public notices.
	api.GET("/announcements", middleware.OptionalJWT(auth), h.Announcements.List)
	api.GET("/announcements/:id", middleware.OptionalJWT(auth), h.Announcements.Get)
	api.GET("/events", middleware.OptionalJWT(auth), h.Events.List)
	api.GET("/events/:id", middleware.OptionalJWT(auth), h.Events.Get)
	api.GET("/documents/download", h.Documents.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(auth))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	users := protected.Group("/users")
	{
		users.GET("", adminOnly, h.Users.List)
		// Any authenticated user may fetch their own record.
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.SelfRole), h.Users.Get)
		users.POST("", adminOnly, audit("create", "user"), h.Users.Create)
		users.PUT("/:id", adminOnly, audit("update", "user"), h.Users.Update)
		users.DELETE("/:id", adminOnly, audit("deactivate", "user"), h.Users.Deactivate)
	}

	years := protected.Group("/academic-years")
	{
		years.GET("", anyUser, h.Calendar.ListYears)
		years.GET("/:id", anyUser, h.Calendar.GetYear)
		years.POST("", staff, h.Calendar.CreateYear)
		years.PUT("/:id", staff, h.Calendar.UpdateYear)
		years.DELETE("/:id", staff, h.Calendar.DeleteYear)
		years.POST("/:id/activate", staff, audit("activate", "academic_year"), h.Calendar.ActivateYear)
	}

	semesters := protected.Group("/semesters")
	{
		semesters.GET("", anyUser, h.Calendar.ListSemesters)
		semesters.GET("/current", anyUser, h.Calendar.CurrentSemester)
		semesters.GET("/:id", anyUser, h.Calendar.GetSemester)
		semesters.POST("", staff, h.Calendar.CreateSemester)
		semesters.PUT("/:id", staff, h.Calendar.UpdateSemester)
		semesters.DELETE("/:id", staff, h.Calendar.DeleteSemester)
		semesters.POST("/:id/activate", staff, audit("activate", "semester"), h.Calendar.ActivateSemester)
	}

	departments := protected.Group("/departments")
	{
		departments.GET("", anyUser, h.Departments.List)
		departments.GET("/:id", anyUser, h.Departments.Get)
		departments.POST("", staff, h.Departments.Create)
		departments.PUT("/:id", staff, h.Departments.Update)
		departments.DELETE("/:id", staff, h.Departments.Delete)
	}

	programs := protected.Group("/programs")
	{
		programs.GET("", anyUser, h.Departments.ListPrograms)
		programs.GET("/:id", anyUser, h.Departments.GetProgram)
		programs.POST("", staff, h.Departments.CreateProgram)
		programs.PUT("/:id", staff, h.Departments.UpdateProgram)
		programs.DELETE("/:id", staff, h.Departments.DeleteProgram)
	}

	faculty := protected.Group("/faculty")
	{
		faculty.GET("", teaching, h.Faculty.List)
		faculty.GET("/me", h.Faculty.Me)
		faculty.GET("/:id", teaching, h.Faculty.Get)
		faculty.POST("", staff, h.Faculty.Create)
		faculty.PUT("/:id", staff, h.Faculty.Update)
		faculty.DELETE("/:id", staff, h.Faculty.Delete)
	}

	students := protected.Group("/students")
	{
		students.GET("", teaching, h.Students.List)
		students.GET("/me", h.Students.Me)
		students.GET("/:id", teaching, h.Students.Get)
		students.POST("", staff, h.Students.Create)
		students.PUT("/:id", staff, h.Students.Update)
		students.POST("/:id/profile-picture", anyUser, h.Students.UploadProfilePicture)
		students.DELETE("/:id", staff, h.Students.Delete)
	}

	courses := protected.Group("/courses")
	{
		courses.GET("", anyUser, h.Courses.List)
		courses.GET("/:id", anyUser, h.Courses.Get)
		courses.GET("/:id/prerequisites", anyUser, h.Courses.Prerequisites)
		courses.POST("", staff, h.Courses.Create)
		courses.PUT("/:id", staff, h.Courses.Update)
		courses.DELETE("/:id", staff, h.Courses.Delete)
		courses.POST("/:id/prerequisites", staff, h.Courses.AddPrerequisite)
		courses.DELETE("/:id/prerequisites/:prerequisiteId", staff, h.Courses.RemovePrerequisite)
	}

	offerings := protected.Group("/offerings")
	{
		offerings.GET("", anyUser, h.Offerings.List)
		offerings.GET("/:id", anyUser, h.Offerings.Get)
		offerings.POST("", staff, h.Offerings.Create)
		offerings.PUT("/:id", staff, h.Offerings.Update)
		offerings.DELETE("/:id", staff, h.Offerings.Delete)
		offerings.GET("/:id/schedules", anyUser, h.Offerings.ListSchedules)
		offerings.POST("/:id/schedules", staff, h.Offerings.AddSchedule)
		offerings.GET("/:id/assessments", teaching, h.Grades.ListAssessments)
		offerings.POST("/:id/assessments", teaching, h.Grades.CreateAssessment)
		offerings.GET("/:id/assessments/weight-summary", teaching, h.Grades.WeightSummary)
		offerings.GET("/:id/grade-sheet", teaching, h.Grades.ExportGradeSheet)
		offerings.GET("/:id/evaluations", teaching, h.Evaluations.ListByOffering)
		offerings.GET("/:id/evaluations/summary", teaching, h.Evaluations.Summarize)
	}

	schedules := protected.Group("/schedules", staff)
	{
		schedules.PUT("/:scheduleId", h.Offerings.UpdateSchedule)
		schedules.DELETE("/:scheduleId", h.Offerings.DeleteSchedule)
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.GET("", teaching, h.Enrollments.List)
		enrollments.GET("/:id", anyUser, h.Enrollments.Get)
		enrollments.POST("", anyUser, h.Enrollments.Enroll)
		enrollments.PUT("/:id/status", staff, audit("update_status", "enrollment"), h.Enrollments.UpdateStatus)
		enrollments.POST("/:id/drop", anyUser, h.Enrollments.Drop)
		enrollments.GET("/:id/grade", anyUser, h.Grades.Get)
		enrollments.PUT("/:id/grade", teaching, h.Grades.Upsert)
		enrollments.POST("/:id/grade/finalize", teaching, audit("finalize", "grade"), h.Grades.Finalize)
		enrollments.GET("/:id/term-score", anyUser, h.Grades.TermScore)
		enrollments.POST("/:id/evaluation", anyUser, h.Evaluations.Submit)
		enrollments.GET("/:id/evaluation", anyUser, h.Evaluations.GetByEnrollment)
	}

	assessments := protected.Group("/assessments", teaching)
	{
		assessments.PUT("/:assessmentId", h.Grades.UpdateAssessment)
		assessments.DELETE("/:assessmentId", h.Grades.DeleteAssessment)
		assessments.POST("/:assessmentId/scores", h.Grades.RecordScore)
	}

	announcements := protected.Group("/announcements", staff)
	{
		announcements.POST("", h.Announcements.Create)
		announcements.PUT("/:id", h.Announcements.Update)
		announcements.DELETE("/:id", h.Announcements.Delete)
	}

	events := protected.Group("/events")
	{
		events.POST("", staff, h.Events.Create)
		events.PUT("/:id", staff, h.Events.Update)
		events.DELETE("/:id", staff, h.Events.Delete)
		events.POST("/:id/registrations", anyUser, h.Events.Register)
		events.GET("/:id/registrations", teaching, h.Events.ListRegistrations)
		events.DELETE("/:id/registrations/:studentId", anyUser, h.Events.Unregister)
	}
	protected.PUT("/event-registrations/:registrationId/attendance", teaching, h.Events.MarkAttendance)

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", h.Notifications.List)
		notifications.GET("/unread-count", h.Notifications.UnreadCount)
		notifications.PUT("/read-all", h.Notifications.MarkAllRead)
		notifications.PUT("/:id/read", h.Notifications.MarkRead)
		notifications.DELETE("/:id", h.Notifications.Delete)
	}

	feedback := protected.Group("/feedback")
	{
		feedback.GET("", staff, h.Feedback.List)
		feedback.GET("/:id", anyUser, h.Feedback.Get)
		feedback.POST("", anyUser, h.Feedback.Submit)
		feedback.PUT("/:id/respond", staff, h.Feedback.Respond)
	}

	documents := protected.Group("/document-requests")
	{
		documents.GET("", anyUser, h.Documents.List)
		documents.GET("/:id", anyUser, h.Documents.Get)
		documents.POST("", anyUser, h.Documents.Create)
		documents.PUT("/:id/status", staff, audit("update_status", "document_request"), h.Documents.UpdateStatus)
		documents.POST("/:id/cancel", anyUser, h.Documents.Cancel)
		documents.POST("/:id/download-token", anyUser, h.Documents.DownloadToken)
	}

	protected.GET("/metrics/snapshot", adminOnly, h.Metrics.Snapshot)
}
