package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/scolaris/scolaris/internal/auth"
	"github.com/scolaris/scolaris/internal/chat"
	"github.com/scolaris/scolaris/internal/observability"
	"github.com/scolaris/scolaris/internal/roles"
	"github.com/scolaris/scolaris/internal/school"
	"github.com/scolaris/scolaris/internal/shared"
	"github.com/scolaris/scolaris/internal/students"
	"github.com/scolaris/scolaris/internal/timetable"
	"github.com/scolaris/scolaris/internal/users"
	"github.com/scolaris/scolaris/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	RolesHandler     *roles.Handler
	SchoolHandler    *school.Handler
	TimetableHandler *timetable.Handler
	StudentsHandler  *students.Handler
	ChatHandler      *chat.Handler
	JobHandler       *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Clients fetch the CSRF token here and echo it back in the
	// X-CSRF-Token header on mutating requests.
	r.Get("/csrf", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		token, err := params.CSRFManager.EnsureToken(r.Context(), sess)
		if err != nil {
			params.Logger.Error("issue csrf token", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"csrf_token":"` + token + `"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.RolesHandler != nil {
		params.RolesHandler.MountRoutes(r)
	}
	if params.SchoolHandler != nil {
		r.Route("/school", params.SchoolHandler.MountRoutes)
	}
	if params.TimetableHandler != nil {
		r.Route("/timetable", params.TimetableHandler.MountRoutes)
	}
	if params.StudentsHandler != nil {
		params.StudentsHandler.MountRoutes(r)
	}
	if params.ChatHandler != nil {
		r.Route("/chat", params.ChatHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
