package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tkteam/meeting-assistant/internal/api/middleware"
	"github.com/tkteam/meeting-assistant/internal/auth"
)

// Handlers bundles the route groups for NewRouter.
type Handlers struct {
	Jobs     *JobHandler
	Auth     *AuthHandler
	Meetings *MeetingHandler
	AI       *AIHandler
	JWT      *auth.JWTService
}

func NewRouter(h Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", HealthCheck)
	r.Post("/api/login", h.Auth.Login)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticator(h.JWT))

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", h.Jobs.CreateJob)
			r.Get("/{id}", h.Jobs.GetJob)
			r.Post("/{id}/cancel", h.Jobs.CancelJob)
		})

		r.Post("/extract_audio", h.Jobs.ExtractAudio)
		r.Post("/transcribe_audio", h.Jobs.TranscribeAudio)
		r.Post("/translate_text", h.Jobs.TranslateText)
		r.Post("/summarize_text", h.Jobs.SummarizeText)
		r.Post("/preview_action_items", h.Jobs.PreviewActionItems)
		r.Get("/download/{filename}", h.Jobs.Download)

		r.Post("/translate/text", h.AI.TranslateText)
		r.Post("/summarize/text", h.AI.SummarizeText)
		r.Post("/action-items/preview", h.AI.PreviewActionItemsSync)

		r.Route("/meetings", func(r chi.Router) {
			r.Get("/", h.Meetings.ListMeetings)
			r.Post("/", h.Meetings.CreateMeeting)
			r.Get("/{id}", h.Meetings.GetMeeting)
			r.Get("/{id}/action-items", h.Meetings.ListActionItems)
			r.Post("/{id}/action-items/batch", h.Meetings.BatchCreateActionItems)
		})

		r.Route("/action-items", func(r chi.Router) {
			r.Post("/", h.Meetings.CreateActionItem)
			r.Get("/{id}", h.Meetings.GetActionItem)
			r.Put("/{id}", h.Meetings.UpdateActionItem)
			r.Delete("/{id}", h.Meetings.DeleteActionItem)
		})

		r.With(middleware.RequireRole("admin")).Get("/admin/users", h.Auth.ListUsers)
	})

	return r
}
