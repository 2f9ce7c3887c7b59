package handler

import (
	"net/http"

	"github.com/buildpulse/buildpulse-go/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Routes holds the handlers mounted by NewRouter.
type Routes struct {
	Projects    *ProjectHandler
	Pipelines   *PipelineHandler
	Sync        *SyncHandler
	Deployments *DeploymentHandler

	JWTSecret string

	// SyncRPS and SyncBurst limit synchronization triggers per caller.
	SyncRPS   float64
	SyncBurst int
}

// NewRouter mounts the API. Everything under /api/v1 requires a bearer token.
func NewRouter(rt Routes) http.Handler {
	if rt.SyncRPS <= 0 {
		rt.SyncRPS = 0.2
	}
	if rt.SyncBurst <= 0 {
		rt.SyncBurst = 2
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.JWTAuth(rt.JWTSecret))

		r.Post("/projects", rt.Projects.HandleCreate)
		r.Get("/projects", rt.Projects.HandleList)
		r.Post("/pipelines/verify", rt.Pipelines.HandleVerify)
		r.Get("/pipelines/{pipeline_id}/deployments", rt.Deployments.HandleCount)

		r.Route("/projects/{project_id}", func(r chi.Router) {
			r.Get("/", rt.Projects.HandleGet)

			r.Post("/pipelines", rt.Pipelines.HandleCreate)
			r.Get("/pipelines", rt.Pipelines.HandleList)
			r.Get("/pipelines/{pipeline_id}", rt.Pipelines.HandleGet)
			r.Put("/pipelines/{pipeline_id}", rt.Pipelines.HandleUpdate)
			r.Delete("/pipelines/{pipeline_id}", rt.Pipelines.HandleDelete)

			r.Get("/synchronization", rt.Sync.HandleLastSync)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(rt.SyncRPS, rt.SyncBurst))
				r.Post("/synchronization", rt.Sync.HandleSynchronize)
				r.Get("/synchronization/progress", rt.Sync.HandleProgress)
			})
		})
	})

	return r
}
