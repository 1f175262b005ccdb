package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"assetforge/internal/http/handlers"
	"assetforge/internal/infra/geoip"
	"assetforge/internal/middleware"
)

// Options groups the router's cross-cutting inputs.
type Options struct {
	Logger     zerolog.Logger
	Countries  geoip.CountryResolver
	StorageDir string
	CORS       []string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.CORS(opts.CORS),
		middleware.Logger(opts.Logger, opts.Countries),
	)

	r.Get("/healthz", app.Health)

	r.Route("/generate/2d", func(r chi.Router) {
		r.Post("/", app.Generate2D)
		r.Get("/", app.List2D)
		r.Get("/{id}", app.Get2D)
	})

	r.Route("/refine/2d", func(r chi.Router) {
		r.Post("/", app.Refine2D)
		r.Post("/batch", app.RefineBatch2D)
		r.Get("/{id}/history", app.RefineHistory)
	})

	r.Route("/generate/prototype", func(r chi.Router) {
		r.Post("/", app.GeneratePrototype)
		r.Get("/", app.ListPrototypes)
		r.Get("/{id}", app.GetPrototype)
	})

	r.Route("/generate/final", func(r chi.Router) {
		r.Post("/", app.GenerateFinal)
		r.Get("/", app.ListFinal)
		r.Get("/task/{task_id}", app.PollFinalTask)
		r.Post("/webhook", app.FinalWebhook)
		r.Get("/{id}", app.GetFinal)
	})

	r.Route("/gallery", func(r chi.Router) {
		r.Get("/", app.ListGallery)
		r.Get("/stats", app.GalleryStats)
		r.Post("/save", app.SaveGalleryItem)
		r.Get("/{id}", app.GetGalleryItem)
		r.Delete("/{id}", app.DeleteGalleryItem)
	})

	if opts.StorageDir != "" {
		fs := http.StripPrefix("/storage/", http.FileServer(http.Dir(opts.StorageDir)))
		r.Get("/storage/*", fs.ServeHTTP)
	}

	return r
}
