package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/taskdesk/taskdesk/internal/cache"
)

// NewRouter собирает весь HTTP-фасад. Дополнительные middleware
// (логирование запросов и т.п.) передаются извне: chi требует
// регистрировать их до маршрутов.
func NewRouter(clock *cache.Clock, tasks *TaskHandler, tags *TagHandler, settings *SettingsHandler, storage *StorageHandler, mw ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	for _, m := range mw {
		r.Use(m)
	}
	r.Use(middleware.Recoverer)
	r.Use(cache.Middleware(clock))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", tasks.List)
			r.Post("/", tasks.Create)
			r.Get("/tags", tasks.TagsInUse)
			r.Get("/{id}", tasks.Get)
			r.Put("/{id}", tasks.Update)
			r.Delete("/{id}", tasks.Delete)
			r.Put("/{id}/toggle", tasks.Toggle)
			r.Put("/{id}/memo", tasks.SetMemo)
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", tags.List)
			r.Post("/", tags.Create)
			r.Get("/usage", tags.Usage)
			r.Get("/{name}", tags.Get)
			r.Put("/{name}", tags.Update)
			r.Delete("/{name}", tags.Delete)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settings.Get)
			r.Put("/", settings.Update)
			r.Post("/reset", settings.Reset)
			r.Put("/storage/data-dir", settings.SetDataDir)
			r.Put("/storage/current-file", settings.SetCurrentFile)
			r.Get("/storage/recent-files", settings.RecentFiles)
		})

		r.Route("/storage/files", func(r chi.Router) {
			r.Get("/", storage.ListFiles)
			r.Post("/", storage.CreateFile)
		})

		r.Route("/backups", func(r chi.Router) {
			r.Get("/", storage.ListBackups)
			r.Post("/", storage.CreateBackup)
			r.Post("/{name}/restore", storage.RestoreBackup)
		})
	})

	return r
}
