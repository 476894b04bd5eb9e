package ui

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all UI routes on the given router.
func (ui *UI) RegisterRoutes(r chi.Router) {
	r.Get("/", ui.HandleGraphList)
	r.Get("/new", ui.HandleGraphCreate)
	r.Post("/new", ui.HandleGraphCreatePost)

	r.Route("/graphs/{id}", func(r chi.Router) {
		r.Get("/", ui.HandleGraphDetail)
		r.Post("/delete", ui.HandleGraphDelete)
	})
}
