package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/isdelr/feedwall-be/internal/api/handlers"
	"github.com/isdelr/feedwall-be/internal/auth"
	"github.com/isdelr/feedwall-be/internal/services"
)

// NewRouter creates and configures a new Chi router.
func NewRouter(tokens *auth.TokenService, userService services.UserServiceProvider, postService services.PostServiceProvider, imageDir, allowedOrigin string) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, tokens)
	postHandler := handlers.NewPostHandler(postService)

	r.Route("/auth", func(r chi.Router) {
		r.Put("/signup", userHandler.Signup)
		r.Post("/login", userHandler.Login)
	})

	r.Route("/feed", func(r chi.Router) {
		r.Use(tokens.Middleware())
		r.Get("/posts", postHandler.List)
		r.Post("/post", postHandler.Create)
		r.Route("/post/{postId}", func(r chi.Router) {
			r.Get("/", postHandler.Get)
			r.Put("/", postHandler.Update)
			r.Delete("/", postHandler.Delete)
		})
	})

	// Image artifacts are public once stored; refs double as filenames.
	fileServer := http.StripPrefix("/images/", http.FileServer(http.Dir(imageDir)))
	r.Get("/images/*", func(w http.ResponseWriter, req *http.Request) {
		fileServer.ServeHTTP(w, req)
	})

	return r
}
