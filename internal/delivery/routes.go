package delivery

import (
	"net/http"
	"time"

	"github.com/Vovarama1992/go-utils/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Vovarama1992/online_assistant/internal/ports"
)

const requestsPerMinute = 60

func NewRouter(hAuth *AuthHandler, hTopics *TopicHandler, authSvc ports.AuthService) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	r.Use(httprate.LimitByIP(requestsPerMinute, time.Minute))

	RegisterRoutes(r, hAuth, hTopics, authSvc)
	return r
}

func RegisterRoutes(r chi.Router, hAuth *AuthHandler, hTopics *TopicHandler, authSvc ports.AuthService) {
	r.With(httputil.RecoverMiddleware).Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	r.With(httputil.RecoverMiddleware).Handle("/metrics", promhttp.Handler())

	// --- auth ---
	r.With(httputil.RecoverMiddleware).
		Post("/auth/login", hAuth.Login)

	// --- protected ---
	r.Group(func(pr chi.Router) {
		pr.Use(
			httputil.RecoverMiddleware,
			AuthMiddleware(authSvc),
		)

		// --- topics ---
		pr.Get("/topics", hTopics.List)
		pr.Get("/topics/{chat_id}", hTopics.Get)
		pr.Delete("/topics/{chat_id}", hTopics.Reset)
	})
}
