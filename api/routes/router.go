package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adamzielonka/coursepath-backend/api/controllers"
	webhookcontrollers "github.com/adamzielonka/coursepath-backend/api/controllers/webhooks"
	"github.com/adamzielonka/coursepath-backend/api/middleware"
	"github.com/adamzielonka/coursepath-backend/internal/catalog"
	checkoutsvc "github.com/adamzielonka/coursepath-backend/internal/checkout"
	"github.com/adamzielonka/coursepath-backend/internal/grants"
	"github.com/adamzielonka/coursepath-backend/pkg/config"
	"github.com/adamzielonka/coursepath-backend/pkg/db"
	"github.com/adamzielonka/coursepath-backend/pkg/logger"
	"github.com/adamzielonka/coursepath-backend/pkg/redis"
	"github.com/adamzielonka/coursepath-backend/pkg/stripe"
)

// NewRouter wires the HTTP surface. Webhooks authenticate by provider
// signature only and sit outside the JWT group; catalog browsing is public;
// everything touching a buyer's grants requires a token.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	catalogService catalog.Service,
	checkoutService checkoutsvc.Service,
	grantsService grants.Service,
	cancelService controllers.CancelService,
	paymentWebhookService webhookcontrollers.PaymentWebhookService,
	stripeClient *stripe.Client,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var cachePinger db.Pinger
	if redisClient != nil {
		cachePinger = redisClient
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cachePinger))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookcontrollers.PaymentWebhook(paymentWebhookService, stripeClient, logg))
	})

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/courses", controllers.ListCourses(catalogService, logg))
		r.Get("/courses/{courseId}", controllers.GetCourse(catalogService, logg))
		r.Get("/paths", controllers.ListPaths(catalogService, logg))
		r.Get("/paths/{pathId}", controllers.GetPath(catalogService, logg))
	})

	var idempotencyStore redis.IdempotencyStore
	if redisClient != nil {
		idempotencyStore = redisClient
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Post("/checkout", controllers.Checkout(checkoutService, logg))

		r.Route("/enrollments", func(r chi.Router) {
			r.Get("/", controllers.ListEnrollments(grantsService, logg))
			r.Post("/reconcile", controllers.ReconcileEnrollment(grantsService, logg))
			r.Post("/{grantId}/cancel", controllers.CancelEnrollment(cancelService, logg))
			r.Get("/{kind}/{purchasableId}/access", controllers.CheckAccess(grantsService, logg))
		})
	})

	return r
}
