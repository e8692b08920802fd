package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/courseloop/courseloop-backend/api/controllers"
	webhookcontrollers "github.com/courseloop/courseloop-backend/api/controllers/webhooks"
	"github.com/courseloop/courseloop-backend/api/middleware"
	checkoutsvc "github.com/courseloop/courseloop-backend/internal/checkout"
	"github.com/courseloop/courseloop-backend/internal/licenses"
	"github.com/courseloop/courseloop-backend/internal/tenants"
	stripewebhook "github.com/courseloop/courseloop-backend/internal/webhooks/stripe"
	"github.com/courseloop/courseloop-backend/pkg/config"
	"github.com/courseloop/courseloop-backend/pkg/db"
	"github.com/courseloop/courseloop-backend/pkg/logger"
	"github.com/courseloop/courseloop-backend/pkg/redis"
	"github.com/courseloop/courseloop-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	checkoutService checkoutsvc.Service,
	licenseService licenses.Service,
	tenantService tenants.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api/v1/tenant", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		// Access checks are open to every authenticated tenant user.
		r.Get("/courses/{courseId}/access", controllers.CourseAccess(licenseService, logg))

		r.Route("/licenses", func(r chi.Router) {
			r.Use(middleware.RequireTenantAdmin(logg))
			r.Get("/", controllers.LicenseList(licenseService, logg))
			r.Get("/pricing", controllers.LicenseQuote(checkoutService, logg))
			r.Post("/checkout", controllers.LicenseCheckout(checkoutService, logg))
			r.Get("/{licenseId}", controllers.LicenseDetail(licenseService, logg))
			r.Post("/{licenseId}/renew", controllers.LicenseRenew(checkoutService, logg))
			r.Post("/{licenseId}/refund", controllers.LicenseRefund(licenseService, logg))
			r.Post("/{licenseId}/assign", controllers.LicenseAssign(licenseService, logg))
			r.Delete("/{licenseId}/assignments/{userId}", controllers.LicenseUnassign(licenseService, logg))
		})
	})

	r.Route("/api/admin/v1/tenants/{tenantId}/discount-tiers", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequirePlatformAdmin(logg))
		r.Get("/", controllers.AdminEffectiveTiers(tenantService, logg))
		r.Put("/", controllers.AdminSetDiscountTiers(tenantService, logg))
		r.Delete("/", controllers.AdminResetDiscountTiers(tenantService, logg))
	})

	return r
}
