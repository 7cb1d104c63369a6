package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/marketplace-backend/api/controllers"
	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/internal/auth"
	"github.com/angelmondragon/marketplace-backend/internal/catalog"
	"github.com/angelmondragon/marketplace-backend/internal/contacts"
	"github.com/angelmondragon/marketplace-backend/internal/ingestion"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/pkg/auth/session"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// cacheStore is the redis surface the HTTP layer needs: health pings, auth rate limits and idempotency.
type cacheStore interface {
	middleware.ReplayStore
	middleware.RateLimiter
	Ping(context.Context) error
}

// Services groups the domain services exposed over HTTP.
type Services struct {
	Auth      auth.Service
	Accounts  auth.AccountService
	Contacts  contacts.Service
	Catalog   catalog.Service
	Ingestion ingestion.Service
	Orders    orders.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	cache cacheStore,
	sessions sessionManager,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	var (
		limiter     middleware.RateLimiter
		idempotency middleware.ReplayStore
		cachePinger controllers.Pinger
	)
	if cache != nil {
		limiter, idempotency, cachePinger = cache, cache, cache
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cachePinger))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public catalog.
		r.Get("/categories", controllers.CatalogCategories(svc.Catalog, logg))
		r.Get("/shops", controllers.CatalogShops(svc.Catalog, logg))
		r.Get("/products", controllers.CatalogProducts(svc.Catalog, logg))

		r.Route("/user", func(r chi.Router) {
			r.With(
				middleware.AuthRateLimit(middleware.RegisterPolicy(cfg.AuthRateLimit), limiter, logg),
				middleware.Idempotency(idempotency, logg),
			).Post("/register", controllers.AccountRegister(svc.Accounts, logg))
			r.Post("/register/confirm", controllers.AccountConfirm(svc.Accounts, logg))
			r.With(middleware.AuthRateLimit(middleware.LoginPolicy(cfg.AuthRateLimit), limiter, logg)).Post("/login", controllers.AccountLogin(svc.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(sessions, cfg.JWT, logg))
			r.With(middleware.AuthRateLimit(middleware.PasswordResetPolicy(cfg.AuthRateLimit), limiter, logg)).
				Post("/password_reset", controllers.AccountPasswordReset(svc.Accounts, logg))
			r.Post("/password_reset/confirm", controllers.AccountPasswordResetConfirm(svc.Accounts, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, sessions, logg))
				r.Post("/logout", controllers.AuthLogout(sessions, cfg.JWT, logg))
				r.Get("/details", controllers.AccountDetails(svc.Auth, logg))
				r.Post("/details", controllers.AccountUpdateDetails(svc.Auth, logg))
				r.Get("/contact", controllers.ContactsList(svc.Contacts, logg))
				r.Post("/contact", controllers.ContactsCreate(svc.Contacts, logg))
				r.Put("/contact/{contactId}", controllers.ContactsUpdate(svc.Contacts, logg))
				r.Delete("/contact/{contactId}", controllers.ContactsDelete(svc.Contacts, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))
			// Keys are scoped per user, so replay protection sits behind Auth.
			r.Use(middleware.Idempotency(idempotency, logg))

			r.Route("/basket", func(r chi.Router) {
				r.Get("/", controllers.BasketGet(svc.Orders, logg))
				r.Post("/", controllers.BasketAdd(svc.Orders, logg))
				r.Put("/", controllers.BasketUpdate(svc.Orders, logg))
				r.Delete("/", controllers.BasketRemove(svc.Orders, logg))
			})

			r.Route("/order", func(r chi.Router) {
				r.Get("/", controllers.OrdersList(svc.Orders, logg))
				r.Post("/", controllers.OrdersCheckout(svc.Orders, logg))
			})

			r.Route("/partner", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleShop))
				r.Post("/update", controllers.PartnerUpdate(svc.Ingestion, logg))
				r.Get("/state", controllers.PartnerState(svc.Catalog, logg))
				r.Post("/state", controllers.PartnerSetState(svc.Catalog, logg))
				r.Get("/orders", controllers.PartnerOrders(svc.Orders, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleStaff))
				r.Patch("/orders/{orderId}/state", controllers.AdminUpdateOrderState(svc.Orders, logg))
			})
		})
	})

	return r
}
