package http

import (
	"net/http"

	"github.com/barbershop-booking/internal/application/admin"
	"github.com/barbershop-booking/internal/application/appointment"
	"github.com/barbershop-booking/internal/application/auth"
	"github.com/barbershop-booking/internal/application/catalog"
	"github.com/barbershop-booking/internal/application/chat"
	"github.com/barbershop-booking/internal/application/device"
	"github.com/barbershop-booking/internal/application/notification"
	"github.com/barbershop-booking/internal/application/relay"
	"github.com/barbershop-booking/internal/config"
	"github.com/barbershop-booking/internal/domain"
	s3infra "github.com/barbershop-booking/internal/infrastructure/s3"
	"github.com/barbershop-booking/internal/notify"
	"github.com/barbershop-booking/internal/pkg/listing"
	"github.com/barbershop-booking/internal/pkg/metrics"
	"github.com/barbershop-booking/internal/transport/http/handler"
	appmiddleware "github.com/barbershop-booking/internal/transport/http/middleware"
	"github.com/barbershop-booking/internal/transport/sse"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", notify.RelayKeyHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)
	adminOnly := appmiddleware.RequireRole(domain.RoleAdmin)

	// 5 requests/second, burst of 10, on the public sign-in endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	// The chat proxy spends money upstream, so it is charged per customer.
	chatRL := appmiddleware.NewRateLimiter(rate.Limit(0.5), 5, appmiddleware.ByUser())

	paging := listing.Config{PerPage: cfg.ListPerPage, MaxPerPage: cfg.ListMaxPerPage}

	listeners := []appointment.QueueListener{deps.Hub}
	if deps.Bus != nil {
		listeners = append(listeners, deps.Bus)
	}

	authSvc := auth.NewService(auth.ServiceDeps{UserRepo: deps.UserRepo, JWTProvider: deps.JWTProvider})
	deviceSvc := device.NewService(deps.DeviceRepo)
	notifSvc := notification.NewService(deps.NotificationRepo)
	apptSvc := appointment.NewService(appointment.ServiceDeps{
		AppointmentRepo: deps.AppointmentRepo,
		CatalogRepo:     deps.CatalogRepo,
		UserRepo:        deps.UserRepo,
		Listeners:       listeners,
		Location:        cfg.Location(),
		Paging:          paging,
	})
	catalogSvc := catalog.NewService(catalog.ServiceDeps{
		CatalogRepo: deps.CatalogRepo,
		Images:      deps.Images,
		ContentType: s3infra.ImageContentType,
		ImageTTL:    cfg.ImageURLTTL,
		Paging:      paging,
	})
	relaySvc := relay.NewService(relay.ServiceDeps{
		DeviceRepo: deps.DeviceRepo,
		Publisher:  deps.Publisher,
		Audit:      deps.NotificationRepo,
	})
	adminSvc := admin.NewService(admin.ServiceDeps{
		Queue:       deps.Hub,
		Relay:       relaySvc,
		Concurrency: cfg.BroadcastConcurrency,
	})
	chatSvc := chat.NewService(chat.ServiceDeps{
		LLM:         deps.LLM,
		CatalogRepo: deps.CatalogRepo,
		ShopName:    cfg.ShopName,
	})

	healthH := handler.NewHealthHandler(deps.Hub)
	authH := handler.NewAuthHandler(authSvc)
	deviceH := handler.NewDeviceHandler(deviceSvc)
	notifH := handler.NewNotificationHandler(notifSvc)
	apptH := handler.NewAppointmentHandler(apptSvc)
	catalogH := handler.NewCatalogHandler(catalogSvc)
	relayH := handler.NewRelayHandler(relaySvc)
	adminH := handler.NewAdminNotificationHandler(adminSvc)
	chatH := handler.NewChatHandler(chatSvc)
	queueH := handler.NewQueueHandler(deps.Hub, sse.NewRegistry(), deps.NotificationRepo, handler.QueueOptions{
		Icon:          cfg.NoticeIcon,
		NoticeTimeout: cfg.NoticeTimeout,
		PromptTimeout: cfg.PermissionPromptTimeout,
	})

	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Get("/ready", healthH.Ready)
		r.With(sensitiveRL.Limit).Post("/auth/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/auth/login", authH.Login)
		r.Get("/catalog/{kind}", catalogH.List(false))
		r.Get("/catalog/{kind}/{id}", catalogH.Get)

		// ── Push relay (machine to machine) ──────────────────────────────────
		r.With(appmiddleware.RequireAPIKey(notify.RelayKeyHeader, cfg.RelayAPIKey)).Post("/push/send", relayH.Send)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/auth/me", authH.Me)

			r.Post("/appointments", apptH.Book)
			r.Get("/appointments", apptH.ListMine)
			r.Post("/appointments/{id}/cancel", apptH.Cancel)

			r.Get("/queue/position", queueH.Position)
			r.Get("/queue/watch", queueH.Watch)
			r.Post("/queue/watch/{id}/permission", queueH.Permission)
			r.Post("/queue/watch/{id}/ack", queueH.Ack)

			r.Post("/devices/token", deviceH.RegisterToken)
			r.Get("/devices", deviceH.List)
			r.Delete("/devices/{id}", deviceH.Delete)

			r.Get("/notifications", notifH.ListUnread)
			r.Put("/notifications/{id}", notifH.MarkAsRead)

			r.With(chatRL.Limit).Post("/chat", chatH.Reply)

			// Admin-only routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(adminOnly)

				r.Get("/appointments", apptH.ListByDate)
				r.Get("/appointments/{id}", apptH.Get)
				r.Put("/appointments/{id}/status", apptH.UpdateStatus)

				r.Get("/catalog/{kind}", catalogH.List(true))
				r.Post("/catalog/{kind}", catalogH.Create)
				r.Put("/catalog/{kind}/{id}", catalogH.Update)
				r.Delete("/catalog/{kind}/{id}", catalogH.Delete)
				r.Post("/catalog/{kind}/{id}/image", catalogH.UploadImage)

				r.Get("/notifications/default/{customerID}", adminH.DefaultMessage)
				r.Post("/notifications/push", adminH.Push)
				r.Post("/notifications/broadcast", adminH.Broadcast)
			})
		})
	})

	return r
}
