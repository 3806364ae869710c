package api

import (
	"context"
	"encoding/json"
	"net/http"

	"call-companion-core/internal/application"
	"call-companion-core/internal/domain"
	securitymiddleware "call-companion-core/internal/infrastructure/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// ChannelService is the messaging session surface exposed over HTTP
type ChannelService interface {
	Status() domain.ChannelStatus
	Connect(ctx context.Context) error
	Logout(ctx context.Context) error
	Send(ctx context.Context, target string, text string, image *domain.OutboundImage) error
}

// RecordUpdater applies edits made in the CRM
type RecordUpdater interface {
	UpdateRecord(ctx context.Context, businessID, recordID string, fields map[string]string) (*domain.CustomerRecord, error)
}

// CallRequester pushes a call request to the caller's device
type CallRequester interface {
	RequestCall(ctx context.Context, businessID, userID, customerID string) (domain.DispatchResult, error)
}

// BindingManager manages a collection's spreadsheet mirror
type BindingManager interface {
	Configure(ctx context.Context, input application.ConfigureBindingInput) (*domain.SheetBinding, error)
	Get(ctx context.Context, businessID, collectionID string) (*domain.SheetBinding, error)
	ExportNow(ctx context.Context, businessID, collectionID string) error
}

// WebhookDispatcher routes inbound webhook events to their handlers
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, event *domain.WebhookEvent) error
}

// Dependencies wires the HTTP surface to the services behind it
type Dependencies struct {
	Channel    ChannelService
	Records    RecordUpdater
	Calls      CallRequester
	Bindings   BindingManager
	Webhooks   WebhookDispatcher
	Identities securitymiddleware.IdentityVerifier

	// Devices serves the device websocket; Metrics serves the scrape endpoint
	Devices http.Handler
	Metrics http.Handler

	WebhookVerifyToken string
	AllowedOrigins     []string
	Logger             zerolog.Logger
}

// NewRouter builds the HTTP router
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(securitymiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Webhook-Token", "X-Webhook-Topic"},
		AllowCredentials: true,
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "./docs/swagger.json")
	})

	// Lead webhooks carry their own shared-secret check
	r.Get("/webhooks/leads", webhookVerifyHandler(deps.WebhookVerifyToken))
	r.Post("/webhooks/leads", leadWebhookHandler(deps.Webhooks, deps.WebhookVerifyToken, logger))

	// Devices authenticate over the socket itself
	if deps.Devices != nil {
		r.Handle("/ws/devices", deps.Devices)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(securitymiddleware.RequireAuth(deps.Identities, logger))

		r.Get("/channel/status", channelStatusHandler(deps.Channel))
		r.Post("/channel/connect", channelConnectHandler(deps.Channel, logger))
		r.Post("/channel/logout", channelLogoutHandler(deps.Channel, logger))
		r.Post("/channel/messages", sendMessageHandler(deps.Channel, logger))

		r.Patch("/customers/{id}", updateCustomerHandler(deps.Records, logger))
		r.Post("/customers/{id}/call-request", callRequestHandler(deps.Calls, logger))

		r.Put("/collections/{id}/sheet-binding", configureBindingHandler(deps.Bindings, logger))
		r.Get("/collections/{id}/sheet-binding", getBindingHandler(deps.Bindings, logger))
		r.Post("/collections/{id}/export", exportNowHandler(deps.Bindings, logger))
	})

	return r
}
