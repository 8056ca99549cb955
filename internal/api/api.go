// Package api is the HTTP surface: JSON endpoints for the bill lifecycle,
// the public short-link resolver, health and metrics.
package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/group-2-odp-bni/be-capstone-project/internal/auth"
	"github.com/group-2-odp-bni/be-capstone-project/internal/ledger"
	"github.com/group-2-odp-bni/be-capstone-project/internal/middleware"
	"github.com/group-2-odp-bni/be-capstone-project/internal/service"
	"github.com/group-2-odp-bni/be-capstone-project/internal/storage"
	"github.com/group-2-odp-bni/be-capstone-project/internal/token"
)

// BusHealth reports message bus liveness for the health endpoint.
type BusHealth interface {
	Healthy() bool
}

type API struct {
	router *mux.Router
	bills  *service.BillService
	ledger *ledger.Ledger
	tokens *token.Service
	store  storage.Store
	jwt    *auth.JWTManager
	bus    BusHealth

	corsOrigins []string
	// frontendBase is where short links redirect to, e.g. the mobile
	// web app origin.
	frontendBase string
}

// New wires the HTTP API. bus may be nil when the service runs without a
// broker (tests, local mode).
func New(bills *service.BillService, l *ledger.Ledger, tokens *token.Service, store storage.Store, jwt *auth.JWTManager, bus BusHealth, corsOrigins []string, frontendBase string) *API {
	a := &API{
		router:       mux.NewRouter(),
		bills:        bills,
		ledger:       l,
		tokens:       tokens,
		store:        store,
		jwt:          jwt,
		bus:          bus,
		corsOrigins:  corsOrigins,
		frontendBase: strings.TrimRight(frontendBase, "/"),
	}
	a.setupRoutes()
	return a
}

func (a *API) setupRoutes() {
	// Public endpoints
	a.router.HandleFunc("/s/{token}", a.handleResolveShortLink).Methods("GET")
	a.router.HandleFunc("/health", a.handleHealth).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Authenticated bill endpoints
	protected := a.router.PathPrefix("/api/v1/split-bill").Subrouter()
	protected.Use(func(next http.Handler) http.Handler {
		return middleware.RequireAuth(a.jwt, next)
	})

	protected.HandleFunc("/bills", a.handleCreateBill).Methods("POST")
	protected.HandleFunc("/bills/{billId}", a.handleBillDetail).Methods("GET")
	protected.HandleFunc("/bills/{billId}/members/{memberId}", a.handleMemberInvoice).Methods("GET")
	protected.HandleFunc("/bills/{billId}/members/{memberId}/pay-intent", a.handlePayIntent).Methods("POST")
	protected.HandleFunc("/bills/{billId}/mark-paid-batch", a.handleMarkPaidBatch).Methods("POST")
	protected.HandleFunc("/bills/{billId}/remind", a.handleRemind).Methods("POST")
	protected.HandleFunc("/history", a.handleHistory).Methods("GET")
}

// Handler returns the fully wrapped handler: CORS outermost, then request
// logging, then routing.
func (a *API) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: a.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(middleware.Logging(a.router))
}
