package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/soldrip/backend/src/security"
	"github.com/username/soldrip/backend/src/utils"
)

// NewRouter mounts the API. Extra middlewares run after request logging and before routing.
func NewRouter(protocolHandler *ProtocolHandler, statsHandler *StatsHandler, authHandler *AuthHandler, auth *security.AuthService, extra ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(ContextualLoggerMiddleware)
	for _, mw := range extra {
		r.Use(mw)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "SolDrip backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.Get("/auth/message", authHandler.HandleGetLoginMessage)
			r.Post("/auth/token", authHandler.HandleLogin)

			r.Get("/stats", statsHandler.HandleGetStats)
			r.Get("/holders/{account}", statsHandler.HandleGetHolder)
			r.Get("/distributions", statsHandler.HandleListDistributions)
			r.Get("/taxes", statsHandler.HandleGetTaxDetails)
		})

		// Signed operations; the service checks the signer each one requires
		r.Group(func(r chi.Router) {
			r.Use(SignerMiddleware(auth))

			r.Post("/initialize", protocolHandler.HandleInitialize)
			r.Post("/transfers", protocolHandler.HandleTransfer)
			r.Post("/distributions", protocolHandler.HandleDistribute)
			r.Post("/volatility", protocolHandler.HandleSetVolatility)
			r.Post("/ledger/credit", protocolHandler.HandleCredit)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			utils.SendJSONError(w, "not found", http.StatusNotFound)
			return
		}
		http.NotFound(w, r)
	})

	return r
}
