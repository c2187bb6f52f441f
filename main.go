package main

import (
	"crypto/tls"
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/patrickmn/go-cache"
	"github.com/username/soldrip/backend/src/config"
	"github.com/username/soldrip/backend/src/database"
	"github.com/username/soldrip/backend/src/handlers"
	"github.com/username/soldrip/backend/src/logger"
	"github.com/username/soldrip/backend/src/processors"
	"github.com/username/soldrip/backend/src/security"
	"github.com/username/soldrip/backend/src/security/validation"
	"github.com/username/soldrip/backend/src/services"
	"golang.org/x/time/rate"
)

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func enableCORS(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && origin == allowedOrigin {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
				w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
			} else if origin == "" {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// optionalAccount parses an account setting; an empty value is the zero key.
func optionalAccount(value, name string) solana.PublicKey {
	key, err := validation.ValidateOptionalAccountKey(value, name)
	if err != nil {
		logger.L.Error("Invalid account in configuration", "setting", name, "error", err)
		os.Exit(1)
	}
	return key
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("SolDrip backend server starting...")

	if len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	authority := optionalAccount(config.Cfg.AuthorityAccount, "AUTHORITY_ACCOUNT")
	escrow := optionalAccount(config.Cfg.BuybackEscrowAccount, "BUYBACK_ESCROW_ACCOUNT")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)

	statsCache := cache.New(config.Cfg.StatsCacheTTL, 2*config.Cfg.StatsCacheTTL)
	clock := services.SystemClock{}

	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.TokenExpiry)
	store := services.NewSQLStore(database.DB, clock)

	protocolService := services.NewProtocolService(
		store,
		authService,
		clock,
		services.StateVolatilityFeed{},
		services.EscrowMarketMaker{},
		processors.NewTaxProcessor(),
		processors.NewSlippageGuard(),
		processors.NewDividendProcessor(),
		processors.NewTransactionProcessor(),
		processors.NewFeeProcessor(),
		statsCache,
		services.ProtocolOptions{
			Authority:     authority,
			BuybackEscrow: escrow,
			BatchSize:     config.Cfg.DistributionBatchSize,
		},
	)

	limiter := rate.NewLimiter(rate.Every(config.Cfg.RateLimitInterval), config.Cfg.RateLimitBurst)

	router := handlers.NewRouter(
		handlers.NewProtocolHandler(protocolService),
		handlers.NewStatsHandler(protocolService),
		handlers.NewAuthHandler(authService),
		authService,
		proxyHeadersMiddleware,
		enableCORS(config.Cfg.FrontendBaseURL),
		rateLimitMiddleware(limiter),
	)

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
