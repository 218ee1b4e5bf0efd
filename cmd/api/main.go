package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/plan-configurator/internal/address"
	"github.com/noah-isme/plan-configurator/internal/admin"
	"github.com/noah-isme/plan-configurator/internal/app"
	"github.com/noah-isme/plan-configurator/internal/audit"
	"github.com/noah-isme/plan-configurator/internal/auth"
	"github.com/noah-isme/plan-configurator/internal/cache"
	"github.com/noah-isme/plan-configurator/internal/catalog"
	"github.com/noah-isme/plan-configurator/internal/common"
	"github.com/noah-isme/plan-configurator/internal/config"
	"github.com/noah-isme/plan-configurator/internal/configurator"
	"github.com/noah-isme/plan-configurator/internal/contract"
	"github.com/noah-isme/plan-configurator/internal/db"
	"github.com/noah-isme/plan-configurator/internal/events"
	"github.com/noah-isme/plan-configurator/internal/health"
	"github.com/noah-isme/plan-configurator/internal/lock"
	"github.com/noah-isme/plan-configurator/internal/obs"
	"github.com/noah-isme/plan-configurator/internal/otp"
	"github.com/noah-isme/plan-configurator/internal/queue"
	"github.com/noah-isme/plan-configurator/internal/ratelimit"
	"github.com/noah-isme/plan-configurator/internal/resilience"
	"github.com/noah-isme/plan-configurator/internal/security"
)

const csrfCookieName = "admin_csrf"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := app.EnvOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := app.EnvOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := app.EnvOrDefault("OBS_METRICS_NAMESPACE", "planconfig")
	metricsEnabled := app.EnvBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	resilience.MustRegisterMetrics(nil)

	tracingEnabled := app.EnvBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "plan-configurator-api",
			Endpoint:      app.EnvOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      app.EnvOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: app.EnvFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.DBAutoMigrate {
		if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	deps, err := app.Open(connectCtx, cfg, logger, app.Options{ApplicationName: "plan-configurator-api", RedisMetrics: metricsEnabled})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer deps.Close()
	queries := deps.Queries
	redisClient := deps.Redis

	taskClient, err := queue.NewClient(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("init task client")
	}
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	bus := &events.Bus{
		Store: queries,
		Scheduler: queue.Dispatcher{
			Client:   taskClient,
			Deliver:  cfg.ContractWebhookURL != "",
			Archive:  cfg.ArchiveEnabled(),
			MaxRetry: cfg.WebhookMaxRetry,
		},
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
	}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Queries: queries,
		Cache:   cache.NewCache(redisClient, cfg.CatalogCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})

	sessionLocker := lock.Locker{R: redisClient, RetryBackoff: 25 * time.Millisecond, MaxWait: 2 * time.Second}
	configuratorService, err := configurator.NewService(configurator.ServiceConfig{
		Store:  configurator.NewRedisStore(redisClient, cfg.SessionTTL),
		Plans:  catalogService,
		Locker: sessionLocker,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init configurator service")
	}
	configuratorHandler := configurator.NewHandler(configurator.HandlerConfig{Service: configuratorService})

	otpService, err := otp.NewService(otp.ServiceConfig{
		Provider:   otpProvider(cfg, logger),
		Redis:      redisClient,
		Limiter:    ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:otp"},
		TokenTTL:   cfg.OTPTokenTTL,
		SendWindow: cfg.OTPSendWindow,
		SendMax:    cfg.OTPSendMax,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init otp service")
	}
	otpHandler := otp.NewHandler(otp.HandlerConfig{Service: otpService})

	addressService := address.NewService(address.ServiceConfig{
		HTTP:           upstreamClient(cfg, logger, "address"),
		GeoapifyAPIKey: cfg.GeoapifyAPIKey,
		GeoapifyURL:    cfg.GeoapifyBaseURL,
		NBNURL:         cfg.NBNLookupBaseURL,
		Cache:          cache.NewCache(redisClient, cfg.AddressCacheTTL),
	})
	addressHandler := address.NewHandler(address.HandlerConfig{Service: addressService})
	addressLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:address"},
		Config: ratelimit.Config{
			Key:    ratelimit.ByClientIP,
			Window: time.Minute,
			Max:    app.EnvInt("RATE_LIMIT_ADDRESS_PER_MIN", 60),
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("address rate limiter") },
	}

	contractService, err := contract.NewService(contract.ServiceConfig{
		Store:    queries,
		Sessions: configuratorService,
		Verifier: otpService,
		Events:   bus,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init contract service")
	}
	contractHandler := contract.NewHandler(contract.HandlerConfig{Service: contractService})

	authService, err := auth.NewService(auth.Config{
		Store:      queries,
		Secret:     cfg.JWTSecret,
		SessionTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init auth service")
	}
	authHandler := &auth.Handler{
		Service:        authService,
		CookieName:     cfg.CookieName,
		CSRFCookieName: csrfCookieName,
		CookieDomain:   cfg.CookieDomain,
		CookieSecure:   cfg.CookieSecure,
		CookieSameSite: cfg.CookieSameSite,
	}
	authMiddleware := auth.Middleware{Service: authService, SessionCookie: cfg.CookieName}

	adminService, err := admin.NewService(admin.ServiceConfig{Store: queries})
	if err != nil {
		logger.Fatal().Err(err).Msg("init admin service")
	}
	adminHandler := admin.NewHandler(admin.HandlerConfig{Service: adminService})

	auditService := &audit.Service{Store: queries, Enabled: cfg.AuditEnabled, SamplingRate: cfg.AuditSamplingRate}
	auditRecorder := audit.HTTPRecorder{
		Service: auditService,
		OnError: func(err error) { logger.Warn().Err(err).Msg("record audit log") },
	}
	auditHandler := audit.Handler{Store: queries}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	globalLimit, err := ratelimit.NewGlobal(redisClient, ratelimit.GlobalConfig{
		Rate:    cfg.GlobalRateLimit,
		OnError: func(err error) { logger.Warn().Err(err).Msg("global rate limiter") },
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init global rate limit")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(app.EnvOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:     true,
		EnableHSTS: cfg.CookieSecure,
		HSTSMaxAge: 31536000,
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-API-Key", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if app.EnvBool("OBS_ENABLE_PPROF", false) {
		user := app.EnvOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := app.EnvOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      deps,
		DBTimeout:    app.EnvDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: app.EnvDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api", func(api chi.Router) {
		api.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		api.Use(globalLimit)

		api.Get("/products", catalogHandler.Products)
		api.Get("/products/{id}", catalogHandler.Product)

		api.Get("/configurator/options", configuratorHandler.Options)
		api.Post("/quote", configuratorHandler.StatelessQuote)
		api.Route("/sessions", configuratorHandler.Routes)

		api.Post("/residential-send-otp", otpHandler.Send(otp.KindResidential))
		api.Post("/business-send-otp", otpHandler.Send(otp.KindBusiness))
		api.Post("/residential-verify-otp", otpHandler.Verify(otp.KindResidential))
		api.Post("/business-verify-otp", otpHandler.Verify(otp.KindBusiness))

		api.Route("/address", func(a chi.Router) {
			a.Use(addressLimit.Middleware)
			a.Get("/autocomplete", addressHandler.Autocomplete)
			a.Get("/nbn", addressHandler.NBN)
		})

		api.Group(func(c chi.Router) {
			c.Use(idem.Middleware)
			c.Post("/contract", contractHandler.Submit(contract.KindResidential))
			c.Post("/business-contract", contractHandler.Submit(contract.KindBusiness))
		})

		api.Route("/admin", func(a chi.Router) {
			a.Use(security.CSRF{Header: "X-CSRF-Token", CookieName: csrfCookieName, SessionCookie: cfg.CookieName}.Middleware)
			a.Post("/login", authHandler.Login)
			a.Post("/logout", authHandler.Logout)

			a.Group(func(p chi.Router) {
				p.Use(authMiddleware.RequireAdmin)
				p.Use(auditRecorder.Middleware(audit.HTTPConfig{ResourceIDParam: "id"}))
				p.Get("/me", authHandler.Me)

				p.Group(func(g chi.Router) {
					g.Use(auth.RequirePermission(auth.PermProductsWrite))
					g.Get("/products", catalogHandler.AdminProducts)
					g.Post("/products", catalogHandler.CreateProduct)
					g.Put("/products/{id}", catalogHandler.UpdateProduct)
					g.Delete("/products/{id}", catalogHandler.DeleteProduct)
				})
				p.Group(func(g chi.Router) {
					g.Use(auth.RequirePermission(auth.PermContractsRead))
					g.Get("/contracts", contractHandler.List)
					g.Get("/contracts/{id}", contractHandler.Get)
				})
				p.With(auth.RequirePermission(auth.PermAuditRead)).Get("/audit-logs", auditHandler.List)
				adminHandler.Routes(p)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown http server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Bool("twilio", cfg.TwilioEnabled()).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

// otpProvider falls back to the fixed-code mock when Twilio is not configured.
func otpProvider(cfg *config.Config, logger zerolog.Logger) otp.Provider {
	if !cfg.TwilioEnabled() {
		logger.Warn().Msg("twilio verify not configured; using mock otp provider")
		return otp.MockProvider{Code: app.EnvOrDefault("OTP_MOCK_CODE", "123456")}
	}
	return otp.TwilioVerify{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		ServiceSID: cfg.TwilioVerifyServiceSID,
		BaseURL:    cfg.TwilioBaseURL,
		HTTP:       upstreamClient(cfg, logger, "twilio"),
	}
}

func upstreamClient(cfg *config.Config, logger zerolog.Logger, target string) resilience.HTTPClient {
	return resilience.HTTPClient{
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Breaker:     resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget(target).WithLogger(logger),
		BaseBackoff: 200 * time.Millisecond,
		MaxAttempts: 3,
		Jitter:      0.2,
		Timeout:     cfg.UpstreamTimeout,
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
