// Server runs the authcore HTTP API and the gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/health"

	"authcore/internal/audit"
	audithandler "authcore/internal/audit/handler"
	auditrepo "authcore/internal/audit/repository"
	"authcore/internal/autherr"
	"authcore/internal/authz"
	"authcore/internal/config"
	"authcore/internal/credential"
	"authcore/internal/db"
	healthcheck "authcore/internal/health"
	identitydomain "authcore/internal/identity/domain"
	identityhandler "authcore/internal/identity/handler"
	identityrepo "authcore/internal/identity/repository"
	identityservice "authcore/internal/identity/service"
	"authcore/internal/logging"
	"authcore/internal/mailer"
	"authcore/internal/metrics"
	"authcore/internal/policy/engine"
	rolerepo "authcore/internal/role/repository"
	"authcore/internal/security"
	"authcore/internal/server"
	"authcore/internal/server/interceptors"
	sessionhandler "authcore/internal/session/handler"
	sessionrepo "authcore/internal/session/repository"
	sessionservice "authcore/internal/session/service"
	"authcore/internal/telemetry"
	teldomain "authcore/internal/telemetry/domain"
	telotel "authcore/internal/telemetry/otel"
	"authcore/internal/telemetry/producer"
	"authcore/internal/tokenstore"
)

const (
	serviceName        = "authcore"
	readHeaderTimeout  = 10 * time.Second
	shutdownTimeout    = 15 * time.Second
	healthSyncInterval = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.New("info", "json", serviceName)
		l.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	if err := cfg.ValidateAuth(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telotel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	providers.SetGlobal()

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	redisCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	rdb, err := db.OpenRedis(redisCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	cancel()
	if err != nil {
		return err
	}
	defer rdb.Close()

	tokens, err := security.NewTokenIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return err
	}
	storeTimeout := cfg.StoreTimeout()
	store := tokenstore.NewRedisStore(rdb, storeTimeout)
	vault := credential.NewVault(security.NewHasher(cfg.BcryptCost), credential.NewRedisResetStore(rdb, storeTimeout), cfg.ResetTokenTTL())
	sessions := sessionservice.NewRegistry(sessionrepo.NewPostgresRepository(sqlDB), storeTimeout)
	gate := identityservice.NewGate(tokens, store)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	counters, err := metrics.NewRecorder(registry)
	if err != nil {
		return err
	}

	audits := auditrepo.NewPostgresRepository(sqlDB)
	kafkaProducer := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuthEventsTopic)
	defer kafkaProducer.Close()
	recorder := &telemetry.Recorder{
		Audit:   audit.NewLogger(audits, interceptors.ClientIP, logging.Component(log, "audit")),
		Emitter: telemetry.MultiEmitter{kafkaProducer, telotel.NewEventEmitter(providers.LoggerProvider)},
		Metrics: counters,
		IP:      interceptors.ClientIP,
		Log:     logging.Component(log, "telemetry"),
	}

	var mail identityservice.Mailer = mailer.NewLogMailer(logging.Component(log, "mailer"))
	if cfg.MailRelayURL != "" {
		mail = mailer.NewHTTPRelay(cfg.MailRelayURL, cfg.MailRelayAPIKey, cfg.MailFrom)
	}

	authSvc := identityservice.NewAuthService(identityservice.Deps{
		Identities: identityrepo.NewPostgresRepository(sqlDB),
		Vault:      vault,
		Tokens:     tokens,
		Store:      store,
		Sessions:   sessions,
		Mailer:     mail,
		Observer:   recorder,
		Logger:     logging.Component(log, "auth"),
	}, identityservice.Options{ResetURLBase: cfg.ResetURLBase, StoreTimeout: storeTimeout})

	decider, err := engine.NewRegoDecider(ctx)
	if err != nil {
		return err
	}
	resolver := authz.NewResolver(rolerepo.NewPostgresRepository(sqlDB), authz.NewRedisCache(rdb), decider, authz.Options{
		CacheTTL: cfg.AuthzCacheTTL(),
		Timeout:  storeTimeout,
		Metrics:  counters,
		Logger:   logging.Component(log, "authz"),
	})

	proxies, err := interceptors.ParseTrustedProxies(cfg.TrustedProxiesList())
	if err != nil {
		return fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
	}

	checker := healthcheck.NewChecker(storeTimeout)
	checker.Add("postgres", healthcheck.PingCheck(sqlDB))
	checker.Add("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	checker.Add("policy", healthcheck.PolicyCheck(decider))

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.Router(server.RouterOptions{
			Auth:       identityhandler.NewHandler(authSvc, logging.Component(log, "http")),
			Sessions:   sessionhandler.NewHandler(sessions, recorder, logging.Component(log, "http")),
			Audit:      audithandler.NewHandler(audits),
			Gate:       gate,
			Authorizer: resolver,
			OnDenied: func(ctx context.Context, p *identitydomain.Principal, req authz.Requirement, err error) {
				if p == nil {
					return
				}
				recorder.Observe(ctx, &teldomain.AuthEvent{
					Type:       teldomain.EventAuthorizationDenied,
					IdentityID: p.IdentityID,
					SessionID:  p.SessionID,
					Reason:     string(autherr.KindOf(err)),
					Source:     "rbac",
				})
			},
			Health:             checker,
			Gatherer:           registry,
			AllowedOrigins:     cfg.CORSOrigins(),
			TrustedProxies:     proxies,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
			Logger:             logging.Component(log, "http"),
			ServiceName:        serviceName,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	hs := health.NewServer()
	grpcSrv := server.NewGRPCServer(server.Deps{Auth: gate, Health: hs, TrustedProxies: proxies})
	go checker.Watch(ctx, hs, "", healthSyncInterval)

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		go func() {
			log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc server listening")
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("server failed, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	hs.Shutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	grpcSrv.GracefulStop()

	delivered := make(chan struct{})
	go func() {
		authSvc.WaitDeliveries()
		close(delivered)
	}()
	select {
	case <-delivered:
	case <-shutdownCtx.Done():
		log.Warn().Msg("reset email deliveries still pending at shutdown")
	}

	// Let in-flight async emits finish before the exporters close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("stopped")
	return nil
}
