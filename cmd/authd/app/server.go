package app

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nutritrack/authcore"
	"github.com/nutritrack/authcore/httpapi"
	"github.com/nutritrack/authcore/internal/logger"
	promexport "github.com/nutritrack/authcore/metrics/export/prometheus"
	"github.com/nutritrack/authcore/userstore"
)

// backends holds the external clients the engine depends on. close releases
// them in reverse order of acquisition.
type backends struct {
	redis   redis.UniversalClient
	users   authcore.UserStore
	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, opts *ServerOptions, log *zap.Logger) (*backends, error) {
	b := &backends{}

	addrs := opts.Redis.Addrs
	if opts.Redis.Dev {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		b.closers = append(b.closers, mr.Close)
		addrs = []string{mr.Addr()}
		log.Warn("using in-process miniredis; sessions and tokens are lost on exit", zap.String("addr", mr.Addr()))
	}
	b.redis = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    addrs,
		Password: opts.Redis.Password,
		DB:       opts.Redis.DB,
	})
	b.closers = append(b.closers, func() { _ = b.redis.Close() })

	if opts.Postgres.DSN == "" {
		log.Warn("no postgres dsn configured; users are kept in memory")
		b.users = userstore.NewMemory()
		return b, nil
	}

	db, err := userstore.Open(ctx, opts.Postgres.DSN)
	if err != nil {
		b.close()
		return nil, err
	}
	b.closers = append(b.closers, func() { _ = db.Close() })
	if err := userstore.Migrate(ctx, db); err != nil {
		b.close()
		return nil, err
	}
	b.users = userstore.NewPostgres(db)
	return b, nil
}

// buildEngine wires the engine from opts and the opened backends.
func buildEngine(opts *ServerOptions, b *backends, log *zap.Logger) (*authcore.Engine, error) {
	cfg := opts.Auth
	if opts.DevKeys {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		cfg.JWT.SigningMethod = "EdDSA"
		cfg.JWT.PrivateKey = priv
		cfg.JWT.PublicKey = pub
		log.Warn("signing with an ephemeral key pair; tokens do not survive a restart")
	}

	builder := authcore.New().
		WithConfig(cfg).
		WithRedis(b.redis).
		WithUserStore(b.users).
		WithLogger(log)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(authcore.NewZapAuditSink(log))
	}
	return builder.Build()
}

// bootstrapAdmin creates the configured admin account unless it exists.
func bootstrapAdmin(ctx context.Context, engine *authcore.Engine, admin AdminOptions, log *zap.Logger) error {
	if admin.Username == "" {
		return nil
	}
	_, err := engine.Register(ctx, authcore.RegisterInput{
		Username: admin.Username,
		Email:    admin.Email,
		Password: admin.Password,
		Role:     "admin",
	})
	switch {
	case err == nil:
		log.Info("bootstrap admin created", zap.String("username", admin.Username))
		return nil
	case errors.Is(err, authcore.ErrIdentityExists):
		return nil
	default:
		return fmt.Errorf("bootstrap admin: %w", err)
	}
}

func newHTTPServer(opts *ServerOptions, engine *authcore.Engine, log *zap.Logger) (*http.Server, error) {
	metrics, err := promexport.Handler(promexport.NewCollector(engine))
	if err != nil {
		return nil, fmt.Errorf("metrics handler: %w", err)
	}

	routes, err := httpapi.New(engine, log,
		httpapi.WithMetricsHandler(metrics),
		httpapi.WithTrustForwarded(opts.TrustForwarded),
		httpapi.WithConnectSources(opts.ConnectSources),
	).Routes()
	if err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:              opts.Addr,
		Handler:           routes,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          zap.NewStdLog(log.Named("http")),
	}, nil
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, opts *ServerOptions) error {
	log, err := logger.New(opts.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	b, err := openBackends(ctx, opts, log)
	if err != nil {
		return err
	}
	defer b.close()

	engine, err := buildEngine(opts, b, log)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if err := engine.Ping(ctx); err != nil {
		log.Warn("store ping failed at startup", zap.Error(err))
	}
	if err := bootstrapAdmin(ctx, engine, opts.Admin, log); err != nil {
		return err
	}

	srv, err := newHTTPServer(opts, engine, log)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("grace", opts.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

