package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nkiryanov/gopherauth/internal/db"
	"github.com/nkiryanov/gopherauth/internal/handlers"
	"github.com/nkiryanov/gopherauth/internal/kvstore"
	"github.com/nkiryanov/gopherauth/internal/kvstore/memory"
	kvredis "github.com/nkiryanov/gopherauth/internal/kvstore/redis"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/models"
	"github.com/nkiryanov/gopherauth/internal/repository"
	"github.com/nkiryanov/gopherauth/internal/repository/kv"
	"github.com/nkiryanov/gopherauth/internal/repository/postgres"
	"github.com/nkiryanov/gopherauth/internal/service/account"
	"github.com/nkiryanov/gopherauth/internal/service/auth"
	"github.com/nkiryanov/gopherauth/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/gopherauth/internal/service/code"
	"github.com/nkiryanov/gopherauth/internal/service/janitor"
	"github.com/nkiryanov/gopherauth/internal/service/notify"
	"github.com/nkiryanov/gopherauth/internal/service/password"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger  logger.Logger
	janitor *janitor.Janitor

	// Called in reverse order after server stopped
	closers []func()
}

func NewServerApp(ctx context.Context, c *Config) (_ *ServerApp, err error) {
	app := &ServerApp{ListenAddr: c.ListenAddr}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	// Initialize logger
	app.logger, err = logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	app.closers = append(app.closers, pool.Close)

	storage := postgres.NewStorage(pool)
	purgers := map[string]janitor.Purger{}

	// Codes and issued tokens registry; revoked tokens too for kv revocation store
	var store kvstore.Store
	if c.RedisAddr != "" {
		client, err := kvredis.Connect(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		store = kvredis.New(client, "gopherauth:")
	} else {
		mem := memory.New()
		purgers["memory"] = janitor.PurgerFunc(mem.Sweep)
		store = mem
	}

	var revoked repository.RevokedTokenRepo
	switch c.RevocationStore {
	case RevocationStoreKV:
		revoked = kv.NewRevokedTokenRepo(store, time.Now)
	default:
		revoked = storage.Revoked()
		purgers["revoked_tokens"] = janitor.PurgerFunc(func(ctx context.Context) (int64, error) {
			return revoked.DeleteExpired(ctx, time.Now())
		})
	}

	// Initialize services
	passwords := password.NewService(
		password.NewPolicy(password.Config{
			MinLength: c.PasswordMinLength,
			MaxLength: c.PasswordMaxLength,
			Strict:    c.PasswordStrict,
		}),
		password.BcryptHasher{},
	)
	codes := code.NewService(code.Config{TTL: c.CodeTTL}, store)

	sender := newSender(c, app.logger)

	newServices := func(kind models.AccountKind, prefix string) (handlers.Services, error) {
		log := app.logger.With("kind", string(kind))

		accounts, err := account.NewService(kind, storage, passwords, codes, sender, log)
		if err != nil {
			return handlers.Services{}, err
		}

		tokens, err := tokenmanager.New(
			tokenmanager.Config{
				SecretKey:  c.SecretKey,
				Alg:        c.SigningAlg,
				AccessTTL:  c.AccessTTL,
				RefreshTTL: c.RefreshTTL,
			},
			revoked,
			store,
			accounts,
		)
		if err != nil {
			return handlers.Services{}, fmt.Errorf("error while creating token manager. Err: %w", err)
		}

		authService, err := auth.NewService(
			auth.Config{
				RefreshCookiePath: prefix,
				SecureCookie:      c.Environment == logger.EnvProduction,
			},
			tokens,
			accounts,
			log,
		)
		if err != nil {
			return handlers.Services{}, fmt.Errorf("error while creating auth service. Err: %w", err)
		}

		return handlers.Services{Auth: authService, Accounts: accounts}, nil
	}

	users, err := newServices(models.KindUser, "/api/users")
	if err != nil {
		return nil, err
	}
	customers, err := newServices(models.KindCustomer, "/api/customers")
	if err != nil {
		return nil, err
	}

	app.Handler = handlers.NewRouter(users, customers, app.logger)
	app.janitor = janitor.New(c.SweepInterval, app.logger, purgers)

	return app, nil
}

func (s *ServerApp) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Run starts http server and janitor; closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	janitorStopped := s.janitor.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
			_ = httpServer.Close()
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-janitorStopped

	return err
}

// Codes are logged only in development; elsewhere a missing mail server fails every send
func newSender(c *Config, l logger.Logger) notify.Sender {
	switch {
	case c.SMTPAddr != "":
		return notify.NewSMTPSender(notify.SMTPConfig{
			Addr:     c.SMTPAddr,
			From:     c.SMTPFrom,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
		})
	case c.Environment == logger.EnvDevelopment:
		return notify.LogSender{Logger: l}
	default:
		l.Warn("SMTP server is not configured, password reset codes can't be delivered")
		return notify.DisabledSender{}
	}
}
