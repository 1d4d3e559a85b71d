package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jrsteele09/go-session-gate/authbridge"
	"github.com/jrsteele09/go-session-gate/bus"
	"github.com/jrsteele09/go-session-gate/bus/redisrelay"
	"github.com/jrsteele09/go-session-gate/identity"
	"github.com/jrsteele09/go-session-gate/identity/devserver"
	"github.com/jrsteele09/go-session-gate/internal/config"
	"github.com/jrsteele09/go-session-gate/internal/logging"
	"github.com/jrsteele09/go-session-gate/internal/metrics"
	"github.com/jrsteele09/go-session-gate/refresh"
	"github.com/jrsteele09/go-session-gate/refresh/redislock"
	"github.com/jrsteele09/go-session-gate/server"
	"github.com/jrsteele09/go-session-gate/sessions"
	"github.com/jrsteele09/go-session-gate/sessions/memstore"
	"github.com/jrsteele09/go-session-gate/sessions/redisstore"
	"github.com/jrsteele09/go-session-gate/users"
	fakeuserrepo "github.com/jrsteele09/go-session-gate/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetLogLevel(), c.GetEnv())
	displayAppname(c.GetAppName())

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	b := bus.New(bus.WithMetrics(m))

	var (
		store        sessions.Store
		relay        *redisrelay.Relay
		refreshClaim []refresh.Option
	)
	if addr := c.GetRedisAddr(); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("[serve] redis %s: %w", addr, err)
		}
		store = redisstore.New(rdb, c.GetRedisPrefix())
		relay = redisrelay.New(rdb, b, c.GetRedisPrefix())
		// Replicas share one renewal per session; the claim outlives a slow renewal call
		locker := redislock.New(rdb, c.GetRedisPrefix(), 2*c.GetRenewalTimeout())
		refreshClaim = append(refreshClaim, refresh.WithLocker(locker, 2*c.GetRenewalTimeout()))
		log.Info().Str("addr", addr).Msg("sessions held in redis")
	} else {
		store = memstore.New()
		log.Info().Msg("sessions held in memory")
	}

	identityService, renewer, devIdentity, err := identityServices(c)
	if err != nil {
		return err
	}

	coordinator := refresh.NewCoordinator(store, renewer, b, append(refreshClaim,
		refresh.WithMetrics(m),
		refresh.WithSignOutHook(func(_ context.Context, sessionID string, reason error) {
			log.Info().Str("session", sessionID).AnErr("reason", reason).Msg("session signed out")
		}),
	)...)

	defaultType, ok := users.ParseRole(c.GetDefaultUserType())
	if !ok {
		log.Warn().Str("type", c.GetDefaultUserType()).Msg("unknown default user type, using student")
		defaultType = users.RoleStudent
	}

	oidcConfig, err := server.NewOidcConfig(ctx, c)
	if err != nil {
		log.Warn().Err(err).Msg("OAuth sign-in disabled")
		oidcConfig = nil
	}

	handler, err := server.New(c, server.Services{
		Store:       store,
		Bus:         b,
		Coordinator: coordinator,
		Bridge:      authbridge.New(identityService, authbridge.WithDefaultUserType(defaultType)),
		Metrics:     m,
		OIDC:        oidcConfig,
		DevIdentity: devIdentity,
	}, nil)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listenAndServe(httpServer)
	})
	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(httpServer)
	})

	returnError = g.Wait()
	log.Info().Msg("Server stopped")
	return returnError
}

// identityServices picks the account service. Without IDENTITY_URL the DEV
// environment runs the in-memory one, mounted under /identity.
func identityServices(c config.Config) (identity.Service, refresh.Renewer, http.Handler, error) {
	if baseURL := c.GetIdentityURL(); baseURL != "" {
		log.Info().Str("url", baseURL).Str("renewal", c.GetRenewalURL()).Msg("using identity service")
		return identity.NewClient(baseURL, c.GetRenewalTimeout()), refresh.NewHTTPRenewer(c.GetRenewalURL(), c.GetRenewalTimeout()), nil, nil
	}
	if c.GetEnv() != "DEV" {
		return nil, nil, nil, errors.New("[serve] IDENTITY_URL is required outside DEV")
	}

	log.Warn().Msg("IDENTITY_URL not set, using the in-memory development identity service")
	dev := devserver.New(fakeuserrepo.NewFakeUserRepo(), []byte(c.GetDevSigningKey()))
	return dev, dev, dev.Handler(), nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
