package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/leadkit/gateway/internal/audit"
	"github.com/leadkit/gateway/internal/config"
	"github.com/leadkit/gateway/internal/gateway"
	"github.com/leadkit/gateway/internal/handler"
	"github.com/leadkit/gateway/internal/ratelimit"
	"github.com/leadkit/gateway/internal/server"
	"github.com/leadkit/gateway/internal/service"
)

const (
	janitorInterval   = 10 * time.Minute
	auditFlushTimeout = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the CRM API gateway",
		Long:  "Start the HTTP server that exposes the CRM API, the admin API and the operational endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().Bool("debug", false, "Include internal error text in 500 responses")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("server.debug", cmd.Flags().Lookup("debug"))

	return cmd
}

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Store
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("store ready", "driver", st.Driver(), "config", cfg.File)

	ready := []server.ReadyCheck{{Name: "store", Check: st.Ping}}

	// 2. Rate limit counters
	var counter ratelimit.Counter
	counterRetention := cfg.RateLimit.CounterRetention
	switch cfg.RateLimit.Backend {
	case "redis":
		rdb, err := ratelimit.NewRedisClient(ctx, ratelimit.RedisConfig{
			Addr:     cfg.RateLimit.Redis.Addr,
			Password: cfg.RateLimit.Redis.Password,
			DB:       cfg.RateLimit.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		counter = ratelimit.NewRedisCounter(rdb)
		ready = append(ready, server.ReadyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		// Redis expires its own keys.
		counterRetention = 0
	default:
		counter = ratelimit.NewStoreCounter(st)
	}
	limiter := ratelimit.New(counter, logger, ratelimit.WithFailOpen(cfg.RateLimit.FailOpen))
	logger.Info("rate limiter ready", "backend", cfg.RateLimit.Backend, "fail_open", cfg.RateLimit.FailOpen)

	// 3. Audit log
	auditLog := audit.New(st, logger, cfg.Audit.BufferSize)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), auditFlushTimeout)
		defer cancel()
		if err := auditLog.Close(flushCtx); err != nil {
			logger.Warn("audit log not fully flushed", "error", err)
		}
	}()

	// 4. Gateway and resources
	gw := gateway.New(gatewayConfig(cfg), service.NewAuthenticator(st, limiter, logger), auditLog, logger)
	handler.Register(gw, st)

	// 5. HTTP server
	tokens := service.NewAdminTokens(cfg.Auth.AdminSecret)
	if !tokens.Enabled() {
		logger.Warn("auth.admin_secret not set; admin API disabled")
	}
	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Server.Host
	srvCfg.Port = cfg.Server.Port
	srvCfg.TrustProxyHeaders = cfg.Server.TrustProxyHeaders
	if cfg.Server.ShutdownTimeout > 0 {
		srvCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}
	srv := server.New(srvCfg, server.Deps{
		Gateway:     gw,
		Admin:       handler.NewAdminHandler(st, logger),
		AdminTokens: tokens,
		OpenAPI:     handler.NewOpenAPIHandler(cfg.Server.FunctionName, versionString()),
		Ready:       ready,
	}, logger)

	printBanner(cfg, srv.Addr(), gw.Resources(), logger)

	// 6. Run server and janitor until a signal or a fatal error.
	janitor := service.NewJanitor(st, logger, janitorInterval, counterRetention, cfg.Audit.Retention)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	g.Go(func() error { return janitor.Run(gctx) })
	return g.Wait()
}

func gatewayConfig(cfg *config.Config) gateway.Config {
	return gateway.Config{
		FunctionName: cfg.Server.FunctionName,
		Debug:        cfg.Server.Debug,
		IPRateLimit:  cfg.Server.IPRateLimit,
		CORS: gateway.CORSPolicy{
			Origins:         cfg.Server.CORS.Origins,
			SubdomainSuffix: cfg.Server.CORS.SubdomainSuffix,
		},
	}
}

func printBanner(cfg *config.Config, addr string, resources []string, logger *slog.Logger) {
	base := "/" + gateway.APIVersion
	if cfg.Server.FunctionName != "" {
		base = "/" + cfg.Server.FunctionName + base
	}
	fmt.Printf("→ LeadKit %s\n", versionString())
	fmt.Printf("→ Listening on http://%s\n", addr)
	fmt.Printf("→ CRM API:    http://%s%s\n", addr, base)
	fmt.Printf("→ OpenAPI:    http://%s/openapi.json\n", addr)
	fmt.Printf("→ Health:     http://%s/healthz\n", addr)
	fmt.Println()
	logger.Debug("resources registered", "resources", resources)
}
