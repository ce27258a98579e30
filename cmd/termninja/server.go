package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/cyberinferno/termninja/announce"
	"github.com/cyberinferno/termninja/auth"
	"github.com/cyberinferno/termninja/cacher"
	"github.com/cyberinferno/termninja/config"
	"github.com/cyberinferno/termninja/controller/lobby"
	"github.com/cyberinferno/termninja/heartbeat"
	"github.com/cyberinferno/termninja/hooks"
	"github.com/cyberinferno/termninja/lifecycle"
	"github.com/cyberinferno/termninja/logger"
	"github.com/cyberinferno/termninja/metrics"
	"github.com/cyberinferno/termninja/reload"
	"github.com/cyberinferno/termninja/store"
	"github.com/cyberinferno/termninja/store/memory"
	"github.com/cyberinferno/termninja/store/redisstore"
	"github.com/cyberinferno/termninja/store/sqlite"
)

const serviceName = "termninja"

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	if cfg.AutoReload && !reload.IsChild() {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sup := &reload.Supervisor{
			Dir:     cfg.ReloadDir,
			Delay:   cfg.ReloadDelay,
			Command: os.Args,
			Logger:  log.With(logger.Field{Key: "component", Value: "reload"}),
		}
		return sup.Run(ctx)
	}

	return serve(cmd.Context(), cfg, log)
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}

	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}
	cfg.AutoReload = autoReload

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

func newLogger(cfg config.Config) (logger.Logger, error) {
	return logger.New(logger.Options{
		Service: serviceName,
		Level:   logger.ParseLevel(cfg.LogLevel),
		Console: cfg.LogFormat == "console",
		Output:  os.Stderr,
		Dir:     cfg.LogDir,
	})
}

func serve(ctx context.Context, cfg config.Config, log logger.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	st, cache, err := newStore(cfg)
	if err != nil {
		return err
	}

	c := lifecycle.New(lifecycle.Options{
		Store:           st,
		Hooks:           newHooks(cfg, st, cache, log),
		Factory:         lobby.Factory(log.With(logger.Field{Key: "component", Value: "lobby"})),
		Addr:            cfg.ListenAddr(),
		PlayerCount:     cfg.PlayerCount,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          log,
		Metrics:         metrics.New(reg),
		MetricsAddr:     cfg.MetricsAddr,
		Gatherer:        reg,
	})

	return c.Run(ctx)
}

// newStore picks the persistence driver and a token cache that suits it.
// A zero TTL disables caching.
func newStore(cfg config.Config) (store.Store, cacher.Cacher[store.User], error) {
	ttl := cfg.TokenCacheTTL

	switch cfg.StoreDriver {
	case config.DriverSQLite:
		return sqlite.New(cfg.StoreDSN), memoryCache(ttl), nil
	case config.DriverRedis:
		rs, err := redisstore.New(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		if ttl <= 0 {
			return rs, nil, nil
		}
		return rs, cacher.NewRedisCacher[store.User](rs.Client(), cfg.Redis.KeyPrefix+":cache:users", ttl), nil
	case config.DriverMemory:
		return memory.New(), memoryCache(ttl), nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown store driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}
}

func memoryCache(ttl time.Duration) cacher.Cacher[store.User] {
	if ttl <= 0 {
		return nil
	}

	return cacher.NewMemoryCacher[store.User](ttl, 2*ttl)
}

// newHooks composes the hook chain, outermost first:
//
//	heartbeat -> announce -> auth -> base
//
// heartbeat and announce only add work to OnStarted and delegate
// everything else. auth answers ShouldAccept itself and prints the
// player's profile before the base continuation prompt.
func newHooks(cfg config.Config, st store.Store, cache cacher.Cacher[store.User], log logger.Logger) hooks.Hooks {
	modules := []hooks.Module{
		heartbeat.Module(heartbeat.Options{
			Games:       st.Games(),
			Description: cfg.Description,
			Port:        cfg.Port,
			Interval:    cfg.HeartbeatInterval,
			Logger:      log.With(logger.Field{Key: "component", Value: "heartbeat"}),
		}),
	}

	if cfg.DiscordWebhook != "" {
		modules = append(modules, announce.Module(announce.Options{
			Webhook: cfg.DiscordWebhook,
			Port:    cfg.Port,
			Logger:  log.With(logger.Field{Key: "component", Value: "announce"}),
		}))
	}

	if cfg.Auth {
		modules = append(modules, auth.Module(auth.Options{
			Users:  st.Users(),
			Cache:  cache,
			Logger: log.With(logger.Field{Key: "component", Value: "auth"}),
		}))
	}

	return hooks.Chain(hooks.NewBase(cfg.ServerName), modules...)
}
