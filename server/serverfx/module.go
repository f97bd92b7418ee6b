// Package serverfx assembles the bridge from a Config with fx: logger,
// metrics, cache, capability registry, executor, uwsgi server and the
// admin endpoint, started and stopped through the fx lifecycle.
package serverfx

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reglet-dev/luabridge/domain/entities"
	"github.com/reglet-dev/luabridge/domain/ports"
	"github.com/reglet-dev/luabridge/host"
	"github.com/reglet-dev/luabridge/hostfuncs"
	"github.com/reglet-dev/luabridge/infrastructure/cache"
	"github.com/reglet-dev/luabridge/infrastructure/metrics"
	applog "github.com/reglet-dev/luabridge/log"
	"github.com/reglet-dev/luabridge/server"
)

// Endpoints holds the addresses bound when the app started. With port 0 in
// the configuration these are the only way to learn the real ports.
type Endpoints struct {
	UWSGI net.Addr
	Admin net.Addr
}

// Module returns the complete fx option set for cfg.
func Module(cfg entities.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideMetrics,
			provideCache,
			provideRegistry,
			provideExecutor,
			provideServer,
			func() *Endpoints { return &Endpoints{} },
		),
		fx.Invoke(registerHooks),
	)
}

// ---- Providers ----

func provideLogger(cfg entities.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := []applog.Option{
		applog.WithDir(cfg.Log.Dir),
		applog.WithLevel(level),
		applog.WithRotation(cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays),
	}
	if !cfg.Log.Console {
		opts = append(opts, applog.WithConsole(nil))
	}
	return applog.NewLogger("luabridge", opts...)
}

func provideMetrics() (*metrics.Collectors, error) {
	return metrics.New(nil)
}

func provideCache(lc fx.Lifecycle, cfg entities.Config, logger *zap.Logger) (ports.Cache, error) {
	if cfg.Cache.Driver != "sqlite" {
		return cache.NewMemoryStore(), nil
	}
	store, err := cache.OpenSQLite(cfg.Cache.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("using sqlite cache", zap.String("path", cfg.Cache.Path))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				purgeLoop(ctx, store, cfg.Cache.PurgeInterval.Std(), logger.Named("cache"))
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return store.Close()
		},
	})
	return store, nil
}

type purger interface {
	Purge(ctx context.Context) (int64, error)
}

// purgeLoop deletes expired entries every interval until ctx is cancelled.
func purgeLoop(ctx context.Context, p purger, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Purge(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("cache purge failed", zap.Error(err))
				}
				continue
			}
			if n > 0 {
				logger.Debug("purged expired cache entries", zap.Int64("removed", n))
			}
		}
	}
}

type registryDeps struct {
	fx.In
	Config  entities.Config
	Logger  *zap.Logger
	Metrics *metrics.Collectors
	Cache   ports.Cache
}

func provideRegistry(d registryDeps) (*hostfuncs.HandlerRegistry, error) {
	return hostfuncs.NewRegistry(
		hostfuncs.WithMiddleware(
			hostfuncs.PanicRecoveryMiddleware(),
			d.Metrics.CapabilityMiddleware(),
			hostfuncs.LoggingMiddleware(d.Logger.Named("hostfuncs")),
		),
		hostfuncs.WithBundle(hostfuncs.BridgeBundle(hostfuncs.BridgeDeps{
			Cache:       d.Cache,
			Logger:      applog.NewLineLogger(os.Stderr),
			Diagnostics: d.Logger,
			MessageOptions: []hostfuncs.MessageOption{
				hostfuncs.WithMessageTimeout(d.Config.MessageTimeout.Std()),
				hostfuncs.WithMessageLogger(d.Logger.Named("message")),
				hostfuncs.WithMessageObserver(d.Metrics),
			},
		})),
	)
}

type executorDeps struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    entities.Config
	Logger    *zap.Logger
	Metrics   *metrics.Collectors
	Registry  *hostfuncs.HandlerRegistry
}

func provideExecutor(d executorDeps) (*host.Executor, error) {
	access := applog.MultiAccessLogger{d.Metrics}
	if d.Config.Logging {
		access = append(access, applog.NewAccessLog(d.Logger.Named("access")))
	}
	var collector host.Collector
	if d.Config.GCAfterRequest {
		collector = host.GCCollector{}
	}

	exec, err := host.NewExecutor(context.Background(),
		host.WithHostFunctions(d.Registry),
		host.WithScriptFile(d.Config.Script),
		host.WithSlots(d.Config.Slots),
		host.WithAsync(d.Config.Async),
		host.WithLogger(d.Logger),
		host.WithAccessLog(access),
		host.WithCollector(collector),
	)
	if err != nil {
		return nil, err
	}
	// appended before the server hook, so it stops after the server
	d.Lifecycle.Append(fx.Hook{OnStop: exec.Close})
	return exec, nil
}

func provideServer(cfg entities.Config, exec *host.Executor, logger *zap.Logger, m *metrics.Collectors) (*server.Server, error) {
	return server.New(exec,
		server.WithLogger(logger),
		server.WithTracker(m),
		server.WithModifier1(uint8(cfg.Modifier1)),
		server.WithQueueSize(cfg.QueueSize),
		server.WithReadTimeout(cfg.ReadTimeout.Std()),
	)
}

// ---- Server lifecycle ----

type serverDeps struct {
	fx.In
	Config     entities.Config
	Logger     *zap.Logger
	Metrics    *metrics.Collectors
	Server     *server.Server
	Endpoints  *Endpoints
	Shutdowner fx.Shutdowner
}

func registerHooks(lc fx.Lifecycle, d serverDeps) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var admin *http.Server

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", d.Config.Listen)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", d.Config.Listen, err)
			}
			d.Endpoints.UWSGI = ln.Addr()

			if d.Config.Admin.Listen != "" {
				aln, err := net.Listen("tcp", d.Config.Admin.Listen)
				if err != nil {
					_ = ln.Close()
					return fmt.Errorf("listening on %s: %w", d.Config.Admin.Listen, err)
				}
				d.Endpoints.Admin = aln.Addr()
				admin = &http.Server{
					Handler:           d.Server.AdminRouter(d.Metrics),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := admin.Serve(aln); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
						d.Logger.Error("admin server failed", zap.Error(err))
					}
				}()
				d.Logger.Info("admin endpoint started", zap.String("addr", aln.Addr().String()))
			}

			go func() {
				err := d.Server.Serve(ctx, ln)
				done <- err
				if err != nil {
					d.Logger.Error("uwsgi server failed", zap.Error(err))
					_ = d.Shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if admin != nil {
				_ = admin.Shutdown(stopCtx)
			}
			select {
			case err := <-done:
				d.Logger.Info("server stopped")
				return err
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
