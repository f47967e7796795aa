package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"tunelink/internal/config"
	"tunelink/internal/domain"
	"tunelink/internal/engine"
	"tunelink/internal/fetcher"
	"tunelink/internal/gateway"
	"tunelink/internal/notify"
	"tunelink/internal/pairing"
	"tunelink/internal/playerstate"
	"tunelink/internal/presence"
	"tunelink/internal/renderer"
	"tunelink/internal/settings"
	"tunelink/internal/telemetry"
	"tunelink/internal/vault"
)

// AppOptions is the full dependency graph, shared with the tests
var AppOptions = fx.Options(
	fx.Provide(
		newLogger,
		config.NewAppConfig,

		newSettingsStore,
		func(s *settings.Store) domain.Settings { return s },

		vault.NewKeyring,
		func(k *vault.Keyring) vault.KeyProvider { return k },
		vault.New,
		func(v *vault.Vault) domain.SecretCipher { return v },
		func(v *vault.Vault) pairing.Cipher { return v },

		playerstate.NewHub,
		func(h *playerstate.Hub) domain.StateSource { return h },

		renderer.NewBridge,
		func(b *renderer.Bridge) domain.Renderer { return b },

		newNormalizer,

		pairing.NewController,
		func(c *pairing.Controller) gateway.Gate { return c },

		gateway.NewTokenStore,
		newGatewayServer,

		presence.NewClient,
		presence.New,

		fetcher.NewHTTPFetcher,
		func(f *fetcher.HTTPFetcher) domain.Fetcher { return f },

		newNowPlaying,
		newEngine,
	),
	fx.Invoke(registerHooks),
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		AppOptions,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	<-ctx.Done()

	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
}

// newLogger creates a new zap logger instance
func newLogger() (*zap.Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

func newSettingsStore(logger *zap.Logger, cfg *config.AppConfig) (*settings.Store, error) {
	return settings.NewStore(logger, cfg.GetSettingsPath())
}

func newNormalizer(logger *zap.Logger, hub *playerstate.Hub, store domain.Settings, bridge *renderer.Bridge) *telemetry.Normalizer {
	return telemetry.NewNormalizer(logger, hub, store, bridge.Events())
}

func newGatewayServer(
	logger *zap.Logger,
	cfg *config.AppConfig,
	gate gateway.Gate,
	tokens *gateway.TokenStore,
	states domain.StateSource,
	rend domain.Renderer,
) *gateway.Server {
	return gateway.NewServer(logger, cfg.GetListenAddr(), gate, tokens, states, rend)
}

func newNowPlaying(
	logger *zap.Logger,
	cfg *config.AppConfig,
	fetch domain.Fetcher,
	store domain.Settings,
	states domain.StateSource,
) *notify.NowPlaying {
	return notify.NewNowPlaying(logger, fetch, store, states, cfg.GetCacheDir())
}

func newEngine(
	logger *zap.Logger,
	store domain.Settings,
	window *pairing.Controller,
	gw *gateway.Server,
	pr *presence.Presence,
) *engine.Engine {
	return engine.NewEngine(logger, store, window, gw, pr)
}

// pairingOpener is the slice of the pairing controller the signal watcher
// needs.
type pairingOpener interface {
	Open(ctx context.Context) error
}

// watchPairingSignal opens the pairing window on SIGUSR1. The daemon is
// headless, so the signal is the local control surface: only a user or a
// shell helper with access to the process can open the window. The handler
// is registered before this returns; the loop runs until ctx is cancelled.
func watchPairingSignal(ctx context.Context, logger *zap.Logger, window pairingOpener) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				if err := window.Open(ctx); err != nil {
					logger.Warn("Pairing window open failed", zap.Error(err))
				}
			}
		}
	}()
}

// registerHooks sets up application lifecycle hooks
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	store *settings.Store,
	normalizer *telemetry.Normalizer,
	notifier *notify.NowPlaying,
	eng *engine.Engine,
	window *pairing.Controller,
	keys *vault.Keyring,
) {
	watchCtx, cancelWatch := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Tunelink daemon starting")

			go func() {
				if err := store.Watch(watchCtx); err != nil {
					logger.Warn("Settings watch stopped", zap.Error(err))
				}
			}()
			watchPairingSignal(watchCtx, logger, window)

			if err := normalizer.Start(watchCtx); err != nil {
				return err
			}
			if err := notifier.Start(ctx); err != nil {
				return err
			}
			return eng.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")

			if err := eng.Stop(ctx); err != nil {
				return err
			}
			if err := notifier.Stop(ctx); err != nil {
				return err
			}
			cancelWatch()
			return keys.Close()
		},
	})
}
