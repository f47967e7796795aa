package engine

import (
	"context"

	"go.uber.org/zap"

	"tunelink/internal/domain"
	"tunelink/internal/pairing"
	"tunelink/internal/settings"
)

// Engine applies user settings to the integrations: it enables and disables
// the companion gateway and the presence integration, and keeps the pairing
// window in step with its persisted state. It reacts both at startup and on
// every settings change, including changes applied externally to the
// settings file.
type Engine struct {
	logger   *zap.Logger
	settings domain.Settings
	window   *pairing.Controller
	gateway  domain.Integration
	presence domain.Integration

	cancelWatch func()
}

// NewEngine creates the orchestration engine
func NewEngine(
	logger *zap.Logger,
	store domain.Settings,
	window *pairing.Controller,
	gateway domain.Integration,
	presence domain.Integration,
) *Engine {
	return &Engine{
		logger:   logger,
		settings: store,
		window:   window,
		gateway:  gateway,
		presence: presence,
	}
}

// Start restores the pairing window, applies the current settings and
// begins reacting to changes
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("Engine starting...")

	e.window.Reconcile()
	e.applyCompanion()
	e.applyPresence()

	e.cancelWatch = e.settings.OnChange(e.onSettingChanged)
	return nil
}

// Stop detaches from settings changes and tears the integrations down
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("Engine stopping...")

	if e.cancelWatch != nil {
		e.cancelWatch()
		e.cancelWatch = nil
	}
	e.presence.Disable()
	e.gateway.Disable()
	return nil
}

// onSettingChanged runs in the goroutine of whoever wrote the setting.
// Pairing keys are written by the window controller itself, so their
// reconcile is dispatched asynchronously rather than re-entering it.
func (e *Engine) onSettingChanged(key, value string) {
	switch key {
	case settings.KeyCompanionEnabled:
		e.applyCompanion()

	case settings.KeyPresenceEnabled:
		e.applyPresence()

	case settings.KeyPairingEnabled, settings.KeyPairingOpenedAt:
		go e.window.Reconcile()
	}
}

// applyCompanion gates the whole companion surface. Turning it off closes
// the pairing window too: a disabled feature must not leave a live pairing
// window behind.
func (e *Engine) applyCompanion() {
	if e.enabled(settings.KeyCompanionEnabled) {
		if err := e.gateway.Enable(); err != nil {
			e.logger.Error("Failed to enable companion gateway", zap.Error(err))
		}
		return
	}
	e.gateway.Disable()
	e.window.Close()
}

func (e *Engine) applyPresence() {
	if e.enabled(settings.KeyPresenceEnabled) {
		if err := e.presence.Enable(); err != nil {
			e.logger.Error("Failed to enable presence integration", zap.Error(err))
		}
		return
	}
	e.presence.Disable()
}

func (e *Engine) enabled(key string) bool {
	v, _ := e.settings.Get(key)
	return v == "true"
}
