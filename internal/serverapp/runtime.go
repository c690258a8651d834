package serverapp

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Reasons reported by WaitForStop.
const (
	StopReasonSignal      = "signal"
	StopReasonServerError = "server_error"
)

// Start launches the HTTP server goroutine. It requires Init to have completed.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, errors.New("app is not initialized")
	}
	if a.started {
		return a.serverErrors, nil
	}

	if a.manager != nil {
		if snap := a.manager.Current(); snap != nil && snap.Schema != nil {
			a.logger.Info("serving schema",
				slog.Int("entity_types", len(snap.Schema.EntityTypes())),
				slog.String("fingerprint", snap.SourceFingerprint),
			)
		}
	}

	a.serverErrors = startServer(a.cfg, a.logger, a.srv, a.serverAddr)
	a.started = true
	return a.serverErrors, nil
}

// WaitForStop blocks until a signal arrives on stop or the server reports on
// serverErrors. A nil serverErrors falls back to the channel returned by Start.
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (reason string, err error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		serverErrors = a.serverErrors
		a.stateMu.Unlock()
	}
	if stop == nil && serverErrors == nil {
		return "", errors.New("both stop and serverErrors channels are nil")
	}

	// A nil channel never becomes ready, so one select covers every case.
	select {
	case err := <-serverErrors:
		if err == nil {
			return StopReasonServerError, errors.New("server stopped unexpectedly")
		}
		return StopReasonServerError, fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		if a.logger != nil {
			a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		}
		return StopReasonSignal, nil
	}
}
