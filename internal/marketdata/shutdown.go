package marketdata

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MinLogoutGrace is the shortest wait between the logout request and teardown
const MinLogoutGrace = 300 * time.Millisecond

// LogoutReason is sent as Text(58) on the client's Logout
const LogoutReason = "Client exit"

// ShutdownResult reports what the coordinator managed to send
type ShutdownResult struct {
	UnsubscribeErr error
	LogoutErr      error
	Waited         time.Duration
}

// Shutdown unsubscribes, then requests logout, then waits at least
// MinLogoutGrace for the logout handshake. Failures are logged and returned in
// the result; every step runs regardless of earlier failures. A done ctx only
// cuts the grace wait short.
func Shutdown(ctx context.Context, logger *zap.Logger, h *Handler, grace time.Duration) ShutdownResult {
	var res ShutdownResult

	if err := h.Unsubscribe(); err != nil {
		res.UnsubscribeErr = err
		logger.Warn("Unsubscribe failed during shutdown", zap.Error(err))
	}

	if err := h.Logout(LogoutReason); err != nil {
		res.LogoutErr = err
		logger.Warn("Logout request failed", zap.Error(err))
	} else {
		logger.Info("Logout requested", zap.String("reason", LogoutReason))
	}

	if grace < MinLogoutGrace {
		grace = MinLogoutGrace
	}
	start := time.Now()
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	res.Waited = time.Since(start)
	return res
}
