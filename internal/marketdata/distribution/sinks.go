// Package distribution fans decoded market data events out to logs, metrics
// and downstream backends.
package distribution

import (
	"fmt"
	"strings"

	"github.com/Aidin1998/pincex_fixmd/internal/marketdata"
	"github.com/Aidin1998/pincex_fixmd/pkg/metrics"
	"go.uber.org/zap"
)

// LogSink writes one log line per event
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log sink
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("quotes")}
}

// Publish implements marketdata.Sink
func (s *LogSink) Publish(ev marketdata.Event) {
	switch ev.Kind {
	case marketdata.EventSnapshot:
		if ev.Snapshot == nil {
			return
		}
		s.logger.Info(FormatSnapshot(*ev.Snapshot, len(ev.Issues)),
			zap.String("symbol", ev.Snapshot.Symbol),
			zap.Int("entries", len(ev.Snapshot.Entries)))
		for _, issue := range ev.Issues {
			s.logger.Warn("Skipped snapshot entry",
				zap.String("symbol", ev.Snapshot.Symbol),
				zap.Int("index", issue.Index),
				zap.String("reason", issue.Reason),
				zap.String("detail", issue.Detail))
		}
	case marketdata.EventReject:
		if ev.Reject == nil {
			return
		}
		s.logger.Warn(FormatReject(*ev.Reject),
			zap.String("reason_text", marketdata.RejectReasonText(ev.Reject.ReasonCode)))
	case marketdata.EventSendFailure:
		if ev.Failure == nil {
			return
		}
		s.logger.Error("MD request not sent",
			zap.String("request", ev.Failure.Request),
			zap.String("error", ev.Failure.Error))
	case marketdata.EventDecodeError:
		s.logger.Warn("Undecodable snapshot", zap.String("error", ev.Error))
	case marketdata.EventSession:
		s.logger.Info("Session state", zap.String("state", ev.State), zap.String("session", ev.SessionID))
	}
}

// FormatSnapshot renders "W: SYM entries=n :: BID=p | ASK=p". n is the
// advertised entry count, skipped entries included.
func FormatSnapshot(snap marketdata.Snapshot, skipped int) string {
	parts := make([]string, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		parts = append(parts, fmt.Sprintf("%s=%s", strings.ToUpper(string(e.Side)), e.Price.String()))
	}
	return fmt.Sprintf("W: %s entries=%d :: %s", snap.Symbol, len(snap.Entries)+skipped, strings.Join(parts, " | "))
}

// FormatReject renders a MarketDataRequestReject line
func FormatReject(rej marketdata.RejectNotice) string {
	return fmt.Sprintf("MD Reject (35=Y) MDReqID=%s reason(281)=%s text=%s", rej.RequestID, rej.ReasonCode, rej.Text)
}

// MetricsSink updates prometheus collectors
type MetricsSink struct{}

// NewMetricsSink creates a metrics sink
func NewMetricsSink() *MetricsSink {
	return &MetricsSink{}
}

var sessionStates = []string{
	marketdata.StateCreated.String(),
	marketdata.StateLoggedOn.String(),
	marketdata.StateLoggedOut.String(),
}

// Publish implements marketdata.Sink
func (MetricsSink) Publish(ev marketdata.Event) {
	switch ev.Kind {
	case marketdata.EventSnapshot:
		if ev.Snapshot == nil {
			return
		}
		metrics.SnapshotsReceived.WithLabelValues(ev.Snapshot.Symbol).Inc()
		for _, e := range ev.Snapshot.Entries {
			metrics.EntriesDecoded.WithLabelValues(ev.Snapshot.Symbol, string(e.Side)).Inc()
		}
		for _, issue := range ev.Issues {
			metrics.EntriesDropped.WithLabelValues(issue.Reason).Inc()
		}
	case marketdata.EventReject:
		if ev.Reject != nil {
			metrics.RejectsReceived.WithLabelValues(ev.Reject.ReasonCode).Inc()
		}
	case marketdata.EventSendFailure:
		if ev.Failure != nil {
			metrics.SendFailures.WithLabelValues(ev.Failure.Request).Inc()
		}
	case marketdata.EventDecodeError:
		metrics.DecodeFailures.Inc()
	case marketdata.EventSession:
		for _, s := range sessionStates {
			v := 0.0
			if s == ev.State {
				v = 1
			}
			metrics.SessionState.WithLabelValues(s).Set(v)
		}
	}
}

// Fanout publishes to every sink in order
type Fanout []marketdata.Sink

// Publish implements marketdata.Sink
func (f Fanout) Publish(ev marketdata.Event) {
	for _, s := range f {
		if s != nil {
			s.Publish(ev)
		}
	}
}
