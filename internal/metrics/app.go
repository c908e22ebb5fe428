package metrics

import (
	"time"

	"github.com/signrelay/signrelay/internal/observability"
)

// Metric names following Prometheus conventions.
var (
	ConnectorRequestsTotal   = "connector_requests_total"
	ConnectorAttemptsTotal   = "connector_attempts_total"
	ConnectorRequestDuration = "connector_request_duration_ms"
	ConnectorCooldownsTotal  = "connector_cooldowns_total"
	ConnectorHeartbeatsTotal = "connector_heartbeats_total"
	ConnectorModelRebinds    = "connector_model_rebinds_total"

	ProbeTotal        = "dependency_probe_total"
	ProbeDuration     = "dependency_probe_duration_ms"
	DependencyUp      = "dependency_up"
	SentenceUpdates   = "sentence_updates_total"
	UpstreamFetches   = "sentence_upstream_fetch_total"
	BroadcastsTotal   = "events_broadcast_total"
	DroppedSubscriber = "events_subscribers_dropped_total"
	ActiveSubscribers = "events_active_subscribers"
	Conversations     = "conversations_total"

	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

// RecordConnectorRequest records the outcome of one GetResponse call:
// "success", "fallback", "cooldown", "empty_input" or "continue".
func RecordConnectorRequest(outcome string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(ConnectorRequestsTotal, 1, map[string]string{"outcome": outcome})
	_ = observability.TelemetrySystem.Histogram(ConnectorRequestDuration, duration, map[string]string{"outcome": outcome})
}

// RecordConnectorAttempt records one provider attempt and its error kind.
func RecordConnectorAttempt(model, kind string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(ConnectorAttemptsTotal, 1, map[string]string{
			"model": model,
			"kind":  kind,
		})
	}
}

// RecordCooldown records a quota cooldown being armed.
func RecordCooldown(source string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(ConnectorCooldownsTotal, 1, map[string]string{"source": source})
	}
}

// RecordHeartbeat records a heartbeat probe outcome.
func RecordHeartbeat(success bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(ConnectorHeartbeatsTotal, 1, map[string]string{"status": status(success)})
	}
}

// RecordModelRebind records a switch to a different model.
func RecordModelRebind(model string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(ConnectorModelRebinds, 1, map[string]string{"model": model})
	}
}

// RecordProbe records one candidate probe.
func RecordProbe(service string, reachable bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	labels := map[string]string{"service": service, "status": status(reachable)}
	_ = observability.TelemetrySystem.Counter(ProbeTotal, 1, labels)
	_ = observability.TelemetrySystem.Histogram(ProbeDuration, duration, map[string]string{"service": service})
}

// SetDependencyUp publishes the latest reachability of a service.
func SetDependencyUp(service string, reachable bool) {
	if observability.TelemetrySystem == nil {
		return
	}
	value := 0.0
	if reachable {
		value = 1
	}
	_ = observability.TelemetrySystem.Gauge(DependencyUp, value, map[string]string{"service": service})
}

// RecordSentenceUpdate records an applied sentence transition.
func RecordSentenceUpdate(source string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(SentenceUpdates, 1, map[string]string{"source": source})
	}
}

// RecordUpstreamFetch records a perception poll.
func RecordUpstreamFetch(success bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(UpstreamFetches, 1, map[string]string{"status": status(success)})
	}
}

// RecordBroadcast records one event fan-out.
func RecordBroadcast(eventType string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(BroadcastsTotal, 1, map[string]string{"type": eventType})
	}
}

// RecordDroppedSubscriber records a subscriber removed for falling behind.
func RecordDroppedSubscriber() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(DroppedSubscriber, 1, nil)
	}
}

// SetActiveSubscribers sets the current number of event subscribers.
func SetActiveSubscribers(count int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ActiveSubscribers, float64(count), nil)
	}
}

// RecordConversation records a send-conversation round-trip.
func RecordConversation(success bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(Conversations, 1, map[string]string{"status": status(success)})
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	label := "healthy"
	if !healthy {
		label = "unhealthy"
	}
	_ = observability.TelemetrySystem.Counter(HealthCheckTotal, 1, map[string]string{"check": checkName, "status": label})
	_ = observability.TelemetrySystem.Histogram(HealthCheckDuration, duration, map[string]string{"check": checkName})
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerUptime, float64(seconds), nil)
	}
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
