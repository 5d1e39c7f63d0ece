// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// hooks for the feed, console and transport packages.
//
// Both Metrics and Tracer are optional everywhere they are accepted. Every
// recording method is safe to call on a nil receiver, so components never
// branch on whether telemetry is configured.
//
// Metrics collected (default namespace "livesync"):
//   - livesync_feed_state: current feed state (0 disconnected, 1 connecting, 2 connected)
//   - livesync_feed_reconnects_total: reconnects scheduled
//   - livesync_feed_reconnect_delay_seconds: histogram of backoff delays
//   - livesync_feed_deltas_total: status deltas by result (applied, unknown)
//   - livesync_feed_dropped_total: dropped feed frames by reason
//   - livesync_console_sessions_active: open console sessions
//   - livesync_console_commands_total: commands submitted
//   - livesync_console_lines_total: transcript lines by kind
//   - livesync_transport_frames_total: frames by direction
//   - livesync_transport_bytes_total: payload bytes by direction
//   - livesync_transport_errors_total: transport errors by type
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	m := telemetry.NewMetrics(telemetry.WithRegistry(reg))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package telemetry
