package ports

// Metric names understood by Observability implementations.
const (
	MetricPasses            = "xray_monitor_passes_total"
	MetricPassDuration      = "xray_monitor_pass_duration_seconds"
	MetricCounterErrors     = "xray_monitor_counter_source_errors_total"
	MetricCounterAnomalies  = "xray_monitor_counter_anomalies_total"
	MetricLogLinesSkipped   = "xray_monitor_log_lines_skipped_total"
	MetricArtifactWriteErrs = "xray_monitor_artifact_write_errors_total"
	MetricArtifactCorrupt   = "xray_monitor_artifact_corrupt_total"
	MetricUplinkBytes       = "xray_monitor_uplink_bytes_total"
	MetricDownlinkBytes     = "xray_monitor_downlink_bytes_total"

	GaugeIdentities      = "xray_monitor_identities"
	GaugeLedgerAddresses = "xray_monitor_ledger_addresses"
	GaugeActiveAddresses = "xray_monitor_active_addresses"
)
