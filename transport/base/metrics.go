package base

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// Process-wide transport counters, labeled per transport kind. Exposed via
// the metrics package's default set (see metrics.WritePrometheus).

// RxBytesAdd counts bytes received from the socket.
func RxBytesAdd(transportName string, n int) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`mavconn_rx_bytes_total{transport=%q}`, transportName)).Add(n)
}

// TxBytesAdd counts bytes actually written to the socket.
func TxBytesAdd(transportName string, n int) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`mavconn_tx_bytes_total{transport=%q}`, transportName)).Add(n)
}

// RxFramesInc counts fully decoded inbound frames.
func RxFramesInc(transportName string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`mavconn_rx_frames_total{transport=%q}`, transportName)).Inc()
}

// ConnAcceptedInc counts connections a server wrapped into a client channel.
func ConnAcceptedInc(transportName string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`mavconn_conns_accepted_total{transport=%q}`, transportName)).Inc()
}

// ConnRejectedInc counts connections dropped for capacity exhaustion.
func ConnRejectedInc(transportName string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`mavconn_conns_rejected_total{transport=%q}`, transportName)).Inc()
}
