package handle

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Process-wide counters, exported in the Prometheus text format by WriteMetrics.
var (
	allocatedTotal [numKinds]*metrics.Counter
	releasedTotal  [numKinds]*metrics.Counter
	contextsActive = metrics.GetOrCreateCounter("hkv_contexts_active")
)

func init() {
	for k := Kind(0); k < numKinds; k++ {
		allocatedTotal[k] = metrics.GetOrCreateCounter(fmt.Sprintf(`hkv_handles_allocated_total{kind=%q}`, k.Prefix()))
		releasedTotal[k] = metrics.GetOrCreateCounter(fmt.Sprintf(`hkv_handles_released_total{kind=%q}`, k.Prefix()))
	}
}

// WriteMetrics writes the handle metrics in Prometheus text format to w
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
