package alert

// Hysteresis margins. A raised alert only clears once the metric is back on
// the safe side of its threshold by at least this much.
const (
	Margin              = 5.0
	LowDiskMargin int64 = 5 << 30
)

// Thresholds holds the limits an Evaluator checks readings against.
type Thresholds struct {
	HighCPUPct   float64
	HighTempC    float64
	HighMemPct   float64
	HighDiskPct  float64
	LowDiskBytes int64
}
