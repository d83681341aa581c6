package metrics

import "github.com/tinytelemetry/pulse/internal/model"

// Rate is Σcounts / max(1, last−first seconds) over a series ordered by
// timestamp. An empty series has rate 0.
func Rate(series []model.ThroughputPoint) float64 {
	if len(series) == 0 {
		return 0
	}
	var total int64
	for _, p := range series {
		total += p.Total
	}
	span := series[len(series)-1].Timestamp.Unix() - series[0].Timestamp.Unix()
	if span < 1 {
		span = 1
	}
	return float64(total) / float64(span)
}
