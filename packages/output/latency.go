package output

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

// Histogram range: 1us to 60s, 3 significant digits.
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Latency accumulates request durations.
type Latency struct {
	hist *hdrhistogram.Histogram
}

func NewLatency() *Latency {
	return &Latency{hist: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)}
}

// LatencyOf records every executed entry of result.
func LatencyOf(result *runner.RunResult) *Latency {
	l := NewLatency()
	l.Add(result)
	return l
}

func (l *Latency) Add(result *runner.RunResult) {
	for _, e := range result.Entries {
		if e.Result != nil {
			l.Record(e.Duration)
		}
	}
}

func (l *Latency) Record(d time.Duration) {
	us := d.Microseconds()
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}
	_ = l.hist.RecordValue(us)
}

func (l *Latency) Count() int64 {
	return l.hist.TotalCount()
}

// Percentile returns the duration at p, 0 to 100.
func (l *Latency) Percentile(p float64) time.Duration {
	return time.Duration(l.hist.ValueAtQuantile(p)) * time.Microsecond
}

type LatencySummary struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

// Summary reports the distribution in milliseconds.
func (l *Latency) Summary() LatencySummary {
	if l.Count() == 0 {
		return LatencySummary{}
	}
	return LatencySummary{
		Count: l.Count(),
		Min:   usToMs(float64(l.hist.Min())),
		Mean:  usToMs(l.hist.Mean()),
		P50:   usToMs(float64(l.hist.ValueAtQuantile(50))),
		P90:   usToMs(float64(l.hist.ValueAtQuantile(90))),
		P99:   usToMs(float64(l.hist.ValueAtQuantile(99))),
		Max:   usToMs(float64(l.hist.Max())),
	}
}

func usToMs(us float64) float64 {
	return float64(int64(us/10)) / 100
}
