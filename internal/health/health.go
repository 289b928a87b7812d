// Package health converts a full readings snapshot into a Nagios-style
// verdict. It is pure computation: no hardware, no clock, no state between
// evaluations — the same snapshot always yields the same result.
package health

import (
	"fmt"
	"strings"

	"github.com/fieldnode/fndh-power/internal/names"
)

// Severity is a Nagios service state. The numeric values double as plugin
// exit codes.
type Severity int

const (
	OK       Severity = 0
	Warning  Severity = 1
	Critical Severity = 2
	Unknown  Severity = 3
)

// String returns the conventional Nagios label.
func (s Severity) String() string {
	switch s {
	case OK:
		return "OK"
	case Warning:
		return "WARNING"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// rank orders severities for aggregation: CRITICAL > UNKNOWN > WARNING > OK.
func (s Severity) rank() int {
	switch s {
	case Critical:
		return 3
	case Unknown:
		return 2
	case Warning:
		return 1
	default:
		return 0
	}
}

// Thresholds are the environment alarm limits.
type Thresholds struct {
	TempCritical     float64 `yaml:"temp_critical"`
	TempWarning      float64 `yaml:"temp_warning"`
	HumidityCritical float64 `yaml:"humidity_critical"`
	HumidityWarning  float64 `yaml:"humidity_warning"`
}

// DefaultThresholds are the deployed alarm limits.
var DefaultThresholds = Thresholds{
	TempCritical:     80.0,
	TempWarning:      70.0,
	HumidityCritical: 95.0,
	HumidityWarning:  90.0,
}

// ChannelReading is one output's contribution to the snapshot.
type ChannelReading struct {
	State     string
	Volts     float64
	Milliamps float64
}

// EnvReading is the environment contribution to the snapshot.
type EnvReading struct {
	Humidity float64
	TempC    float64
}

// Snapshot is everything one evaluation consumes. A missing output name in
// Powers, or a nil Env, is missing data.
type Snapshot struct {
	Powers map[string]ChannelReading
	Env    *EnvReading
}

// Metric is one numeric reading for downstream graphing. Metrics are
// emitted for every reading present, independent of severity.
type Metric struct {
	Name  string
	Value float64
}

// Format renders the metric as Nagios performance data.
func (m Metric) Format() string {
	return fmt.Sprintf("%s=%1.3f", m.Name, m.Value)
}

// Result is one evaluation's verdict.
type Result struct {
	Severity Severity
	Message  string
	Metrics  []Metric
}

// Evaluate produces the verdict for one snapshot.
func Evaluate(snap Snapshot, th Thresholds) Result {
	var human []string
	var metrics []Metric

	powerSev := OK
	var powerReason string
	if len(snap.Powers) == 0 {
		powerSev = Unknown
		powerReason = "No power data from device"
	} else {
		for _, name := range names.All() {
			r, ok := snap.Powers[name]
			if !ok {
				human = append(human, fmt.Sprintf("%s missing data", name))
				powerSev = Unknown
				powerReason = "One or more channels missing power data"
				continue
			}
			human = append(human, fmt.Sprintf("%s_state=%s", name, r.State))
			human = append(human, fmt.Sprintf("%s_mA=%1.3f", name, r.Milliamps))
			metrics = append(metrics,
				Metric{Name: name + "_volts", Value: r.Volts},
				Metric{Name: name + "_mA", Value: r.Milliamps})
		}
	}

	tempSev, humidSev := OK, OK
	var tempReason, humidReason string
	if snap.Env == nil {
		tempSev, humidSev = Unknown, Unknown
		tempReason = "Missing temperature and humidity"
	} else {
		human = append(human, fmt.Sprintf("humidity=%1.0f", snap.Env.Humidity))
		human = append(human, fmt.Sprintf("temperature=%1.1f", snap.Env.TempC))
		metrics = append(metrics,
			Metric{Name: "humidity", Value: snap.Env.Humidity},
			Metric{Name: "temperature", Value: snap.Env.TempC})

		switch {
		case snap.Env.TempC > th.TempCritical:
			tempSev, tempReason = Critical, "Temperature critical"
		case snap.Env.TempC > th.TempWarning:
			tempSev, tempReason = Warning, "Temperature warning"
		}
		switch {
		case snap.Env.Humidity > th.HumidityCritical:
			humidSev, humidReason = Critical, "Humidity critical"
		case snap.Env.Humidity > th.HumidityWarning:
			humidSev, humidReason = Warning, "Humidity warning"
		}
	}

	overall := worst(powerSev, tempSev, humidSev)

	var msg string
	if overall == OK {
		msg = "OK: "
	} else {
		msg = fmt.Sprintf("%s: %s", overall, joinReasons(powerReason, tempReason, humidReason))
	}
	msg += "; " + strings.Join(human, ", ")

	return Result{Severity: overall, Message: msg, Metrics: metrics}
}

func worst(sevs ...Severity) Severity {
	out := OK
	for _, s := range sevs {
		if s.rank() > out.rank() {
			out = s
		}
	}
	return out
}

func joinReasons(reasons ...string) string {
	var parts []string
	for _, r := range reasons {
		if r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, ", ")
}
