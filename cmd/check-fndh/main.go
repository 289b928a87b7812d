// Command check-fndh is the Nagios plugin for a power controller. It
// fetches one readings snapshot over RPC, evaluates it against the alarm
// thresholds and exits with the conventional plugin code: 0 OK, 1 WARNING,
// 2 CRITICAL, 3 UNKNOWN.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fieldnode/fndh-power/internal/config"
	"github.com/fieldnode/fndh-power/internal/health"
)

func main() {
	host := flag.String("H", "localhost", "Daemon host")
	port := flag.Int("port", 19999, "Daemon port")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	cfgPath := flag.String("config", "", "Configuration file with alarm thresholds (YAML)")
	tempCrit := flag.Float64("temp-crit", health.DefaultThresholds.TempCritical, "Temperature critical threshold (C)")
	tempWarn := flag.Float64("temp-warn", health.DefaultThresholds.TempWarning, "Temperature warning threshold (C)")
	humidCrit := flag.Float64("humid-crit", health.DefaultThresholds.HumidityCritical, "Humidity critical threshold (%RH)")
	humidWarn := flag.Float64("humid-warn", health.DefaultThresholds.HumidityWarning, "Humidity warning threshold (%RH)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Printf("UNKNOWN: %v\n", err)
		os.Exit(int(health.Unknown))
	}

	// Config file supplies the thresholds; flags given explicitly win.
	th := cfg.Thresholds
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "temp-crit":
			th.TempCritical = *tempCrit
		case "temp-warn":
			th.TempWarning = *tempWarn
		case "humid-crit":
			th.HumidityCritical = *humidCrit
		case "humid-warn":
			th.HumidityWarning = *humidWarn
		}
	})

	base := fmt.Sprintf("http://%s:%d", *host, *port)
	cli := &http.Client{Timeout: *timeout}

	snap, err := fetchSnapshot(cli, base)
	if err != nil {
		// Anything that stops us reaching the daemon is UNKNOWN, never
		// CRITICAL: the outputs may be fine, we just cannot tell.
		fmt.Printf("UNKNOWN: %v\n", err)
		os.Exit(int(health.Unknown))
	}

	result := health.Evaluate(snap, th)
	fmt.Println(formatPluginOutput(result))
	os.Exit(int(result.Severity))
}

// fetchSnapshot pulls the power readings and the environment reading. A
// failed environment read is represented as missing data in the snapshot
// rather than failing the whole check; the evaluator decides what that
// means.
func fetchSnapshot(cli *http.Client, base string) (health.Snapshot, error) {
	var readings struct {
		Outputs map[string]struct {
			State     string  `json:"state"`
			Volts     float64 `json:"volts"`
			Milliamps float64 `json:"ma"`
		} `json:"outputs"`
	}
	if err := getJSON(cli, base+"/readings", &readings); err != nil {
		return health.Snapshot{}, err
	}

	snap := health.Snapshot{Powers: make(map[string]health.ChannelReading, len(readings.Outputs))}
	for name, r := range readings.Outputs {
		snap.Powers[name] = health.ChannelReading{State: r.State, Volts: r.Volts, Milliamps: r.Milliamps}
	}

	var env struct {
		Humidity float64 `json:"humidity"`
		TempC    float64 `json:"temperature"`
	}
	if err := getJSON(cli, base+"/environment", &env); err == nil {
		snap.Env = &health.EnvReading{Humidity: env.Humidity, TempC: env.TempC}
	}
	return snap, nil
}

func getJSON(cli *http.Client, url string, out interface{}) error {
	resp, err := cli.Get(url)
	if err != nil {
		return fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s for %s", resp.Status, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// formatPluginOutput renders the Nagios line: human message, a pipe, then
// space-separated performance data.
func formatPluginOutput(r health.Result) string {
	if len(r.Metrics) == 0 {
		return r.Message
	}
	perf := make([]string, 0, len(r.Metrics))
	for _, m := range r.Metrics {
		perf = append(perf, m.Format())
	}
	return r.Message + " | " + strings.Join(perf, " ")
}
