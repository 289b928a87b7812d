// Command fndh-powerd controls the 32 switchable 48V outputs of a field
// node distribution hub: it owns the measurement and control buses, serves
// the RPC interface on the field network and publishes telemetry to MQTT.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fieldnode/fndh-power/internal/adc"
	"github.com/fieldnode/fndh-power/internal/config"
	"github.com/fieldnode/fndh-power/internal/envsensor"
	"github.com/fieldnode/fndh-power/internal/expander"
	"github.com/fieldnode/fndh-power/internal/host"
	"github.com/fieldnode/fndh-power/internal/hw"
	"github.com/fieldnode/fndh-power/internal/power"
	"github.com/fieldnode/fndh-power/internal/server"
	"github.com/fieldnode/fndh-power/internal/telemetry"
	"github.com/fieldnode/fndh-power/internal/version"
)

func main() {
	cfgPath := flag.String("config", "", "Configuration file (YAML)")
	listen := flag.String("listen", "", "RPC listen address (overrides config)")
	broker := flag.String("broker", "", "MQTT broker URL (overrides config)")
	logfile := flag.String("logfile", "", "Rotating log file (overrides config)")
	allon := flag.Bool("allon", false, "Turn all outputs on at startup")
	rfi := flag.Bool("rfi", false, "Run the RFI test cycle instead of serving")
	fast := flag.Bool("fast", false, "Use short delays in the RFI cycle")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("fndh-powerd %s (built %s)\n", version.Version, version.BuildDate)
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *broker != "" {
		cfg.Broker = *broker
	}
	if *logfile != "" {
		cfg.LogFile = *logfile
	}

	setupLogging(cfg.LogFile)
	log.Printf("fndh-powerd %s starting", version.Version)

	if err := run(cfg, *allon, *rfi, *fast); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// setupLogging sends the log to stderr and, when configured, to a
// size-rotated file that survives the unit's long unattended deployments.
func setupLogging(path string) {
	if path == "" {
		return
	}
	log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     90, // days
		Compress:   true,
	}))
}

func run(cfg config.Config, allon, rfi, fast bool) error {
	// Hardware bring-up. A bus that cannot open is fatal: the daemon is
	// useless without its buses and systemd will restart it.
	if err := hw.Init(); err != nil {
		return err
	}

	dec := adc.DefaultDecoderPins
	pins, err := hw.NewRealPins(dec.A, dec.B, dec.C, dec.Enable)
	if err != nil {
		return fmt.Errorf("gpio: %w", err)
	}
	spiBus, err := hw.NewRealSPI(cfg.SPIDev, cfg.SPIHz)
	if err != nil {
		pins.Close()
		return fmt.Errorf("spi: %w", err)
	}
	i2cBus, err := hw.NewRealI2C(cfg.I2CBus)
	if err != nil {
		spiBus.Close()
		pins.Close()
		return fmt.Errorf("i2c: %w", err)
	}

	adcs := adc.New(pins, spiBus, dec, time.Duration(cfg.SettleMs)*time.Millisecond)

	// Expander init failures are logged, not fatal: a unit with a flaky
	// control bus should still come up and report over RPC.
	exp1 := expander.New(i2cBus, expander.Addr1)
	exp2 := expander.New(i2cBus, expander.Addr2)
	if err := exp1.Init(); err != nil {
		log.Printf("expander 1 init: %v", err)
	}
	if err := exp2.Init(); err != nil {
		log.Printf("expander 2 init: %v", err)
	}

	reg, err := power.NewRegistry(exp1, exp2, adcs,
		cfg.Calibration, time.Duration(cfg.SwitchMs)*time.Millisecond)
	if err != nil {
		return err
	}
	sensor := envsensor.New(i2cBus, envsensor.DefaultAddr,
		time.Duration(cfg.ConversionMs)*time.Millisecond)

	var pub telemetry.Publisher
	if cfg.Broker != "" {
		p, err := telemetry.NewRealPublisher(cfg.Broker)
		if err != nil {
			// Telemetry is best-effort; the controller must run without it.
			log.Printf("mqtt: %v, continuing without telemetry", err)
		} else {
			pub = p
		}
	}

	// Cleanup leaves the unit safe no matter how we exit: every output
	// off, the decoder deselected, the buses released. sync.Once makes it
	// idempotent across the signal path and the reboot path.
	var cleanupOnce sync.Once
	cleanup := func(reason string) {
		cleanupOnce.Do(func() {
			log.Printf("shutting down: %s", reason)
			if !reg.TurnAllOff() {
				log.Printf("cleanup: not all outputs confirmed off")
			}
			if err := adcs.Deselect(); err != nil {
				log.Printf("cleanup: deselect: %v", err)
			}
			if pub != nil {
				pub.PublishSystem(telemetry.SystemEvent{
					Timestamp: time.Now(),
					Event:     "SHUTDOWN",
					Reason:    reason,
					Retained:  true,
				})
				pub.Close()
			}
			i2cBus.Close()
			spiBus.Close()
			pins.Close()
		})
	}
	defer cleanup("exit")

	if pub != nil {
		if err := pub.PublishSystem(telemetry.SystemEvent{
			Timestamp: time.Now(),
			Event:     "STARTUP",
			Retained:  true,
		}); err != nil {
			log.Printf("startup event: %v", err)
		}
	}

	if rfi {
		return runRFI(reg, fast)
	}

	if allon {
		log.Printf("turning all outputs on")
		if !reg.TurnAllOn() {
			log.Printf("not all outputs confirmed on")
		}
	}

	met := server.NewMetrics()
	svc := server.NewService(reg, sensor, met)
	runner := server.NewRunner(cfg.Listen, cfg.ProbeAddr, server.NewRouter(svc))

	serverDone := make(chan error, 1)
	go func() { serverDone <- runner.Run() }()

	monitorStop := make(chan struct{})
	go monitorLoop(svc, pub, time.Duration(cfg.MonitorSec)*time.Second, monitorStop)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case s := <-sigCh:
			close(monitorStop)
			runner.Stop()
			cleanup(signalName(s))
			return nil

		case a := <-svc.Actions():
			close(monitorStop)
			runner.Stop()
			cleanup(string(a))
			switch a {
			case server.ActionReboot:
				return host.Reboot()
			case server.ActionShutdown:
				return host.Shutdown()
			}
			return nil

		case err := <-serverDone:
			close(monitorStop)
			return err
		}
	}
}

// monitorLoop senses everything on a fixed period so the gauges and the
// telemetry feed stay fresh even when no operator is asking.
func monitorLoop(svc *server.Service, pub telemetry.Publisher, period time.Duration, stop <-chan struct{}) {
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			readings, ts := svc.Readings()
			snap := telemetry.ReadingsSnapshot{
				Timestamp: ts,
				Outputs:   make(map[string]telemetry.ChannelReading, len(readings)),
			}
			for name, r := range readings {
				snap.Outputs[name] = telemetry.ChannelReading{
					State:     r.State(),
					Volts:     r.Volts,
					Milliamps: r.Milliamps,
				}
			}
			env, err := svc.Environment()
			if err != nil {
				log.Printf("monitor: %v", err)
			} else {
				snap.Humidity = &env.Humidity
				snap.TempC = &env.TempC
			}
			if pub != nil {
				if err := pub.PublishReadings(snap); err != nil {
					log.Printf("monitor: publish: %v", err)
				}
			}
		}
	}
}

// runRFI cycles the outputs in a fixed pattern for radio-frequency
// interference testing: within each numbered slot, walk the four banks,
// then pause with everything off so the test receiver gets a quiet
// baseline between passes.
func runRFI(reg *power.Registry, fast bool) error {
	stepDelay := 500 * time.Millisecond
	if fast {
		stepDelay = 10 * time.Millisecond
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("RFI test cycle running (step %s)", stepDelay)
	for {
		for num := 1; num <= 8; num++ {
			for _, bank := range []string{"A", "B", "C", "D"} {
				name := fmt.Sprintf("%s%d", bank, num)
				c := reg.Get(name)
				c.TurnOn()
				if !sleepOrSignal(stepDelay, sigCh) {
					return nil
				}
				c.TurnOff()
				if !sleepOrSignal(stepDelay, sigCh) {
					return nil
				}
			}
		}
		log.Printf("RFI pass complete, pausing")
		if !sleepOrSignal(24*time.Second, sigCh) {
			return nil
		}
	}
}

// sleepOrSignal waits for d, returning false if a termination signal
// arrived instead.
func sleepOrSignal(d time.Duration, sig <-chan os.Signal) bool {
	select {
	case s := <-sig:
		log.Printf("received %v during RFI cycle", s)
		return false
	case <-time.After(d):
		return true
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return s.String()
	}
}
