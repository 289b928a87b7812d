// Command fndh-cmd is the operator CLI for a running fndh-powerd. It
// resolves output-name arguments (names, banks, tile numbers, ALL,
// exclusions) locally and talks JSON over HTTP to the daemon.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fieldnode/fndh-power/internal/names"
	"github.com/fieldnode/fndh-power/internal/version"
)

const usageText = `Usage: fndh-cmd [flags] <command> [outputs...]

Commands:
  ping                  check the daemon is alive
  version               show daemon and client versions
  status                show every output's state and readings, by tile
  read_env              read internal temperature and humidity
  ison <outputs>        show the commanded state of the given outputs
  turnon <outputs>      switch the given outputs on
  turnoff <outputs>     switch the given outputs off
  turn_all_on           switch every output on
  turn_all_off          switch every output off
  reboot                reboot the unit (asks for confirmation)
  shutdown              power the unit off (asks for confirmation)

Outputs are names like B3, bank letters like C, tile numbers like 12, or
ALL. A leading minus excludes: "A -A4" is bank A except A4.
`

func main() {
	host := flag.String("host", "localhost", "Daemon host")
	port := flag.Int("port", 19999, "Daemon port")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	audit := flag.String("audit", "", "Append commands and results to this file")
	yes := flag.Bool("y", false, "Skip confirmation prompts")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usageText)
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cli := &client{
		base: fmt.Sprintf("http://%s:%d", *host, *port),
		http: &http.Client{Timeout: *timeout},
	}

	if err := runCommand(cli, args[0], args[1:], *yes, *audit); err != nil {
		fmt.Fprintf(os.Stderr, "fndh-cmd: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(cli *client, verb string, rest []string, yes bool, audit string) error {
	var err error
	switch strings.ToLower(verb) {
	case "ping":
		err = cmdPing(cli)
	case "version":
		err = cmdVersion(cli)
	case "status":
		err = cmdStatus(cli)
	case "read_env":
		err = cmdReadEnv(cli)
	case "ison":
		err = cmdSwitch(cli, "/outputs/ison", rest, "")
	case "turnon":
		err = cmdSwitch(cli, "/outputs/on", rest, "turned on")
	case "turnoff":
		err = cmdSwitch(cli, "/outputs/off", rest, "turned off")
	case "turn_all_on":
		err = cmdAll(cli, "/outputs/all/on", "all outputs on")
	case "turn_all_off":
		err = cmdAll(cli, "/outputs/all/off", "all outputs off")
	case "reboot":
		err = cmdAction(cli, "/reboot", "reboot the unit", yes)
	case "shutdown":
		err = cmdAction(cli, "/shutdown", "power the unit off", yes)
	default:
		return fmt.Errorf("unknown command %q", verb)
	}

	writeAudit(audit, verb, rest, err)
	return err
}

// writeAudit appends one line per command so field operations leave a
// local trace even when the unit's own logs are unreachable.
func writeAudit(path, verb string, args []string, result error) {
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("audit log: %v", err)
		return
	}
	defer f.Close()

	outcome := "ok"
	if result != nil {
		outcome = result.Error()
	}
	fmt.Fprintf(f, "%s %s %s: %s\n",
		time.Now().Format(time.RFC3339), verb, strings.Join(args, " "), outcome)
}

type client struct {
	base string
	http *http.Client
}

func (c *client) get(path string, out interface{}) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return fmt.Errorf("contact daemon: %w", err)
	}
	return decodeResponse(resp, out)
}

func (c *client) post(path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	resp, err := c.http.Post(c.base+path, "application/json", &buf)
	if err != nil {
		return fmt.Errorf("contact daemon: %w", err)
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("daemon: %s", e.Error)
		}
		return fmt.Errorf("daemon: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func cmdPing(cli *client) error {
	var resp struct {
		OK bool `json:"ok"`
	}
	if err := cli.get("/ping", &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("daemon replied but is not ok")
	}
	fmt.Println("pong")
	return nil
}

func cmdVersion(cli *client) error {
	var resp struct {
		Version string `json:"version"`
	}
	if err := cli.get("/version", &resp); err != nil {
		return err
	}
	fmt.Printf("daemon %s, client %s\n", resp.Version, version.Version)
	return nil
}

type reading struct {
	State     string  `json:"state"`
	Volts     float64 `json:"volts"`
	Milliamps float64 `json:"ma"`
}

func cmdStatus(cli *client) error {
	var resp struct {
		Timestamp string             `json:"timestamp"`
		Outputs   map[string]reading `json:"outputs"`
	}
	if err := cli.get("/readings", &resp); err != nil {
		return err
	}

	fmt.Printf("Readings at %s:\n", resp.Timestamp)

	tileNums := make([]int, 0, len(names.Tiles))
	for n := range names.Tiles {
		tileNums = append(tileNums, n)
	}
	sort.Ints(tileNums)

	for _, n := range tileNums {
		fmt.Printf("Tile %2d:", n)
		for _, name := range names.Tiles[n] {
			r, ok := resp.Outputs[name]
			if !ok {
				fmt.Printf("  %s: no data", name)
				continue
			}
			fmt.Printf("  %s: %3s %7.3f V %8.3f mA", name, r.State, r.Volts, r.Milliamps)
		}
		fmt.Println()
	}

	printSummary(resp.Outputs)
	return nil
}

// printSummary shows the voltage spread across outputs that are on, the
// quickest way to spot one sagging feed.
func printSummary(outputs map[string]reading) {
	var minName, maxName string
	var minV, maxV float64
	on := 0
	for name, r := range outputs {
		if r.State != "ON" {
			continue
		}
		if on == 0 || r.Volts < minV {
			minV, minName = r.Volts, name
		}
		if on == 0 || r.Volts > maxV {
			maxV, maxName = r.Volts, name
		}
		on++
	}
	if on == 0 {
		fmt.Println("No outputs on.")
		return
	}
	fmt.Printf("%d outputs on. Lowest %s at %1.3f V, highest %s at %1.3f V.\n",
		on, minName, minV, maxName, maxV)
}

func cmdReadEnv(cli *client) error {
	var resp struct {
		Humidity float64 `json:"humidity"`
		TempC    float64 `json:"temperature"`
	}
	if err := cli.get("/environment", &resp); err != nil {
		return err
	}
	fmt.Printf("Temperature: %1.1f C, humidity: %1.0f %%RH\n", resp.TempC, resp.Humidity)
	return nil
}

func cmdSwitch(cli *client, path string, tokens []string, verbPast string) error {
	if len(tokens) == 0 {
		return fmt.Errorf("no outputs given")
	}
	expanded, err := names.Expand(tokens)
	if err != nil {
		return err
	}
	if len(expanded) == 0 {
		return fmt.Errorf("no outputs match %q", strings.Join(tokens, " "))
	}

	var resp struct {
		Results []*bool `json:"results"`
	}
	if err := cli.post(path, map[string][]string{"names": expanded}, &resp); err != nil {
		return err
	}
	if len(resp.Results) != len(expanded) {
		return fmt.Errorf("daemon returned %d results for %d outputs", len(resp.Results), len(expanded))
	}

	failed := 0
	for i, name := range expanded {
		switch {
		case resp.Results[i] == nil:
			fmt.Printf("%s: unknown to daemon\n", name)
			failed++
		case verbPast == "":
			state := "OFF"
			if *resp.Results[i] {
				state = "ON"
			}
			fmt.Printf("%s: %s\n", name, state)
		case *resp.Results[i]:
			fmt.Printf("%s: %s\n", name, verbPast)
		default:
			fmt.Printf("%s: FAILED\n", name)
			failed++
		}
	}
	if verbPast != "" && failed > 0 {
		return fmt.Errorf("%d of %d outputs failed", failed, len(expanded))
	}
	return nil
}

func cmdAll(cli *client, path, desc string) error {
	var resp struct {
		OK bool `json:"ok"`
	}
	if err := cli.post(path, nil, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%s: some outputs failed", desc)
	}
	fmt.Printf("%s: done\n", desc)
	return nil
}

func cmdAction(cli *client, path, desc string, yes bool) error {
	if !yes && !confirm(desc) {
		fmt.Println("cancelled")
		return nil
	}
	if err := cli.post(path, nil, nil); err != nil {
		return err
	}
	fmt.Printf("request accepted, the daemon will %s\n", desc)
	return nil
}

func confirm(desc string) bool {
	fmt.Printf("Really %s? [y/N] ", desc)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
