// Command topicetl extracts a Kafka topic into a delimited file (or a SQL
// table) and replays a delimited file back onto a topic, driven by per-topic
// configuration and mapping files.
//
// Usage:
//
//	topicetl [flags] extract [-topics-file path] <topic>...
//	topicetl [flags] produce <topic> <file>
//	topicetl [flags] validate <topic>...
//	topicetl [flags] list
//	topicetl [flags] config [topic]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"topicetl/internal/broker"
	"topicetl/internal/metrics"
	"topicetl/internal/metrics/datadog"
	"topicetl/internal/metrics/prompush"

	// register all backends with the storage factory; the topic file picks one.
	_ "topicetl/internal/storage/all"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// Settings are the process-wide options, resolved flag -> env -> default.
type Settings struct {
	ConfigDir      string `json:"config_dir"`
	Destination    string `json:"destination"`
	MetricsBackend string `json:"metrics_backend"`
	PushgatewayURL string `json:"pushgateway_url,omitempty"`
	StatsdAddr     string `json:"statsd_addr,omitempty"`
	Verbose        bool   `json:"verbose"`
}

// usageError marks errors that exit with exitUsage.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, a ...any) error {
	return &usageError{msg: fmt.Sprintf(format, a...)}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses args, executes one command and returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("topicetl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var s Settings
	fs.StringVar(&s.ConfigDir, "config-dir", envOr("TOPICETL_CONFIG_DIR", "configs"), "folder with <topic>.cfg and <topic>.map files (env TOPICETL_CONFIG_DIR)")
	fs.StringVar(&s.Destination, "destination", envOr("TOPICETL_DESTINATION", "."), "folder for extracted files (env TOPICETL_DESTINATION)")
	fs.StringVar(&s.MetricsBackend, "metrics-backend", envOr("METRICS_BACKEND", "none"), "metrics backend: pushgateway, datadog or none (env METRICS_BACKEND)")
	fs.StringVar(&s.PushgatewayURL, "pushgateway-url", envOr("PUSHGATEWAY_URL", "http://localhost:9091"), "Pushgateway base URL (env PUSHGATEWAY_URL)")
	fs.StringVar(&s.StatsdAddr, "statsd-addr", envOr("DD_AGENT_ADDR", "127.0.0.1:8125"), "DogStatsD address (env DD_AGENT_ADDR)")
	fs.BoolVar(&s.Verbose, "v", false, "enable verbose logs, including the Kafka client")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: topicetl [flags] <extract|produce|validate|list|config> [args]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	broker.SetVerbose(s.Verbose)
	flush := setupMetrics(s)
	defer flush()

	a := &app{settings: s, stdout: stdout, stderr: stderr}
	err := a.dispatch(ctx, fs.Arg(0), fs.Args()[1:])

	var ue *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ue):
		fmt.Fprintf(stderr, "topicetl: %v\n", err)
		fs.Usage()
		return exitUsage
	default:
		fmt.Fprintf(stderr, "topicetl: %v\n", err)
		return exitFailure
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "extract":
		return a.extractCmd(ctx, args)
	case "produce":
		return a.produceCmd(ctx, args)
	case "validate":
		return a.validateCmd(args)
	case "list":
		if len(args) != 0 {
			return usagef("list takes no arguments")
		}
		return a.listCmd()
	case "config":
		return a.configCmd(args)
	default:
		return usagef("unknown command %q", cmd)
	}
}

// setupMetrics installs the selected backend and returns its flush func.
func setupMetrics(s Settings) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch s.MetricsBackend {
	case "", "none":
		if s.Verbose {
			log.Printf("metrics: disabled (backend=%q)", s.MetricsBackend)
		}
		return func() {}
	case "pushgateway":
		b, err = prompush.NewBackend("topicetl", s.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{Addr: s.StatsdAddr, GlobalTags: []string{"app:topicetl"}})
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", s.MetricsBackend)
		return func() {}
	}
	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", s.MetricsBackend, err)
		return func() {}
	}
	log.Printf("metrics: backend=%s", s.MetricsBackend)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
