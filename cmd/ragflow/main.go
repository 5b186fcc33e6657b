// Command ragflow runs a configured multi-agent RAG pipeline.
//
// Usage:
//
//	ragflow run --config ragflow.yaml --task "Patient Lucas Brown's medical data goes here."
//	ragflow index --config ragflow.yaml
//	ragflow flow --config ragflow.yaml
//	ragflow version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/ragflow"
	"github.com/hupe1980/ragflow/config"
	"github.com/hupe1980/ragflow/flow"
	"github.com/hupe1980/ragflow/logging"
	"github.com/hupe1980/ragflow/metrics"
	"github.com/hupe1980/ragflow/runner"
)

// DefaultTask is the task used when run is called without --task.
const DefaultTask = "Patient Lucas Brown's medical data goes here."

// CLI defines the command-line interface.
type CLI struct {
	Run     RunCmd     `cmd:"" default:"withargs" help:"Run a task through the agent flow."`
	Index   IndexCmd   `cmd:"" help:"Index the document directory into the configured store."`
	Flow    FlowCmd    `cmd:"" help:"Validate the configuration and print the agent flow."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config      string `short:"c" help:"Path to config file (default: embedded medical team)." type:"path"`
	LogLevel    string `help:"Log level (debug, info, warn, error). Overrides the config." env:"RAGFLOW_LOG_LEVEL"`
	LogFormat   string `help:"Log format (text, json). Overrides the config." env:"RAGFLOW_LOG_FORMAT"`
	MetricsAddr string `help:"Serve Prometheus metrics on this address while the command runs, e.g. :9090."`
}

// RunCmd runs one task.
type RunCmd struct {
	Task    string        `short:"t" help:"Task handed to the first agent." default:"${default_task}"`
	Timeout time.Duration `help:"Overrides the configured run timeout."`
	Stream  bool          `help:"Stream agent output while it is generated."`
	Steps   bool          `help:"Print the output of every step, not only the final one."`
}

func (c *RunCmd) Run(cli *CLI, out io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := cli.load()
	if err != nil {
		return err
	}
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}

	recorder, shutdown := cli.serveMetrics(logger)
	defer shutdown()

	p, err := ragflow.New(ctx, cfg, func(o *ragflow.Options) {
		o.Logger = logger
		o.Metrics = recorder
		o.Stream = c.Stream
		o.OnChunk = streamPrinter(out)
	})
	if err != nil {
		return err
	}

	res, err := p.Execute(ctx, c.Task)
	if c.Steps && res != nil {
		printSteps(out, res.Steps)
	}
	if err != nil {
		return err
	}

	switch {
	case c.Stream:
		fmt.Fprintln(out)
	case !c.Steps:
		fmt.Fprintln(out, res.Output)
	}

	return nil
}

// IndexCmd indexes the configured document directory.
type IndexCmd struct{}

func (c *IndexCmd) Run(cli *CLI, out io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := cli.load()
	if err != nil {
		return err
	}
	if cfg.Memory.Type == config.MemoryNone {
		return errors.New("no document store configured (memory.type is none)")
	}

	p, err := ragflow.New(ctx, cfg, func(o *ragflow.Options) {
		o.Logger = logger
		o.SkipAutoIndex = true
	})
	if err != nil {
		return err
	}

	n, err := p.Index(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "indexed %d documents from %s into %s\n", n, cfg.Memory.Dir, cfg.Memory.Type)

	return nil
}

// FlowCmd validates the configuration and prints the flow.
type FlowCmd struct{}

func (c *FlowCmd) Run(cli *CLI, out io.Writer) error {
	cfg, _, err := cli.load()
	if err != nil {
		return err
	}

	f, err := flow.Parse(cfg.Flow)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %s\n", cfg.Name, f)
	for i, id := range f {
		fmt.Fprintf(out, "  %d. %s\n", i+1, id)
	}
	fmt.Fprintf(out, "memory: %s, loops: %d\n", cfg.Memory.Type, cfg.Loops)

	return nil
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(out io.Writer) error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Fprintf(out, "ragflow version %s\n", version)
	return nil
}

// load reads the configuration and builds the logger, applying the global
// log flags over the config.
func (cli *CLI) load() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, nil, err
	}

	if cli.LogLevel != "" {
		if _, err := logging.ParseLevel(cli.LogLevel); err != nil {
			return nil, nil, err
		}
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		if cli.LogFormat != "text" && cli.LogFormat != "json" {
			return nil, nil, fmt.Errorf("unknown log format %q", cli.LogFormat)
		}
		cfg.Log.Format = cli.LogFormat
	}

	return cfg, cfg.Logger(), nil
}

// serveMetrics starts the metrics endpoint when --metrics-addr is set. The
// returned func stops it.
func (cli *CLI) serveMetrics(logger logging.Logger) (metrics.Recorder, func()) {
	if cli.MetricsAddr == "" {
		return metrics.NoOpRecorder{}, func() {}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheusRecorder(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: cli.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics.server.start", "addr", cli.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics.server.error", "error", err)
		}
	}()

	return recorder, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func streamPrinter(out io.Writer) func(agent, chunk string) {
	var current string
	return func(agent, chunk string) {
		if agent != current {
			if current != "" {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "\n== %s ==\n", agent)
			current = agent
		}
		fmt.Fprint(out, chunk)
	}
}

func printSteps(out io.Writer, steps []runner.Step) {
	for _, s := range steps {
		fmt.Fprintf(out, "== %s (step %d of %d, %s) ==\n%s\n\n", s.Agent, s.Step, s.Total, s.Duration.Round(time.Millisecond), s.Output)
	}
}

func newParser(cli *CLI, out io.Writer) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("ragflow"),
		kong.Description("Sequential multi-agent pipeline with retrieval augmented generation"),
		kong.UsageOnError(),
		kong.Vars{"default_task": DefaultTask},
		kong.BindTo(out, (*io.Writer)(nil)),
	)
}

func main() {
	var cli CLI

	parser, err := newParser(&cli, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ragflow: %v\n", err)
		os.Exit(1)
	}

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
