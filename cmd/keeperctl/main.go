// Command keeperctl drives a keeper client from the command line.
//
// It connects to a real ensemble through the ZooKeeper collaborator, or to
// an in-memory ensemble with -sim, and opens an interactive shell for
// connecting, watching, retrying and injecting faults.
//
// Usage:
//
//	keeperctl [flags]
//
// Flags:
//
//	-config string           Client config file (.yaml, .yml or .toml)
//	-servers string          Comma-separated ensemble endpoints (overrides config)
//	-namespace string        Path prefix scoping the client
//	-session-timeout dur     Requested session timeout
//	-connect-timeout dur     Bound on connect
//	-discover string         Resolve ensemble members over mDNS by ensemble name
//	-sim                     Use an in-memory ensemble
//	-advertise int           Advertise this many simulated members over mDNS (-sim only)
//	-trace string            Write a CBOR trace to this file
//	-metrics string          Serve Prometheus metrics on this address
//	-log-level string        Log level: debug, info, warn, error (default "info")
//	-interactive             Start the interactive shell (default true)
//
// Environment variables (also read from .env):
//
//	KEEPER_SERVERS           Ensemble endpoints when neither -servers nor -config set them
//	KEEPER_NAMESPACE         Namespace when neither -namespace nor -config set it
//
// Examples:
//
//	# Interactive shell against a simulated ensemble
//	keeperctl -sim
//
//	# Connect to a real ensemble and trace the session lifecycle
//	keeperctl -servers zk1:2181,zk2:2181 -trace client.ktrace
//
//	# Find the ensemble over mDNS and expose metrics
//	keeperctl -discover prod -metrics :9102 -interactive=false
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keeper-client/keeper-go/cmd/keeperctl/interactive"
	"github.com/keeper-client/keeper-go/pkg/client"
	"github.com/keeper-client/keeper-go/pkg/connection"
	"github.com/keeper-client/keeper-go/pkg/discovery"
	"github.com/keeper-client/keeper-go/pkg/event"
	"github.com/keeper-client/keeper-go/pkg/keepertest"
	"github.com/keeper-client/keeper-go/pkg/metrics"
	"github.com/keeper-client/keeper-go/pkg/retry"
	"github.com/keeper-client/keeper-go/pkg/watch"
	"github.com/keeper-client/keeper-go/pkg/zkconn"
)

// Options holds the command-line configuration.
type Options struct {
	ConfigFile     string
	Servers        string
	Namespace      string
	SessionTimeout time.Duration
	ConnectTimeout time.Duration
	Discover       string
	Sim            bool
	Advertise      int
	TraceFile      string
	MetricsAddr    string
	LogLevel       string
	Interactive    bool
}

// simBasePort is the port of the first advertised simulated member.
const simBasePort = discovery.DefaultPort

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "Client config file (.yaml, .yml or .toml)")
	flag.StringVar(&opts.Servers, "servers", "", "Comma-separated ensemble endpoints (overrides config)")
	flag.StringVar(&opts.Namespace, "namespace", "", "Path prefix scoping the client")
	flag.DurationVar(&opts.SessionTimeout, "session-timeout", 0, "Requested session timeout (default from config)")
	flag.DurationVar(&opts.ConnectTimeout, "connect-timeout", 0, "Bound on connect (default from config)")
	flag.StringVar(&opts.Discover, "discover", "", "Resolve ensemble members over mDNS by ensemble name")
	flag.BoolVar(&opts.Sim, "sim", false, "Use an in-memory ensemble")
	flag.IntVar(&opts.Advertise, "advertise", 0, "Advertise this many simulated members over mDNS (-sim only)")
	flag.StringVar(&opts.TraceFile, "trace", "", "Write a CBOR trace to this file")
	flag.StringVar(&opts.MetricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&opts.Interactive, "interactive", true, "Start the interactive shell")
}

func main() {
	flag.Parse()
	_ = godotenv.Load()

	logOut := &switchWriter{w: os.Stderr}
	logger := slog.New(tint.NewHandler(logOut, &tint.Options{
		Level:      parseLevel(opts.LogLevel),
		TimeFormat: time.RFC3339,
	}))
	slog.SetDefault(logger)

	if err := run(logger, logOut); err != nil {
		logger.Error("keeperctl failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, logOut *switchWriter) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Simulated members are advertised first so -discover can find them.
	if opts.Sim && opts.Advertise > 0 {
		name := opts.Discover
		if name == "" {
			name = "sim"
		}
		adv, err := advertiseSim(ctx, name, opts.Advertise)
		if err != nil {
			return err
		}
		defer adv.StopAll()
		logger.Info("Advertising simulated members", "ensemble", name, "count", opts.Advertise)
	}

	var browser discovery.Browser
	if opts.Discover != "" {
		b, err := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig())
		if err != nil {
			return fmt.Errorf("create browser: %w", err)
		}
		defer b.Stop()
		browser = b
	}

	cfg, err := buildConfig(ctx, browser)
	if err != nil {
		return err
	}
	cfg.Logger = logger
	cfg.TraceFile = opts.TraceFile

	if opts.MetricsAddr != "" {
		cfg.Metrics = metrics.NewCollector()
		go serveMetrics(logger, opts.MetricsAddr)
	}

	var (
		dialer connection.Dialer
		sim    *keepertest.Ensemble
	)
	if opts.Sim {
		sim = keepertest.NewEnsemble()
		dialer = sim
	} else {
		dialer = zkconn.NewDialer(zkconn.Config{Logger: logger})
	}

	c, err := client.New(dialer, cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer func() {
		if err := c.Shutdown(); err != nil {
			logger.Warn("Shutdown failed", "error", err)
		}
	}()

	logger.Info("Keeper client ready",
		"client", c.ID(),
		"ensemble", c.Ensemble().String(),
		"simulated", opts.Sim)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("Received signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.Interactive {
		shell, err := interactive.New(interactive.Config{
			Client:       c,
			Sim:          sim,
			Browser:      browser,
			EnsembleName: opts.Discover,
		})
		if err != nil {
			return err
		}
		logOut.set(shell.Stdout())
		defer logOut.set(os.Stderr)

		shell.Run(ctx, cancel)
		return nil
	}

	return runHeadless(ctx, logger, c)
}

// runHeadless connects, logs every notification and keeps the session alive
// until ctx ends.
func runHeadless(ctx context.Context, logger *slog.Logger, c *client.Client) error {
	if err := c.Register(watch.NewFunc(func(n event.Notification) {
		logger.Info("Notification", "type", n.Type.String(), "state", n.State.String(), "path", n.Path)
	})); err != nil {
		return err
	}

	reconnect := make(chan struct{}, 1)
	if _, err := c.RegisterExpirationHandler(func() {
		select {
		case reconnect <- struct{}{}:
		default:
		}
	}); err != nil {
		return err
	}

	keepConnected(ctx, logger, c, retry.NewBackoff(), reconnect)
	return nil
}

// keepConnected connects c and reconnects whenever reconnect fires. Failed
// attempts are retried after the next backoff delay until one succeeds or
// ctx ends.
func keepConnected(ctx context.Context, logger *slog.Logger, c *client.Client, backoff *retry.Backoff, reconnect <-chan struct{}) {
	for {
		if c.IsClosed() {
			conn, err := c.Connect(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				delay := backoff.Next()
				logger.Error("Connect failed", "error", err, "attempt", backoff.Attempts(), "retry_in", delay)

				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
				continue
			}
			backoff.Reset()
			logger.Info("Connected", "session", fmt.Sprintf("0x%x", conn.SessionID()))
		}

		select {
		case <-ctx.Done():
			return
		case <-reconnect:
			logger.Warn("Session expired, reconnecting")
			// The handle may not be closed yet when the notification arrives.
			c.Close()
		}
	}
}

func buildConfig(ctx context.Context, browser discovery.Browser) (client.Config, error) {
	cfg := client.DefaultConfig()
	if opts.ConfigFile != "" {
		loaded, err := client.LoadConfig(opts.ConfigFile)
		if err != nil {
			return client.Config{}, err
		}
		cfg = loaded
	}

	if opts.Servers != "" {
		cfg.Servers = splitServers(opts.Servers)
	}
	if len(cfg.Servers) == 0 {
		cfg.Servers = splitServers(os.Getenv("KEEPER_SERVERS"))
	}
	if opts.Namespace != "" {
		cfg.Namespace = opts.Namespace
	}
	if cfg.Namespace == "" {
		cfg.Namespace = os.Getenv("KEEPER_NAMESPACE")
	}
	if opts.SessionTimeout > 0 {
		cfg.SessionTimeout = opts.SessionTimeout
	}
	if opts.ConnectTimeout > 0 {
		cfg.ConnectTimeout = opts.ConnectTimeout
	}

	if len(cfg.Servers) == 0 && browser != nil {
		servers, err := browser.Resolve(ctx, opts.Discover)
		if err != nil {
			return client.Config{}, fmt.Errorf("discover ensemble %q: %w", opts.Discover, err)
		}
		cfg.Servers = servers
	}
	if len(cfg.Servers) == 0 && opts.Sim {
		cfg.Servers = []string{fmt.Sprintf("127.0.0.1:%d", simBasePort)}
	}
	if len(cfg.Servers) == 0 {
		return client.Config{}, errors.New("no servers: use -servers, -config, -discover or KEEPER_SERVERS")
	}

	if err := cfg.Validate(); err != nil {
		return client.Config{}, err
	}
	return cfg, nil
}

func splitServers(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func advertiseSim(ctx context.Context, ensemble string, count int) (discovery.Advertiser, error) {
	adv, err := discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
	if err != nil {
		return nil, fmt.Errorf("create advertiser: %w", err)
	}
	for i := 1; i <= count; i++ {
		m := &discovery.Member{
			Ensemble: ensemble,
			ServerID: uint32(i),
			Port:     uint16(simBasePort + i - 1),
			Version:  "sim",
		}
		if err := adv.Advertise(ctx, m); err != nil {
			adv.StopAll()
			return nil, fmt.Errorf("advertise %s: %w", m.InstanceName(), err)
		}
	}
	return adv, nil
}

func serveMetrics(logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("Metrics server starting", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server stopped", "error", err)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// switchWriter lets log output move to the shell once it owns the terminal.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}
