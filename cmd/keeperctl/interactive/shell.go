// Package interactive provides the interactive command-line interface
// for keeperctl.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/keeper-client/keeper-go/pkg/client"
	"github.com/keeper-client/keeper-go/pkg/connection"
	"github.com/keeper-client/keeper-go/pkg/discovery"
	"github.com/keeper-client/keeper-go/pkg/event"
	"github.com/keeper-client/keeper-go/pkg/fault"
	"github.com/keeper-client/keeper-go/pkg/keepertest"
	"github.com/keeper-client/keeper-go/pkg/retry"
	"github.com/keeper-client/keeper-go/pkg/watch"
)

// flushTimeout bounds the wait for deliveries after a simulated event.
const flushTimeout = 2 * time.Second

// Config configures a Shell.
type Config struct {
	// Client is the client driven by the shell. Required.
	Client *client.Client

	// Sim, if set, enables the fault injection commands.
	Sim *keepertest.Ensemble

	// Browser, if set, enables the discover command.
	Browser discovery.Browser

	// EnsembleName is the default ensemble for discover.
	EnsembleName string
}

// Shell handles interactive mode for keeperctl.
type Shell struct {
	client       *client.Client
	sim          *keepertest.Ensemble
	browser      discovery.Browser
	ensembleName string

	rl  *readline.Instance
	out *lockedWriter

	mu       sync.Mutex
	watchers map[string]watch.Watcher
}

// New creates a new interactive shell on the terminal.
func New(cfg Config) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "keeper> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s, err := newShell(cfg, rl.Stdout())
	if err != nil {
		rl.Close()
		return nil, err
	}
	s.rl = rl
	return s, nil
}

func newShell(cfg Config, out io.Writer) (*Shell, error) {
	if cfg.Client == nil {
		return nil, errors.New("interactive: client required")
	}
	s := &Shell{
		client:       cfg.Client,
		sim:          cfg.Sim,
		browser:      cfg.Browser,
		ensembleName: cfg.EnsembleName,
		out:          &lockedWriter{w: out},
		watchers:     make(map[string]watch.Watcher),
	}

	// Report expirations as they are dispatched
	if _, err := s.client.RegisterExpirationHandler(func() {
		fmt.Fprintln(s.out, "*** Session expired; the next connect starts a new session")
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if !s.Execute(ctx, line) {
			cancel()
			return
		}
	}
}

// Execute runs one command line. It returns false when the shell should exit.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "connect", "c":
		s.cmdConnect(ctx, args)

	case "close":
		s.client.Close()
		fmt.Fprintln(s.out, "Session closed")

	case "detach":
		s.client.Detach()
		fmt.Fprintln(s.out, "Handle detached")

	case "state", "status", "s":
		s.cmdState()

	case "watch", "w":
		s.cmdWatch(args)

	case "unwatch":
		s.cmdUnwatch(args)

	case "watchers":
		s.cmdWatchers()

	case "flush":
		s.cmdFlush(ctx)

	case "classify":
		s.cmdClassify(args)

	case "retry":
		s.cmdRetry(ctx, args)

	case "discover", "d":
		s.cmdDiscover(ctx, args)

	case "expire", "drop", "disconnect", "fire", "readonly", "never":
		s.cmdSim(ctx, cmd, args)

	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return false

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Keeper Client Commands:
  Session:
    connect [timeout]    - Connect, resuming the cached session if any
    close                - Close the session
    detach               - Drop the handle but keep the session
    state                - Show connection and session state

  Watchers:
    watch <path>|*       - Print notifications at or below path (* for all)
    unwatch <path>|*     - Remove a watcher
    watchers             - List watchers
    flush                - Wait for pending deliveries

  Retry:
    classify <CODE>      - Show whether a fault is retryable
    retry <n> [attempts] - Run an operation that fails n times

  Discovery:
    discover [ensemble]  - Resolve ensemble members over mDNS

  Simulation (-sim):
    expire               - Expire the current session
    drop                 - Drop the current handle
    disconnect           - Report a transient disconnect
    fire <type> <path>   - Fire a node notification (created, deleted, changed, children)
    readonly on|off      - Establish new sessions read-only
    never on|off         - Stop establishing new sessions

  General:
    help                 - Show this help
    quit                 - Exit`)
}

func (s *Shell) cmdConnect(ctx context.Context, args []string) {
	var (
		conn connection.Conn
		err  error
	)
	if len(args) > 0 {
		timeout, perr := time.ParseDuration(args[0])
		if perr != nil {
			fmt.Fprintf(s.out, "Invalid timeout: %v\n", perr)
			return
		}
		conn, err = s.client.ConnectTimeout(ctx, timeout)
	} else {
		conn, err = s.client.Connect(ctx)
	}
	if err != nil {
		fmt.Fprintf(s.out, "Connect failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Connected: session 0x%x\n", conn.SessionID())
}

func (s *Shell) cmdState() {
	fmt.Fprintf(s.out, "State:    %s\n", s.client.State())
	fmt.Fprintf(s.out, "Closed:   %v\n", s.client.IsClosed())
	if sess, ok := s.client.Session(); ok {
		fmt.Fprintf(s.out, "Session:  0x%x\n", sess.ID)
	} else {
		fmt.Fprintln(s.out, "Session:  none")
	}
	fmt.Fprintf(s.out, "Ensemble: %s\n", strings.Join(s.client.Ensemble().Servers(), ","))

	s.mu.Lock()
	n := len(s.watchers)
	s.mu.Unlock()
	fmt.Fprintf(s.out, "Watchers: %d\n", n)
}

func (s *Shell) cmdWatch(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: watch <path>|*")
		return
	}
	path := args[0]
	if path != "*" && !strings.HasPrefix(path, "/") {
		fmt.Fprintf(s.out, "Invalid path: %s (must start with /)\n", path)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watchers[path]; ok {
		fmt.Fprintf(s.out, "Already watching %s\n", path)
		return
	}

	w := watch.NewFunc(func(n event.Notification) {
		if matchPath(path, n) {
			fmt.Fprintf(s.out, "[watch %s] %s\n", path, n)
		}
	})
	if err := s.client.Register(w); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	s.watchers[path] = w
	fmt.Fprintf(s.out, "Watching %s\n", path)
}

func (s *Shell) cmdUnwatch(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: unwatch <path>|*")
		return
	}
	path := args[0]

	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watchers[path]
	if !ok {
		fmt.Fprintf(s.out, "Not watching %s\n", path)
		return
	}
	s.client.Unregister(w)
	delete(s.watchers, path)
	fmt.Fprintf(s.out, "Stopped watching %s\n", path)
}

func (s *Shell) cmdWatchers() {
	s.mu.Lock()
	paths := make([]string, 0, len(s.watchers))
	for p := range s.watchers {
		paths = append(paths, p)
	}
	s.mu.Unlock()

	if len(paths) == 0 {
		fmt.Fprintln(s.out, "No watchers")
		return
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Fprintf(s.out, "  %s\n", p)
	}
}

func (s *Shell) cmdFlush(ctx context.Context) {
	if err := s.flush(ctx); err != nil {
		fmt.Fprintf(s.out, "Flush failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "Delivered")
}

func (s *Shell) flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	return s.client.Flush(ctx)
}

func (s *Shell) cmdClassify(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: classify <CODE> (e.g. CONNECTION_LOSS or -4)")
		return
	}
	code, ok := parseCode(args[0])
	if !ok {
		fmt.Fprintf(s.out, "Unknown fault code: %s\n", args[0])
		return
	}

	verdict := "do not retry"
	if s.client.ShouldRetry(fault.New(code, "")) {
		verdict = "retry"
	}
	fmt.Fprintf(s.out, "%s (%d): %s\n", code, int32(code), verdict)
	if code == fault.CodeSessionExpired {
		fmt.Fprintf(s.out, "Session closed: %v\n", s.client.IsClosed())
	}
}

func parseCode(arg string) (fault.Code, bool) {
	if n, err := strconv.ParseInt(arg, 10, 32); err == nil {
		code := fault.Code(n)
		return code, code.Known()
	}
	return fault.ParseCode(strings.ToUpper(arg))
}

func (s *Shell) cmdRetry(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: retry <failures> [attempts]")
		return
	}
	failures, err := strconv.Atoi(args[0])
	if err != nil || failures < 0 {
		fmt.Fprintf(s.out, "Invalid failure count: %s\n", args[0])
		return
	}
	attempts := failures + 1
	if len(args) > 1 {
		attempts, err = strconv.Atoi(args[1])
		if err != nil || attempts < 1 {
			fmt.Fprintf(s.out, "Invalid attempt count: %s\n", args[1])
			return
		}
	}

	policy := retry.Policy{
		MaxAttempts: attempts,
		Backoff:     retry.BackoffConfig{Initial: 10 * time.Millisecond, Max: 200 * time.Millisecond},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			fmt.Fprintf(s.out, "  attempt %d failed: %v (retrying in %s)\n", attempt, err, delay.Round(time.Millisecond))
		},
	}

	calls := 0
	err = s.client.Do(ctx, policy, func(_ context.Context, conn connection.Conn) error {
		calls++
		if calls <= failures {
			return fault.New(fault.CodeConnectionLoss, "/keeperctl/retry")
		}
		fmt.Fprintf(s.out, "  attempt %d succeeded on session 0x%x\n", calls, conn.SessionID())
		return nil
	})
	if err != nil {
		fmt.Fprintf(s.out, "Retry failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Operation succeeded after %d attempt(s)\n", calls)
}

func (s *Shell) cmdDiscover(ctx context.Context, args []string) {
	if s.browser == nil {
		fmt.Fprintln(s.out, "Discovery not enabled (start with -discover)")
		return
	}
	name := s.ensembleName
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		fmt.Fprintln(s.out, "Usage: discover <ensemble>")
		return
	}

	endpoints, err := s.browser.Resolve(ctx, name)
	if err != nil {
		fmt.Fprintf(s.out, "Discover failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Ensemble %s:\n", name)
	for _, ep := range endpoints {
		fmt.Fprintf(s.out, "  %s\n", ep)
	}
}

func (s *Shell) cmdSim(ctx context.Context, cmd string, args []string) {
	if s.sim == nil {
		fmt.Fprintf(s.out, "%s needs a simulated ensemble (start with -sim)\n", cmd)
		return
	}

	switch cmd {
	case "readonly":
		on, ok := parseToggle(args)
		if !ok {
			fmt.Fprintln(s.out, "Usage: readonly on|off")
			return
		}
		s.sim.SetReadOnly(on)
		fmt.Fprintf(s.out, "Read-only sessions: %v\n", on)
		return
	case "never":
		on, ok := parseToggle(args)
		if !ok {
			fmt.Fprintln(s.out, "Usage: never on|off")
			return
		}
		s.sim.SetNeverConnect(on)
		fmt.Fprintf(s.out, "Never connect: %v\n", on)
		return
	}

	conn := s.sim.Current()
	if conn == nil {
		fmt.Fprintln(s.out, "No open handle (connect first)")
		return
	}

	switch cmd {
	case "expire":
		s.sim.Expire(conn)
		fmt.Fprintf(s.out, "Expired session 0x%x\n", conn.SessionID())
	case "drop":
		s.sim.Drop(conn)
		fmt.Fprintf(s.out, "Dropped handle of session 0x%x\n", conn.SessionID())
	case "disconnect":
		s.sim.Disconnect(conn)
		fmt.Fprintf(s.out, "Disconnected session 0x%x\n", conn.SessionID())
	case "fire":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: fire <created|deleted|changed|children> <path>")
			return
		}
		typ, ok := parseType(args[0])
		if !ok {
			fmt.Fprintf(s.out, "Unknown notification type: %s\n", args[0])
			return
		}
		conn.Emit(event.Notification{Type: typ, State: event.StateConnected, Path: args[1]})
	}

	if err := s.flush(ctx); err != nil {
		fmt.Fprintf(s.out, "Flush failed: %v\n", err)
	}
}

func parseToggle(args []string) (bool, bool) {
	if len(args) < 1 {
		return false, false
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		return true, true
	case "off", "false", "0":
		return false, true
	}
	return false, false
}

func parseType(name string) (event.Type, bool) {
	switch strings.ToLower(name) {
	case "created":
		return event.TypeNodeCreated, true
	case "deleted":
		return event.TypeNodeDeleted, true
	case "changed":
		return event.TypeNodeDataChanged, true
	case "children":
		return event.TypeNodeChildrenChanged, true
	case "not-watching":
		return event.TypeNotWatching, true
	}
	return 0, false
}

// matchPath reports whether a watcher on path wants n. "*" matches every
// notification; any other path matches node notifications at or below it.
func matchPath(path string, n event.Notification) bool {
	if path == "*" {
		return true
	}
	if n.IsSession() {
		return false
	}
	return n.Path == path || strings.HasPrefix(n.Path, strings.TrimSuffix(path, "/")+"/")
}

// lockedWriter serializes writes from the prompt and the dispatch goroutine.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
