// Command keeper-log is a tool for viewing and analyzing keeper client trace files.
//
// Trace files are created when a client is configured with trace_file, or
// when keeperctl runs with the -trace flag.
//
// Usage:
//
//	keeper-log <command> [flags] <file.ktrace>
//
// Commands:
//
//	view     View trace file in human-readable format
//	export   Export trace file to JSON or CSV format
//	filter   Filter trace file and write to new file
//	stats    Show statistics about the trace file
//
// Examples:
//
//	# View all events
//	keeper-log view client.ktrace
//
//	# View only notifications below /app/locks
//	keeper-log view --category notification --path /app/locks client.ktrace
//
//	# Export to JSONL
//	keeper-log export --format jsonl client.ktrace
//
//	# Filter one session and save to new file
//	keeper-log filter --session 0x100 -o session.ktrace client.ktrace
//
//	# Show statistics
//	keeper-log stats client.ktrace
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/keeper-client/keeper-go/cmd/keeper-log/commands"
)

const usage = `keeper-log - Keeper Client Trace Analyzer

Usage:
  keeper-log <command> [flags] <file.ktrace>

Commands:
  view     View trace file in human-readable format
  export   Export trace file to JSON or CSV format
  filter   Filter trace file and write to new file
  stats    Show statistics about the trace file

Use "keeper-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func requirePath(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `keeper-log view - View trace file in human-readable format

Usage:
  keeper-log view [flags] <file.ktrace>

Flags:
`)
		fs.PrintDefaults()
	}

	category := fs.String("category", "", "Filter by category (state, notification, error, retry)")
	session := fs.String("session", "", "Filter by session ID (hex)")
	path := fs.String("path", "", "Filter notifications by node path prefix")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	file := requirePath(fs)

	var filter commands.ViewFilter
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}
	if *session != "" {
		id, err := commands.ParseSessionFlag(*session)
		if err != nil {
			fail(err)
		}
		filter.SessionID = id
	}
	filter.Path = *path

	if err := commands.RunView(file, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `keeper-log export - Export trace file to JSON or CSV format

Usage:
  keeper-log export [flags] <file.ktrace>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	file := requirePath(fs)

	if err := commands.RunExport(file, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `keeper-log filter - Filter trace file and write to new file

Usage:
  keeper-log filter [flags] <file.ktrace>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	clientID := fs.String("client-id", "", "Filter by client ID")
	session := fs.String("session", "", "Filter by session ID (hex)")
	path := fs.String("path", "", "Filter notifications by node path prefix")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	category := fs.String("category", "", "Filter by category (state, notification, error, retry)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	file := requirePath(fs)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	opts := commands.FilterOptions{
		Output:    *output,
		ClientID:  *clientID,
		SessionID: *session,
		Path:      *path,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
		Category:  *category,
	}

	count, err := commands.RunFilter(file, opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", count, *output)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `keeper-log stats - Show statistics about the trace file

Usage:
  keeper-log stats <file.ktrace>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	file := requirePath(fs)

	if err := commands.RunStats(file, os.Stdout); err != nil {
		fail(err)
	}
}
