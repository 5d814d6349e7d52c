package log_test

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/keeper-client/keeper-go/pkg/client"
	"github.com/keeper-client/keeper-go/pkg/log"
)

func ExampleNewFileLogger() {
	dir, err := os.MkdirTemp("", "keeper-trace")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)

	fileLogger, err := log.NewFileLogger(filepath.Join(dir, "client.ktrace"))
	if err != nil {
		fmt.Println(err)
		return
	}
	defer fileLogger.Close()

	cfg := client.DefaultConfig()
	cfg.Servers = []string{"zk1:2181"}
	cfg.Trace = log.NewMultiLogger(
		log.NewSlogAdapter(slog.New(slog.DiscardHandler)),
		fileLogger,
	)

	fmt.Println(cfg.Validate() == nil)
	// Output: true
}
