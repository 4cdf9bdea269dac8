package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"telewatch/internal/app"
	"telewatch/internal/notify"
	logx "telewatch/pkg/logx"
)

func main() {
	var (
		cfgPath string
		monitor bool
		status  bool
		verbose bool
		trace   bool
	)
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config file (json or yaml)")
	flag.BoolVar(&monitor, "monitor", false, "start monitoring immediately (daemon mode)")
	flag.BoolVar(&status, "status", false, "print notification channel status and exit")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.BoolVar(&trace, "vv", false, "trace logging")
	flag.Parse()
	_ = monitor // kept for compatibility; monitoring always runs

	// Credentials may live in a .env next to the binary; absence is fine.
	_ = godotenv.Load()

	var opts []app.Option
	switch {
	case trace:
		opts = append(opts, app.WithLogLevel("TRACE"))
	case verbose:
		opts = append(opts, app.WithLogLevel("DEBUG"))
	}

	a, err := app.New(cfgPath, opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if status {
		printStatus(a)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}
	_ = a.Stop(context.Background())

	if err := a.Err(); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

// printStatus renders each channel's enabled marker and human-readable
// configuration summary.
func printStatus(a *app.App) {
	snap := a.Snapshot()
	reg := notify.NewRegistry(nil, notify.Executor{}, logx.Nop())
	fmt.Println("Notification channels:")
	for _, n := range reg.All() {
		marker := " "
		if n.Enabled(snap) {
			marker = "*"
		}
		fmt.Printf("  [%s] %-8s %s\n", marker, n.Channel(), n.DisplayStatus(snap))
	}
}
