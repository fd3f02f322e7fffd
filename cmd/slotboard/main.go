package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abrezinsky/slotboard/internal/app"
	"github.com/abrezinsky/slotboard/internal/config"
	"github.com/abrezinsky/slotboard/internal/logger"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	red    = "\033[31m"
	green  = "\033[32m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
)

var (
	version = "dev"
)

const usage = `SlotBoard - weekly sports slot sign-up board

Usage:
  slotboard [options]

Options:
  -port int      HTTP server port (default 8081, env PORT)
  -db string     SQLite path or postgres:// URL (default "slotboard.db", env DATABASE_URL)
  -loglevel str  Log level: debug, info, warn, error (default "info", env LOG_LEVEL)
  -tz string     Timezone for cutoffs and backup ids (default "Local", env TIMEZONE)
  -sports path   JSON sport catalog overriding the defaults (env SPORTS_FILE)
  -dev           Generate a JWT secret when JWT_SECRET is unset
  -nokeyboard    Disable keyboard shortcuts
  -version       Show version and exit
  -help          Show this help message

Environment only:
  JWT_SECRET     Secret for identity tokens (required unless -dev)
  ADMIN_EMAILS   Comma separated admin addresses
  CUTOFF_HOUR    Hour of the day a slot's cutoff falls on (default 12)
  REDIS_URL      Share live updates between instances through Redis
  CORS_ORIGINS   Allowed origins (default "*")
  RATE_LIMIT     Mutations per minute per client, 0 disables (default 60)
  BASE_URL       Public board URL printed on roster sheets

Values are also read from a .env file in the working directory.

Keyboard Shortcuts (when enabled):
  b              Open the board in a browser
  h              Toggle HTTP request logging
  l              Cycle log level (debug → info → warn → error)
  q              Quit server
  ?              Show keyboard help
`

// showBanner prints the SlotBoard logo
func showBanner() {
	logo := []string{
		"   ____  _       _   ____                      _ ",
		"  / ___|| | ___ | |_| __ )  ___   __ _ _ __ __| |",
		"  \\___ \\| |/ _ \\| __|  _ \\ / _ \\ / _` | '__/ _` |",
		"   ___) | | (_) | |_| |_) | (_) | (_| | | | (_| |",
		"  |____/|_|\\___/ \\__|____/ \\___/ \\__,_|_|  \\__,_|",
	}
	width := 52
	border := strings.Repeat("═", width)

	fmt.Printf("\n  %s╔%s╗%s\n", cyan, border, reset)
	for _, line := range logo {
		fmt.Printf("  %s║%s%-*s%s║%s\n", cyan, yellow, width, line, cyan, reset)
	}
	fmt.Printf("  %s╚%s╝%s\n\n", cyan, border, reset)
}

// cycleLogLevel cycles through debug -> info -> warn -> error
func cycleLogLevel(appLog *logger.SlogLogger) {
	next := map[string]string{
		"DEBUG": "info",
		"INFO":  "warn",
		"WARN":  "error",
		"ERROR": "debug",
	}[appLog.GetLevel().String()]
	if next == "" {
		next = "info"
	}

	appLog.SetLevel(logger.ParseLevel(next))
	fmt.Printf("%sLog level: %s%s%s\n", green, yellow, next, reset)
}

// printKeyboardHelp displays all available keyboard shortcuts
func printKeyboardHelp() {
	fmt.Printf("\n%s%s  Keyboard Shortcuts:%s\n", bold, green, reset)
	fmt.Printf("    %sb%s      - Open the board in a browser\n", cyan, reset)
	fmt.Printf("    %sh%s      - Toggle HTTP request logging\n", cyan, reset)
	fmt.Printf("    %sl%s      - Cycle log level (debug → info → warn → error)\n", cyan, reset)
	fmt.Printf("    %sq%s      - Quit server\n", cyan, reset)
	fmt.Printf("    %s?%s      - Show this help\n\n", cyan, reset)
}

func toggleHTTPLogging(appLog *logger.SlogLogger) {
	if appLog.IsHTTPLoggingEnabled() {
		appLog.DisableHTTPLogging()
		fmt.Printf("%sHTTP logging disabled%s\n", yellow, reset)
	} else {
		appLog.EnableHTTPLogging()
		fmt.Printf("%sHTTP logging enabled%s\n", green, reset)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:], config.Env())
	if errors.Is(err, flag.ErrHelp) {
		fmt.Fprint(os.Stderr, usage)
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%sslotboard: %v%s\n\n%s", red, err, reset, usage)
		return 2
	}
	if cfg.ShowVersion {
		fmt.Printf("slotboard %s\n", version)
		return 0
	}

	showBanner()

	appLog := logger.NewWithLevel(logger.ParseLevel(cfg.LogLevel))
	if cfg.GeneratedSecret {
		appLog.Warn("JWT_SECRET not set, generated one for this run; tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("Failed to initialize application", "error", err)
		return 1
	}
	defer a.Close()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.Run(ctx)
	}()

	// Wait a moment for server to start
	time.Sleep(100 * time.Millisecond)

	boardURL := fmt.Sprintf("http://localhost:%d/", cfg.Port)
	if !cfg.NoKeyboard {
		printKeyboardHelp()
		restore := listenForKeyboard(boardURL, appLog, stop)
		defer restore()
	} else {
		fmt.Printf("\n%sKeyboard shortcuts disabled%s\n\n", yellow, reset)
	}

	if err := <-serverErr; err != nil {
		appLog.Error("Server failed", "error", err)
		return 1
	}
	appLog.Info("Server stopped")
	return 0
}
