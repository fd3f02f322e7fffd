//go:build windows

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/abrezinsky/slotboard/internal/browser"
	"github.com/abrezinsky/slotboard/internal/logger"
)

// listenForKeyboard handles keys from the console in the background. Input
// is line buffered on Windows so each key needs Enter.
func listenForKeyboard(boardURL string, appLog *logger.SlogLogger, stop context.CancelFunc) (restore func()) {
	go readKeys(boardURL, appLog, stop)
	return func() {}
}

func readKeys(boardURL string, appLog *logger.SlogLogger, stop context.CancelFunc) {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}

		switch strings.ToLower(string(buf[0])) {
		case "b":
			fmt.Printf("%sOpening the board in a browser...%s\n", cyan, reset)
			if err := browser.Open(boardURL); err != nil {
				fmt.Printf("%sError opening browser: %v%s\n", red, err, reset)
			}
		case "h":
			toggleHTTPLogging(appLog)
		case "l":
			cycleLogLevel(appLog)
		case "q":
			fmt.Printf("%sShutting down server...%s\n", yellow, reset)
			stop()
			return
		case "?":
			printKeyboardHelp()
		}
	}
}
