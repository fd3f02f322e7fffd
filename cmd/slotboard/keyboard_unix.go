//go:build linux || darwin

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/abrezinsky/slotboard/internal/browser"
	"github.com/abrezinsky/slotboard/internal/logger"
)

// listenForKeyboard puts the terminal into single-key mode and handles key
// presses in the background. Quitting calls stop so the server shuts down
// gracefully. The returned func restores the terminal.
func listenForKeyboard(boardURL string, appLog *logger.SlogLogger, stop context.CancelFunc) (restore func()) {
	fd := int(os.Stdin.Fd())
	oldState, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		// not a terminal
		return func() {}
	}

	// Read single characters without Enter; keep output processing so \n works
	newState := *oldState
	newState.Lflag &^= unix.ICANON | unix.ECHO
	newState.Cc[unix.VMIN] = 1
	newState.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &newState); err != nil {
		return func() {}
	}

	go readKeys(boardURL, appLog, stop)
	return func() { unix.IoctlSetTermios(fd, ioctlSetTermios, oldState) }
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
