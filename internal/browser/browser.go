// Package browser opens pages of the running board from the server console.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Commander starts external programs
type Commander interface {
	Start(name string, args ...string) error
}

// ExecCommander starts programs with os/exec without waiting for them
type ExecCommander struct{}

// Start launches name with args
func (ExecCommander) Start(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// Command returns the program and arguments that open url on goos.
func Command(goos, url string) (string, []string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{url}, nil
	case "darwin":
		return "open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// Open opens url in the default browser of this machine
func Open(url string) error {
	return OpenWith(ExecCommander{}, runtime.GOOS, url)
}

// OpenWith opens url through c as if running on goos
func OpenWith(c Commander, goos, url string) error {
	name, args, err := Command(goos, url)
	if err != nil {
		return err
	}
	if err := c.Start(name, args...); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	return nil
}
