// Package probe asks the operating system which window holds input focus.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/process"
)

// MaxTitleLength bounds the title read from a window, in characters.
const MaxTitleLength = 256

var ErrUnsupported = errors.New("foreground probe unsupported on this platform")

// Sample is what one poll learns about the focused window.
type Sample struct {
	Title   string
	Program string
	PID     int32
	// Icon is PNG data, nil when no icon could be resolved.
	Icon []byte
}

type Prober interface {
	Sample(ctx context.Context) (Sample, error)
}

// Error is returned when a native query fails or the owning process is gone.
// The poll that hit it is skipped.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns the prober of the running platform.
func New() (Prober, error) {
	return newPlatformProber()
}

// NormalizeTitle truncates title and quotes it when it contains a comma, so
// consumers splitting on commas keep it in one field.
func NormalizeTitle(title string) string {
	if r := []rune(title); len(r) > MaxTitleLength {
		title = string(r[:MaxTitleLength])
	}
	if strings.Contains(title, ",") {
		return `"` + title + `"`
	}
	return title
}

// processInfo resolves the short name and executable path of pid.
func processInfo(pid int32) (name, exe string, err error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return "", "", &Error{Op: "process", Err: err}
	}
	name, err = proc.Name()
	if err != nil {
		return "", "", &Error{Op: "process name", Err: err}
	}
	// le chemin n'est utile que pour l'icône
	exe, _ = proc.Exe()
	return strings.TrimSuffix(name, ".exe"), exe, nil
}
