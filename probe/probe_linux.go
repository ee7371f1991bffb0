//go:build linux

package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// xdotoolProber reads the active X11 window through xdotool. Icons are not resolved.
type xdotoolProber struct {
	bin string
}

func newPlatformProber() (Prober, error) {
	bin, err := exec.LookPath("xdotool")
	if err != nil {
		return nil, fmt.Errorf("%w: xdotool is not installed", ErrUnsupported)
	}
	return &xdotoolProber{bin: bin}, nil
}

func (p *xdotoolProber) Sample(ctx context.Context) (Sample, error) {
	title, err := p.run(ctx, "getwindowname")
	if err != nil {
		return Sample{}, &Error{Op: "window title", Err: err}
	}
	rawPID, err := p.run(ctx, "getwindowpid")
	if err != nil {
		return Sample{}, &Error{Op: "window pid", Err: err}
	}
	pid, err := strconv.ParseInt(rawPID, 10, 32)
	if err != nil {
		return Sample{}, &Error{Op: "window pid", Err: err}
	}
	name, _, err := processInfo(int32(pid))
	if err != nil {
		return Sample{}, err
	}
	return Sample{
		Title:   NormalizeTitle(title),
		Program: name,
		PID:     int32(pid),
	}, nil
}

func (p *xdotoolProber) run(ctx context.Context, query string) (string, error) {
	out, err := exec.CommandContext(ctx, p.bin, "getactivewindow", query).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\r\n"), nil
}
