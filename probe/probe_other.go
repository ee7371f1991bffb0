//go:build !linux && !windows

package probe

import (
	"fmt"
	"runtime"
)

func newPlatformProber() (Prober, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, runtime.GOOS)
}
