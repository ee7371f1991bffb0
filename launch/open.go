package launch

import (
	"os/exec"
	"path/filepath"
	"runtime"
)

// Open hands target, a file or URL, to the desktop's default handler.
func Open(target string) error {
	name, args := openCommand(runtime.GOOS, target)
	return exec.Command(name, args...).Start()
}

// Reveal shows path selected in the file manager where the platform allows
// it, otherwise opens its directory.
func Reveal(path string) error {
	name, args := revealCommand(runtime.GOOS, path)
	return exec.Command(name, args...).Start()
}

func openCommand(goos, target string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	case "darwin":
		return "open", []string{target}
	default:
		return "xdg-open", []string{target}
	}
}

func revealCommand(goos, path string) (string, []string) {
	switch goos {
	case "windows":
		return "explorer", []string{"/select," + path}
	case "darwin":
		return "open", []string{"-R", path}
	default:
		return openCommand(goos, filepath.Dir(path))
	}
}
