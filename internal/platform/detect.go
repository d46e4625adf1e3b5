// Package platform identifies the host a job runs on.
package platform

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ErrPlatformNotFound is returned when the host matches no known platform.
var ErrPlatformNotFound = errors.New("platform not found")

// Info captures the identity of the local host.
type Info struct {
	Platform string `json:"platform" yaml:"platform"`
	Hostname string `json:"hostname" yaml:"hostname"`
	OS       string `json:"os" yaml:"os"`
	Arch     string `json:"arch" yaml:"arch"`
	Distro   string `json:"distro,omitempty" yaml:"distro,omitempty"`
	Version  string `json:"version,omitempty" yaml:"version,omitempty"`
}

const osReleasePath = "/etc/os-release"

var (
	redhatFamily = []string{"rhel", "centos", "fedora", "rocky", "almalinux"}
	debianFamily = []string{"debian", "ubuntu"}
)

// Detect returns the platform name and hostname of the local host.
func Detect() (Info, error) {
	info := Info{OS: runtime.GOOS, Arch: runtime.GOARCH}
	var idLike string
	host, err := Hostname()
	if err != nil {
		return info, err
	}
	info.Hostname = host

	if runtime.GOOS == "linux" {
		f, err := os.Open(osReleasePath)
		if err != nil {
			return info, fmt.Errorf("%w: read %s: %v", ErrPlatformNotFound, osReleasePath, err)
		}
		defer f.Close()
		release := parseOSRelease(f)
		info.Distro = release["ID"]
		info.Version = release["VERSION_ID"]
		idLike = release["ID_LIKE"]
	}

	name, err := Name(info.OS, info.Distro, idLike)
	if err != nil {
		return info, err
	}
	info.Platform = name
	return info, nil
}

// Name maps an operating system and, on Linux, its os-release ID and ID_LIKE
// values to a platform name such as linux_redhat or darwin.
func Name(goos, distroID, idLike string) (string, error) {
	switch goos {
	case "linux":
		id := strings.ToLower(strings.TrimSpace(distroID))
		if id == "" {
			return "", fmt.Errorf("%w: linux without an os-release ID", ErrPlatformNotFound)
		}
		candidates := append([]string{id}, strings.Fields(strings.ToLower(idLike))...)
		for _, c := range candidates {
			if contains(redhatFamily, c) {
				return "linux_redhat", nil
			}
			if contains(debianFamily, c) {
				return "linux_debian", nil
			}
		}
		return "linux_" + id, nil
	case "solaris", "illumos":
		return "solaris", nil
	case "darwin", "windows", "freebsd":
		return goos, nil
	default:
		return "", fmt.Errorf("%w: os %q", ErrPlatformNotFound, goos)
	}
}

// Hostname returns the short name of the host: everything before the first dot.
func Hostname() (string, error) {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name, err = runCommand("hostname")
		if err != nil {
			return "", fmt.Errorf("determine hostname: %w", err)
		}
	}
	short, _, _ := strings.Cut(strings.TrimSpace(name), ".")
	return short, nil
}

func parseOSRelease(r io.Reader) map[string]string {
	out := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[key] = strings.Trim(value, `"'`)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func runCommand(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = nil
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
