// Package sysfacts probes the live environment for the facts embedded in
// the system prompt.
package sysfacts

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"os/user"
	"strings"
	"time"
)

const (
	lsbReleasePath   = "/usr/bin/lsb_release"
	osReleaseTimeout = 2 * time.Second
)

var osReleaseFiles = []string{"/etc/os-release", "/usr/lib/os-release"}

// Provider supplies environment facts. Implementations must return entries
// in a stable order for a given environment snapshot.
type Provider interface {
	// Username returns the name of the current user.
	Username() string

	// WorkingDir returns the current working directory.
	WorkingDir() string

	// DirEntries returns the names in the working directory, in the order
	// the operating system reports them.
	DirEntries() []string

	// EnvNames returns the names of the environment variables, deduplicated,
	// in environment order.
	EnvNames() []string

	// OSRelease returns a one-line OS description, or "" when unavailable.
	OSRelease() string
}

// Host reads facts from the running process and the local machine.
type Host struct{}

// NewHost creates a facts provider backed by the local machine
func NewHost() *Host {
	return &Host{}
}

// Username implements Provider.
func (h *Host) Username() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, key := range []string{"USER", "LOGNAME", "USERNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "unknown"
}

// WorkingDir implements Provider.
func (h *Host) WorkingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// DirEntries implements Provider. os.ReadDir sorts by name, so the directory
// is read with Readdirnames to keep the OS order.
func (h *Host) DirEntries() []string {
	dir, err := os.Open(".")
	if err != nil {
		return nil
	}
	defer dir.Close()

	names, err := dir.Readdirnames(-1)
	if err != nil {
		return nil
	}
	return names
}

// EnvNames implements Provider.
func (h *Host) EnvNames() []string {
	return EnvNamesFrom(os.Environ())
}

// OSRelease implements Provider. It prefers lsb_release and falls back to
// the PRETTY_NAME of os-release.
func (h *Host) OSRelease() string {
	if _, err := os.Stat(lsbReleasePath); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), osReleaseTimeout)
		defer cancel()

		out, err := exec.CommandContext(ctx, lsbReleasePath, "-d").Output()
		if err == nil {
			desc := strings.TrimSpace(string(out))
			desc = strings.TrimSpace(strings.TrimPrefix(desc, "Description:"))
			if desc != "" {
				return desc
			}
		}
	}

	for _, path := range osReleaseFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if name := prettyName(data); name != "" {
			return name
		}
	}
	return ""
}

// EnvNamesFrom extracts variable names from KEY=value pairs, keeping the
// first occurrence of each name.
func EnvNamesFrom(environ []string) []string {
	seen := make(map[string]bool, len(environ))
	names := make([]string, 0, len(environ))
	for _, kv := range environ {
		name, _, _ := strings.Cut(kv, "=")
		// Windows carries hidden "=C:" style entries with an empty name.
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func prettyName(osRelease []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(osRelease))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || key != "PRETTY_NAME" {
			continue
		}
		return strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return ""
}

// Static is a fixed set of facts, used for tests and for replaying a
// captured environment.
type Static struct {
	User    string
	Dir     string
	Entries []string
	Env     []string
	Release string
}

// Username implements Provider.
func (s Static) Username() string { return s.User }

// WorkingDir implements Provider.
func (s Static) WorkingDir() string { return s.Dir }

// DirEntries implements Provider.
func (s Static) DirEntries() []string { return s.Entries }

// EnvNames implements Provider.
func (s Static) EnvNames() []string { return s.Env }

// OSRelease implements Provider.
func (s Static) OSRelease() string { return s.Release }

var (
	_ Provider = (*Host)(nil)
	_ Provider = Static{}
)
