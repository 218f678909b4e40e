package prompt

import "strings"

// noisyEnvNames are environment variables that only describe the terminal,
// the desktop session or similar plumbing.
var noisyEnvNames = map[string]bool{
	// Terminal colors
	"color_prompt":       true,
	"force_color_prompt": true,
	"COLORTERM":          true,
	"LSCOLORS":           true,
	"LS_COLORS":          true,
	"LS_OPTIONS":         true,
	"CLICOLOR":           true,

	// GUI and auth details
	"SESSION_MANAGER":      true,
	"TERM_PROGRAM_VERSION": true,
	"VDPAU_DRIVER":         true,
	"SSH_AUTH_SOCK":        true,
	"SYSTEMD_EXEC_PID":     true,
	"XAUTHORITY":           true,

	"MOTD_SHOWN":    true,
	"PYTHONSTARTUP": true,
	"INVOCATION_ID": true,
}

var noisyEnvPrefixes = []string{
	"VSCODE_",
	"COLOR_",
	"XDG_",
	"DBUS_",
	"GJS_",
	"GDM_",
	"GIO_",
}

// FilterEnv drops noisy variable names, keeping the order of the rest.
func FilterEnv(names []string) []string {
	filtered := make([]string, 0, len(names))
	for _, name := range names {
		if isNoisyEnv(name) {
			continue
		}
		filtered = append(filtered, name)
	}
	return filtered
}

func isNoisyEnv(name string) bool {
	if noisyEnvNames[name] {
		return true
	}
	for _, prefix := range noisyEnvPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
