package device

import "strings"

// Shell commands for app lifecycle operations.
const (
	cmdListProcesses = "ps"
	cmdWindowDump    = "dumpsys window"
)

// parseRunningApps extracts third-party app package names from `ps`
// output. Third-party apps run under u0_a* users; system processes and
// kernel threads do not.
func parseRunningApps(psOutput string) []string {
	apps := make([]string, 0, 8)
	seen := make(map[string]bool)

	for _, line := range strings.Split(psOutput, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if !strings.HasPrefix(fields[0], "u0_a") {
			continue
		}
		name := fields[len(fields)-1]
		// Native subprocesses show up as paths or name:suffix entries;
		// only bare package names are apps.
		if strings.ContainsAny(name, "/:[]") {
			continue
		}
		if !seen[name] {
			seen[name] = true
			apps = append(apps, name)
		}
	}

	return apps
}

// startAppCommand launches an app the way a remote would, through the
// launcher intent. monkey resolves the main activity so we do not need
// to know each app's entry point.
func startAppCommand(app string) string {
	return "monkey -p " + app + " -c android.intent.category.LAUNCHER 1"
}

// stopAppCommand force-stops every process of the app.
func stopAppCommand(app string) string {
	return "am force-stop " + app
}

// containsApp reports whether app appears in the running list.
func containsApp(apps []string, app string) bool {
	for _, a := range apps {
		if a == app {
			return true
		}
	}
	return false
}
