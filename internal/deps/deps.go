package deps

import (
	"os/exec"
	"strings"
)

// Status represents the installation status of a dependency
type Status struct {
	Name      string
	Installed bool
	Path      string
	Version   string
	Purpose   string
	Required  bool
}

// Tool describes an external program remotescribe shells out to.
type Tool struct {
	Name        string
	VersionArgs []string
	Purpose     string
	Required    bool
}

// Tools lists every external program used at runtime.
var Tools = []Tool{
	{Name: "pw-record", VersionArgs: []string{"--version"}, Purpose: "capture from a PipeWire node", Required: true},
	{Name: "pw-play", VersionArgs: []string{"--version"}, Purpose: "play back recordings"},
	{Name: "notify-send", VersionArgs: []string{"--version"}, Purpose: "desktop notifications"},
}

// Check looks tool up in PATH and reads the first line of its version output.
func Check(tool Tool) Status {
	status := Status{Name: tool.Name, Purpose: tool.Purpose, Required: tool.Required}

	path, err := exec.LookPath(tool.Name)
	if err != nil {
		return status
	}
	status.Installed = true
	status.Path = path

	if len(tool.VersionArgs) == 0 {
		return status
	}
	output, err := exec.Command(path, tool.VersionArgs...).Output()
	if err == nil {
		// first non-empty line carries the version
		for _, line := range strings.Split(string(output), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				status.Version = line
				break
			}
		}
	}
	return status
}

// CheckAll checks every entry in Tools.
func CheckAll() []Status {
	out := make([]Status, 0, len(Tools))
	for _, tool := range Tools {
		out = append(out, Check(tool))
	}
	return out
}

// Missing returns the names of required tools that are not installed.
func Missing(statuses []Status) []string {
	var names []string
	for _, s := range statuses {
		if s.Required && !s.Installed {
			names = append(names, s.Name)
		}
	}
	return names
}
