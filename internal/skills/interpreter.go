package skills

import "path/filepath"

// interpreterFor maps an entrypoint to the command line that runs it. Shell
// is the fallback for anything without a known extension.
func interpreterFor(entrypoint string) []string {
	switch filepath.Ext(entrypoint) {
	case ".py":
		return []string{"python3", entrypoint}
	case ".js":
		return []string{"node", entrypoint}
	case ".rb":
		return []string{"ruby", entrypoint}
	default:
		return []string{"sh", entrypoint}
	}
}
