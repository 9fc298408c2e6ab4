package detect

import (
	"os/exec"
	"path/filepath"
	"strings"
)

// ProjectName derives the project identity for entity creation: the last
// path segment of the git origin remote when the project is a clone,
// otherwise the directory name.
func ProjectName(root string) string {
	if name := remoteName(root); name != "" {
		return name
	}
	return filepath.Base(root)
}

func remoteName(root string) string {
	cmd := exec.Command("git", "remote", "get-url", "origin")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return ""
	}

	url := strings.TrimSpace(string(out))
	if url == "" {
		return ""
	}
	// works for both https://host/owner/name.git and git@host:owner/name.git
	url = strings.TrimSuffix(url, ".git")
	if i := strings.LastIndexAny(url, "/:"); i >= 0 {
		url = url[i+1:]
	}
	return url
}
