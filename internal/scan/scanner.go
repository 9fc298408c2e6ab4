package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type FileInfo struct {
	Path      string
	SessionID string
	Mtime     int64
	Size      int64
}

// ScanTranscripts walks the assistant's projects root and returns every
// session transcript found. Unreadable directories are skipped.
func ScanTranscripts(root string) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable dirs
		}
		if info.IsDir() {
			if filepath.Base(path) == "subagents" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".jsonl" {
			return nil
		}
		base := filepath.Base(path)
		if strings.Contains(base, "sessions-index") {
			return nil
		}
		files = append(files, FileInfo{
			Path:      path,
			SessionID: strings.TrimSuffix(base, ".jsonl"),
			Mtime:     info.ModTime().Unix(),
			Size:      info.Size(),
		})
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	return files, err
}

// FindTranscript locates the transcript file for a session id under root.
func FindTranscript(root, sessionID string) (string, error) {
	files, err := ScanTranscripts(root)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f.SessionID == sessionID {
			return f.Path, nil
		}
	}
	return "", fmt.Errorf("no transcript for session %s under %s", sessionID, root)
}
