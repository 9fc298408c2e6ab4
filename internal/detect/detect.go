// Package detect discovers the technologies a project uses. Six
// independent heuristics each contribute raw detections; Fuse combines
// them into one ranked, confidence-scored list. A detector that fails
// simply contributes nothing.
package detect

import (
	"sync"

	"github.com/rs/zerolog"
)

// Source names the heuristic that produced a detection.
type Source string

const (
	SourceManifest        Source = "manifest"
	SourceRuntimeConfig   Source = "runtime-config"
	SourceExtensions      Source = "file-extensions"
	SourceFrameworkConfig Source = "framework-config"
	SourceDatabase        Source = "database"
	SourceContainer       Source = "container"
)

// Detection is one raw observation from a single heuristic.
type Detection struct {
	Name       string
	Confidence float64 // 0..1
	Source     Source
	Version    string
	Context    string
}

// Detector inspects a project root and returns its observations.
type Detector struct {
	Source Source
	Run    func(root string) ([]Detection, error)
}

// Detectors returns the full heuristic set.
func Detectors() []Detector {
	return []Detector{
		{SourceManifest, detectManifests},
		{SourceRuntimeConfig, detectRuntimeConfig},
		{SourceExtensions, detectExtensions},
		{SourceFrameworkConfig, detectFrameworkConfig},
		{SourceDatabase, detectDatabases},
		{SourceContainer, detectContainers},
	}
}

// RunAll fans the detectors out concurrently and collects everything they
// find. Detector failures are logged and isolated; they never abort the
// other heuristics.
func RunAll(root string, log zerolog.Logger) []Detection {
	detectors := Detectors()

	results := make([][]Detection, len(detectors))
	var wg sync.WaitGroup
	for i, d := range detectors {
		wg.Add(1)
		go func(i int, d Detector) {
			defer wg.Done()
			found, err := d.Run(root)
			if err != nil {
				log.Debug().Err(err).Str("source", string(d.Source)).Msg("detector failed")
				return
			}
			results[i] = found
		}(i, d)
	}
	wg.Wait()

	var all []Detection
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}
