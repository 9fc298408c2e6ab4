package detect

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// skipDirs are never descended into during the extension census.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, "target": true, "__pycache__": true,
}

var extensionTechnologies = map[string]string{
	".go":  "Go",
	".ts":  "TypeScript",
	".tsx": "TypeScript",
	".js":  "JavaScript",
	".jsx": "JavaScript",
	".py":  "Python",
	".rs":  "Rust",
	".rb":  "Ruby",
	".java": "Java",
	".kt":  "Kotlin",
	".swift": "Swift",
	".vue": "Vue.js",
	".svelte": "Svelte",
}

// maxCensusFiles bounds the walk on very large trees.
const maxCensusFiles = 5000

// detectExtensions counts source files by extension; confidence scales
// with a technology's share of the source tree, capped well below the
// config-based heuristics.
func detectExtensions(root string) ([]Detection, error) {
	counts := make(map[string]int)
	total := 0

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are not a detector failure
		}
		if info.IsDir() {
			if skipDirs[filepath.Base(path)] {
				return filepath.SkipDir
			}
			return nil
		}
		if total >= maxCensusFiles {
			return filepath.SkipDir
		}
		if tech, ok := extensionTechnologies[filepath.Ext(path)]; ok {
			counts[tech]++
			total++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	var found []Detection
	for _, name := range names {
		share := float64(counts[name]) / float64(total)
		confidence := 0.3 + share*0.5
		if confidence > 0.8 {
			confidence = 0.8
		}
		found = append(found, Detection{
			Name:       name,
			Confidence: confidence,
			Source:     SourceExtensions,
			Context:    fmt.Sprintf("%d source files", counts[name]),
		})
	}
	return found, nil
}

// detectRuntimeConfig looks for build and runtime configuration files
// whose presence alone implies a technology.
func detectRuntimeConfig(root string) ([]Detection, error) {
	configs := []struct {
		file       string
		tech       string
		confidence float64
	}{
		{"tsconfig.json", "TypeScript", 0.85},
		{"go.sum", "Go", 0.85},
		{"pyproject.toml", "Python", 0.85},
		{"setup.py", "Python", 0.8},
		{"Gemfile", "Ruby", 0.85},
		{"pom.xml", "Java", 0.85},
		{"build.gradle", "Gradle", 0.85},
		{"build.gradle.kts", "Gradle", 0.85},
		{"Cargo.lock", "Rust", 0.85},
		{"Makefile", "Make", 0.6},
	}

	var found []Detection
	for _, c := range configs {
		if _, err := os.Stat(filepath.Join(root, c.file)); err == nil {
			found = append(found, Detection{
				Name:       c.tech,
				Confidence: c.confidence,
				Source:     SourceRuntimeConfig,
				Context:    c.file,
			})
		}
	}
	return found, nil
}

// detectFrameworkConfig sniffs well-known framework config files.
func detectFrameworkConfig(root string) ([]Detection, error) {
	configs := []struct {
		glob       string
		tech       string
		confidence float64
	}{
		{"next.config.*", "Next.js", 0.9},
		{"nuxt.config.*", "Nuxt", 0.9},
		{"vue.config.js", "Vue.js", 0.85},
		{"angular.json", "Angular", 0.9},
		{"svelte.config.*", "Svelte", 0.9},
		{"astro.config.*", "Astro", 0.9},
		{"vite.config.*", "Vite", 0.8},
		{"webpack.config.*", "Webpack", 0.8},
		{"tailwind.config.*", "Tailwind CSS", 0.85},
		{"jest.config.*", "Jest", 0.7},
	}

	var found []Detection
	for _, c := range configs {
		matches, err := filepath.Glob(filepath.Join(root, c.glob))
		if err != nil || len(matches) == 0 {
			continue
		}
		found = append(found, Detection{
			Name:       c.tech,
			Confidence: c.confidence,
			Source:     SourceFrameworkConfig,
			Context:    filepath.Base(matches[0]),
		})
	}
	return found, nil
}

var databasePatterns = []struct {
	pattern string
	tech    string
}{
	{"postgres://", "PostgreSQL"},
	{"postgresql://", "PostgreSQL"},
	{"mysql://", "MySQL"},
	{"mongodb://", "MongoDB"},
	{"mongodb+srv://", "MongoDB"},
	{"redis://", "Redis"},
	{"clickhouse://", "ClickHouse"},
}

// detectDatabases scans env files and compose files for connection-string
// and service-image hints.
func detectDatabases(root string) ([]Detection, error) {
	var found []Detection

	for _, envFile := range []string{".env", ".env.local", ".env.example"} {
		data, err := os.ReadFile(filepath.Join(root, envFile))
		if err != nil {
			continue
		}
		lower := strings.ToLower(string(data))
		for _, p := range databasePatterns {
			if strings.Contains(lower, p.pattern) {
				found = append(found, Detection{
					Name:       p.tech,
					Confidence: 0.8,
					Source:     SourceDatabase,
					Context:    envFile,
				})
			}
		}
	}

	for _, compose := range []string{"docker-compose.yml", "docker-compose.yaml", "compose.yaml"} {
		data, err := os.ReadFile(filepath.Join(root, compose))
		if err != nil {
			continue
		}
		lower := strings.ToLower(string(data))
		for image, tech := range map[string]string{
			"postgres": "PostgreSQL", "mysql": "MySQL", "mariadb": "MariaDB",
			"mongo": "MongoDB", "redis": "Redis", "clickhouse": "ClickHouse",
		} {
			if strings.Contains(lower, "image:") && strings.Contains(lower, image) {
				found = append(found, Detection{
					Name:       tech,
					Confidence: 0.75,
					Source:     SourceDatabase,
					Context:    compose + " service image",
				})
			}
		}
		break
	}

	return found, nil
}

// detectContainers sniffs containerization config.
func detectContainers(root string) ([]Detection, error) {
	var found []Detection

	if _, err := os.Stat(filepath.Join(root, "Dockerfile")); err == nil {
		found = append(found, Detection{
			Name: "Docker", Confidence: 0.9, Source: SourceContainer, Context: "Dockerfile",
		})
	}
	for _, compose := range []string{"docker-compose.yml", "docker-compose.yaml", "compose.yaml"} {
		if _, err := os.Stat(filepath.Join(root, compose)); err == nil {
			found = append(found, Detection{
				Name: "Docker Compose", Confidence: 0.9, Source: SourceContainer, Context: compose,
			})
			break
		}
	}
	if _, err := os.Stat(filepath.Join(root, ".dockerignore")); err == nil {
		found = append(found, Detection{
			Name: "Docker", Confidence: 0.6, Source: SourceContainer, Context: ".dockerignore",
		})
	}

	return found, nil
}
