package detect

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// npmTechnologies maps package.json dependency names to technologies.
type manifestEntry struct {
	tech       string
	confidence float64
}

var npmTechnologies = map[string]manifestEntry{
	"vue":               {"Vue.js", 0.9},
	"react":             {"React", 0.9},
	"next":              {"Next.js", 0.9},
	"nuxt":              {"Nuxt", 0.9},
	"svelte":            {"Svelte", 0.9},
	"@angular/core":     {"Angular", 0.9},
	"express":           {"Express", 0.85},
	"fastify":           {"Fastify", 0.85},
	"typescript":        {"TypeScript", 0.85},
	"tailwindcss":       {"Tailwind CSS", 0.8},
	"vite":              {"Vite", 0.75},
	"webpack":           {"Webpack", 0.7},
	"jest":              {"Jest", 0.7},
	"vitest":            {"Vitest", 0.7},
	"prisma":            {"Prisma", 0.8},
	"@prisma/client":    {"Prisma", 0.8},
	"mongoose":          {"MongoDB", 0.8},
	"pg":                {"PostgreSQL", 0.8},
	"mysql2":            {"MySQL", 0.8},
	"redis":             {"Redis", 0.8},
	"ioredis":           {"Redis", 0.8},
	"electron":          {"Electron", 0.9},
	"react-native":      {"React Native", 0.9},
}

var pythonTechnologies = map[string]manifestEntry{
	"django":     {"Django", 0.9},
	"flask":      {"Flask", 0.9},
	"fastapi":    {"FastAPI", 0.9},
	"pandas":     {"pandas", 0.8},
	"numpy":      {"NumPy", 0.8},
	"pytest":     {"pytest", 0.7},
	"sqlalchemy": {"SQLAlchemy", 0.8},
}

// detectManifests reads dependency manifests and maps known dependencies
// to technologies with fixed confidences.
func detectManifests(root string) ([]Detection, error) {
	var found []Detection

	if deps, ok := readPackageJSON(filepath.Join(root, "package.json")); ok {
		found = append(found, Detection{
			Name: "Node.js", Confidence: 0.85, Source: SourceManifest,
			Context: "package.json",
		})
		for dep, version := range deps {
			entry, known := npmTechnologies[dep]
			if !known {
				continue
			}
			found = append(found, Detection{
				Name:       entry.tech,
				Confidence: entry.confidence,
				Source:     SourceManifest,
				Version:    strings.TrimLeft(version, "^~>=<"),
				Context:    "package.json dependency " + dep,
			})
		}
	}

	if data, err := os.ReadFile(filepath.Join(root, "go.mod")); err == nil {
		found = append(found, Detection{
			Name: "Go", Confidence: 0.9, Source: SourceManifest, Context: "go.mod",
		})
		for dep, entry := range map[string]manifestEntry{
			"github.com/gin-gonic/gin":  {"Gin", 0.85},
			"github.com/labstack/echo":  {"Echo", 0.85},
			"github.com/gofiber/fiber":  {"Fiber", 0.85},
			"github.com/spf13/cobra":    {"Cobra", 0.75},
			"gorm.io/gorm":              {"GORM", 0.8},
		} {
			if strings.Contains(string(data), dep) {
				found = append(found, Detection{
					Name:       entry.tech,
					Confidence: entry.confidence,
					Source:     SourceManifest,
					Context:    "go.mod require " + dep,
				})
			}
		}
	}

	for _, manifest := range []string{"requirements.txt", "pyproject.toml"} {
		data, err := os.ReadFile(filepath.Join(root, manifest))
		if err != nil {
			continue
		}
		found = append(found, Detection{
			Name: "Python", Confidence: 0.9, Source: SourceManifest, Context: manifest,
		})
		lower := strings.ToLower(string(data))
		for dep, entry := range pythonTechnologies {
			if strings.Contains(lower, dep) {
				found = append(found, Detection{
					Name:       entry.tech,
					Confidence: entry.confidence,
					Source:     SourceManifest,
					Context:    manifest + " dependency " + dep,
				})
			}
		}
		break
	}

	if _, err := os.Stat(filepath.Join(root, "Cargo.toml")); err == nil {
		found = append(found, Detection{
			Name: "Rust", Confidence: 0.9, Source: SourceManifest, Context: "Cargo.toml",
		})
	}

	return found, nil
}

// readPackageJSON returns the merged dependency map of a package.json.
func readPackageJSON(path string) (map[string]string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, false
	}
	deps := make(map[string]string, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for k, v := range pkg.Dependencies {
		deps[k] = v
	}
	for k, v := range pkg.DevDependencies {
		deps[k] = v
	}
	return deps, true
}
