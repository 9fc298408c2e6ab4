package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func findDetection(detections []Detection, name string, source Source) *Detection {
	for i, d := range detections {
		if d.Name == name && d.Source == source {
			return &detections[i]
		}
	}
	return nil
}

func TestDetectManifests_PackageJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "package.json", `{
		"dependencies": {"vue": "^3.4.0", "left-pad": "1.0.0"},
		"devDependencies": {"typescript": "~5.3.0"}
	}`)

	found, err := detectManifests(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vue := findDetection(found, "Vue.js", SourceManifest)
	if vue == nil {
		t.Fatalf("Vue.js not detected in %+v", found)
	}
	if vue.Version != "3.4.0" {
		t.Errorf("version = %q, want 3.4.0", vue.Version)
	}
	if findDetection(found, "TypeScript", SourceManifest) == nil {
		t.Error("devDependencies should be mapped too")
	}
	if findDetection(found, "left-pad", SourceManifest) != nil {
		t.Error("unknown dependencies must not leak through")
	}
}

func TestDetectManifests_GoMod(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/x\n\nrequire github.com/spf13/cobra v1.8.0\n")

	found, err := detectManifests(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if findDetection(found, "Go", SourceManifest) == nil {
		t.Error("go.mod should detect Go")
	}
	if findDetection(found, "Cobra", SourceManifest) == nil {
		t.Error("known require lines should be mapped")
	}
}

func TestDetectExtensions(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.go", "b.go", "c.go", "d.ts"} {
		writeFile(t, root, name, "x")
	}
	// ignored dirs must not be counted
	if err := os.MkdirAll(filepath.Join(root, "node_modules", "dep"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "node_modules", "dep"), "e.js", "x")

	found, err := detectExtensions(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	goDet := findDetection(found, "Go", SourceExtensions)
	tsDet := findDetection(found, "TypeScript", SourceExtensions)
	if goDet == nil || tsDet == nil {
		t.Fatalf("detections = %+v", found)
	}
	if goDet.Confidence <= tsDet.Confidence {
		t.Errorf("more prevalent language should score higher: go=%v ts=%v",
			goDet.Confidence, tsDet.Confidence)
	}
	if goDet.Confidence > 0.8 {
		t.Errorf("census confidence must stay capped, got %v", goDet.Confidence)
	}
	if findDetection(found, "JavaScript", SourceExtensions) != nil {
		t.Error("node_modules should be skipped")
	}
}

func TestDetectFrameworkConfig(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "next.config.mjs", "export default {}")
	writeFile(t, root, "tailwind.config.ts", "export default {}")

	found, err := detectFrameworkConfig(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if findDetection(found, "Next.js", SourceFrameworkConfig) == nil {
		t.Error("next.config.* should detect Next.js")
	}
	if findDetection(found, "Tailwind CSS", SourceFrameworkConfig) == nil {
		t.Error("tailwind.config.* should detect Tailwind CSS")
	}
}

func TestDetectDatabasesAndContainers(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".env", "DATABASE_URL=postgres://localhost:5432/app\nCACHE=redis://localhost\n")
	writeFile(t, root, "Dockerfile", "FROM golang:1.24\n")
	writeFile(t, root, "docker-compose.yml", "services:\n  db:\n    image: postgres:16\n")

	dbs, err := detectDatabases(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if findDetection(dbs, "PostgreSQL", SourceDatabase) == nil {
		t.Errorf("postgres not detected: %+v", dbs)
	}
	if findDetection(dbs, "Redis", SourceDatabase) == nil {
		t.Errorf("redis not detected: %+v", dbs)
	}

	containers, err := detectContainers(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if findDetection(containers, "Docker", SourceContainer) == nil {
		t.Errorf("Dockerfile not detected: %+v", containers)
	}
	if findDetection(containers, "Docker Compose", SourceContainer) == nil {
		t.Errorf("compose file not detected: %+v", containers)
	}
}

func TestRunAll_EmptyProject(t *testing.T) {
	found := RunAll(t.TempDir(), zerolog.Nop())
	if len(found) != 0 {
		t.Errorf("empty project should yield no detections, got %+v", found)
	}
}

func TestRunAll_CombinesSources(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/x\n")
	writeFile(t, root, "go.sum", "")
	writeFile(t, root, "main.go", "package main")

	ranked := Fuse(RunAll(root, zerolog.Nop()))
	if len(ranked) == 0 {
		t.Fatal("expected at least one fused technology")
	}
	if ranked[0].Name != "Go" {
		t.Errorf("top technology = %q, want Go", ranked[0].Name)
	}
	// three agreeing sources: max(0.9) + bonus
	if ranked[0].Confidence < 0.9 {
		t.Errorf("confidence = %v, want >= 0.9", ranked[0].Confidence)
	}
}

func TestProjectName_FallbackToDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "myproject")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if got := ProjectName(root); got != "myproject" {
		t.Errorf("got %q, want directory name fallback", got)
	}
}
