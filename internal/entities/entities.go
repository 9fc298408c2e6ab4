// Package entities runs the expensive per-session setup: detect the
// project's technologies, create the matching entities and relations in
// the knowledge store, and record the outcome through the session gate.
// Failures here are converted into the recorded result, never propagated;
// delivering conversation memory always outranks entity metadata.
package entities

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/engramdev/engram/internal/detect"
	"github.com/engramdev/engram/internal/gate"
	"github.com/engramdev/engram/internal/kstore"
)

// Graph is the slice of the knowledge store this package consumes.
type Graph interface {
	SearchEntities(ctx context.Context, query string) ([]kstore.Entity, error)
	CreateEntity(ctx context.Context, e kstore.Entity) (string, error)
	CreateRelation(ctx context.Context, r kstore.Relation) error
}

// Processor wires detection, the graph, and the gate together.
type Processor struct {
	graph     Graph
	gate      *gate.Gate
	threshold float64
	log       zerolog.Logger
}

func NewProcessor(graph Graph, g *gate.Gate, confidenceThreshold float64, log zerolog.Logger) *Processor {
	return &Processor{graph: graph, gate: g, threshold: confidenceThreshold, log: log}
}

// Run performs entity processing for the (project, session) pair unless
// the gate says it already happened. The returned bool reports whether
// processing ran this time.
func (p *Processor) Run(ctx context.Context, projectPath, sessionID string) (bool, gate.Result) {
	if !p.gate.ShouldProcess(projectPath, sessionID) {
		p.log.Debug().Str("session", sessionID).Msg("entity processing already recorded, skipping")
		return false, gate.Result{}
	}

	result := p.process(ctx, projectPath)
	if err := p.gate.MarkProcessed(projectPath, sessionID, result); err != nil {
		// the run itself still counts; the next flush will just redo it
		p.log.Warn().Err(err).Msg("recording entity result failed")
	}
	return true, result
}

func (p *Processor) process(ctx context.Context, projectPath string) gate.Result {
	start := time.Now()

	detections := detect.RunAll(projectPath, p.log)
	ranked := detect.Filter(detect.Fuse(detections), p.threshold)
	detectDone := time.Now()

	var result gate.Result
	for _, r := range ranked {
		result.Technologies = append(result.Technologies, gate.Technology{
			Name:       r.Name,
			Confidence: r.Confidence,
			Source:     string(r.Source),
			Version:    r.Version,
		})
	}

	var errs []string
	projectName := detect.ProjectName(projectPath)
	if err := p.ensureEntity(ctx, projectName, "project"); err != nil {
		errs = append(errs, fmt.Sprintf("project entity %q: %v", projectName, err))
	}

	for _, r := range ranked {
		if err := p.ensureEntity(ctx, r.Name, "technology"); err != nil {
			errs = append(errs, fmt.Sprintf("technology entity %q: %v", r.Name, err))
			continue
		}
		rel := kstore.Relation{From: projectName, To: r.Name, Type: "USES"}
		if err := p.graph.CreateRelation(ctx, rel); err != nil {
			errs = append(errs, fmt.Sprintf("relation %s USES %s: %v", projectName, r.Name, err))
			continue
		}
		result.Relationships = append(result.Relationships, gate.Relationship{
			From: rel.From, To: rel.To, Type: rel.Type,
		})
	}

	end := time.Now()
	result.Success = len(errs) == 0
	result.Errors = errs
	result.Timing = gate.Timing{
		DetectMS: detectDone.Sub(start).Milliseconds(),
		CreateMS: end.Sub(detectDone).Milliseconds(),
		TotalMS:  end.Sub(start).Milliseconds(),
	}
	return result
}

// ensureEntity creates the entity unless a graph search already finds it.
// The search is opportunistic; if it fails we create anyway.
func (p *Processor) ensureEntity(ctx context.Context, name, kind string) error {
	found, err := p.graph.SearchEntities(ctx, name)
	if err == nil {
		for _, e := range found {
			if e.Kind == kind && strings.EqualFold(e.Name, name) {
				return nil
			}
		}
	}
	_, err = p.graph.CreateEntity(ctx, kstore.Entity{Name: name, Kind: kind})
	return err
}
