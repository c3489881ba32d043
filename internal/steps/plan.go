package steps

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

// ErrInvalidPlan marks plan validation failures.
var ErrInvalidPlan = errors.New("invalid plan")

// Plan is the ordered set of steps plus the directories created before the
// first step runs.
type Plan struct {
	WorkDir     string
	Directories []string
	Steps       []Step
}

// Names returns the step names in execution order.
func (p *Plan) Names() []string {
	names := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		names = append(names, s.Name)
	}
	return names
}

// Step looks up a step by name.
func (p *Plan) Step(name string) (Step, bool) {
	for _, s := range p.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

// Validate checks step identity, ordering and acyclicity. An input produced
// by a later step is an error; an input nothing produces is treated as
// pre-existing, wherever it lives.
func (p *Plan) Validate() error {
	return p.validate(false)
}

// ValidateStrict is Validate plus a check that every input under a generated
// directory is produced by an earlier step.
func (p *Plan) ValidateStrict() error {
	return p.validate(true)
}

func (p *Plan) validate(strict bool) error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidPlan)
	}
	seen := make(map[string]struct{}, len(p.Steps))
	for _, s := range p.Steps {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("%w: step without a name", ErrInvalidPlan)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate step %q", ErrInvalidPlan, s.Name)
		}
		seen[s.Name] = struct{}{}
		if strings.TrimSpace(s.Binary) == "" {
			return fmt.Errorf("%w: step %q has no binary", ErrInvalidPlan, s.Name)
		}
	}

	producedBy := make(map[string]string)
	for _, s := range p.Steps {
		for _, out := range s.Outputs {
			producedBy[artifactKey(out)] = s.Name
		}
	}

	produced := make(map[string]struct{})
	for _, s := range p.Steps {
		for _, in := range s.Inputs {
			key := artifactKey(in)
			if _, ok := produced[key]; ok {
				continue
			}
			if producer, ok := producedBy[key]; ok {
				return fmt.Errorf("%w: step %q reads %s before step %q produces it", ErrInvalidPlan, s.Name, in, producer)
			}
			if strict && p.isGenerated(in) {
				return fmt.Errorf("%w: step %q reads %s from a generated directory but no earlier step produces it", ErrInvalidPlan, s.Name, in)
			}
		}
		for _, out := range s.Outputs {
			produced[artifactKey(out)] = struct{}{}
		}
	}

	if _, err := p.Graph(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	return nil
}

// Graph builds the directed artifact graph: step -> produced file and
// consumed file -> step. Cycles are rejected while edges are added.
func (p *Plan) Graph() (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	addVertex := func(id string, attrs ...func(*graph.VertexProperties)) error {
		if err := g.AddVertex(id, attrs...); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return fmt.Errorf("add vertex %s: %w", id, err)
		}
		return nil
	}
	addEdge := func(from, to, label string) error {
		err := g.AddEdge(from, to, graph.EdgeAttribute("label", label))
		if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return fmt.Errorf("link %s -> %s: %w", from, to, err)
		}
		return nil
	}

	for _, s := range p.Steps {
		if err := addVertex(stepVertex(s.Name), graph.VertexAttribute("shape", "box")); err != nil {
			return nil, err
		}
		for _, in := range s.Inputs {
			v := fileVertex(in)
			if err := addVertex(v, graph.VertexAttribute("shape", "note")); err != nil {
				return nil, err
			}
			if err := addEdge(v, stepVertex(s.Name), "reads"); err != nil {
				return nil, err
			}
		}
		for _, out := range s.Outputs {
			v := fileVertex(out)
			if err := addVertex(v, graph.VertexAttribute("shape", "note")); err != nil {
				return nil, err
			}
			if err := addEdge(stepVertex(s.Name), v, "writes"); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// WriteDOT renders the artifact graph in Graphviz DOT format.
func (p *Plan) WriteDOT(w io.Writer) error {
	g, err := p.Graph()
	if err != nil {
		return err
	}
	return draw.DOT(g, w)
}

func (p *Plan) isGenerated(path string) bool {
	cleaned := artifactKey(path)
	for _, dir := range p.Directories {
		d := artifactKey(dir)
		if d == "" || d == "." {
			continue
		}
		if cleaned == d || strings.HasPrefix(cleaned, d+"/") {
			return true
		}
	}
	return false
}

func artifactKey(path string) string {
	return filepath.ToSlash(filepath.Clean(strings.TrimSpace(path)))
}

func stepVertex(name string) string { return "step:" + name }

func fileVertex(path string) string { return artifactKey(path) }
