// Package flow runs a session through a directed graph of stages, following the edge
// named by the action each stage returns.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/pkg/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type StageID string

type Action string

const (
	ActionDefault Action = "default"
	ActionError   Action = "error"
	ActionExit    Action = "exit"
)

// End is the terminal pseudo-stage. Reaching it stops the run without invoking anything.
const End StageID = "end"

const defaultMaxSteps = 64

var (
	// ErrNoEdge means a stage returned an action its node has no edge for. It is a
	// configuration error, not a runtime condition.
	ErrNoEdge         = errors.New("no edge for action")
	ErrUnknownStage   = errors.New("unknown stage")
	ErrDuplicateStage = errors.New("stage already registered")
	ErrStepLimit      = errors.New("step limit reached")
)

// Stage is one node. Run reads and writes the session and names the edge to follow.
type Stage interface {
	ID() StageID
	Run(ctx context.Context, s *store.Session) Action
}

// PauseFunc is consulted before each stage; returning true stops the run there so the
// caller can resume later (for example once the user has typed something).
type PauseFunc func(next StageID, s *store.Session) bool

type Graph struct {
	stages   map[StageID]Stage
	edges    map[StageID]map[Action]StageID
	log      logger.ILogger
	tracer   trace.Tracer
	MaxSteps int
}

func NewGraph(log logger.ILogger) *Graph {
	return &Graph{
		stages:   make(map[StageID]Stage),
		edges:    make(map[StageID]map[Action]StageID),
		log:      log,
		tracer:   otel.Tracer("surveybot.flow"),
		MaxSteps: defaultMaxSteps,
	}
}

func (g *Graph) AddStage(st Stage) error {
	id := st.ID()
	if id == End {
		return fmt.Errorf("%w: %q is reserved", ErrDuplicateStage, id)
	}
	if _, ok := g.stages[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStage, id)
	}
	g.stages[id] = st
	return nil
}

// Connect adds the edge from --action--> to, replacing any earlier edge for that pair.
func (g *Graph) Connect(from StageID, action Action, to StageID) {
	if g.edges[from] == nil {
		g.edges[from] = make(map[Action]StageID)
	}
	g.edges[from][action] = to
}

// Validate checks that start and every edge endpoint are registered.
func (g *Graph) Validate(start StageID) error {
	if _, ok := g.stages[start]; !ok {
		return fmt.Errorf("%w: start %s", ErrUnknownStage, start)
	}
	for _, from := range g.sortedSources() {
		if _, ok := g.stages[from]; !ok {
			return fmt.Errorf("%w: edge source %s", ErrUnknownStage, from)
		}
		for action, to := range g.edges[from] {
			if to == End {
				continue
			}
			if _, ok := g.stages[to]; !ok {
				return fmt.Errorf("%w: %s --%s--> %s", ErrUnknownStage, from, action, to)
			}
		}
	}
	return nil
}

func (g *Graph) sortedSources() []StageID {
	ids := make([]StageID, 0, len(g.edges))
	for id := range g.edges {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Next resolves the successor of from for action.
func (g *Graph) Next(from StageID, action Action) (StageID, error) {
	to, ok := g.edges[from][action]
	if !ok {
		return "", fmt.Errorf("%w: %s --%s-->", ErrNoEdge, from, action)
	}
	return to, nil
}

// Step runs a single stage and resolves where the session goes next.
func (g *Graph) Step(ctx context.Context, id StageID, s *store.Session) (Action, StageID, error) {
	st, ok := g.stages[id]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownStage, id)
	}

	ctx, span := g.tracer.Start(ctx, "flow.step", trace.WithAttributes(
		attribute.String("stage", string(id)),
		attribute.String("session_id", s.ID),
	))
	defer span.End()

	start := time.Now()
	action := st.Run(ctx, s)
	stageDuration.WithLabelValues(string(id)).Observe(time.Since(start).Seconds())
	stageRuns.WithLabelValues(string(id), string(action)).Inc()
	span.SetAttributes(attribute.String("action", string(action)))

	next, err := g.Next(id, action)
	if err != nil {
		g.log.Error("FLOW", "Stage returned an action with no edge", map[string]interface{}{
			"session_id": s.ID,
			"stage":      id,
			"action":     action,
		})
		return action, "", err
	}

	g.log.Debug("FLOW", "Transition", map[string]interface{}{
		"session_id": s.ID,
		"from":       id,
		"action":     action,
		"to":         next,
	})
	return action, next, nil
}

// Run steps from start until the terminal node, an error, or until pause asks to stop
// before a stage. It returns the stage the session is parked at (End when finished).
func (g *Graph) Run(ctx context.Context, start StageID, s *store.Session, pause PauseFunc) (StageID, error) {
	current := start
	for steps := 0; ; steps++ {
		if current == End {
			return End, nil
		}
		if pause != nil && steps > 0 && pause(current, s) {
			return current, nil
		}
		if steps >= g.MaxSteps {
			return current, fmt.Errorf("%w after %d steps at %s", ErrStepLimit, steps, current)
		}
		_, next, err := g.Step(ctx, current, s)
		if err != nil {
			return current, err
		}
		current = next
	}
}
