// Package surveybot exposes the survey assistant's stage graph to callers that own the
// session lifecycle (HTTP handlers, the CLI).
package surveybot

import (
	"context"

	"survey-assistant-be/pkg/store"
	"survey-assistant-be/pkg/surveybot/flow"
	"survey-assistant-be/pkg/surveybot/stage"
)

type Engine struct {
	graph *flow.Graph
}

func NewEngine(d stage.Deps) (*Engine, error) {
	g, err := stage.NewGraph(d)
	if err != nil {
		return nil, err
	}
	return &Engine{graph: g}, nil
}

// RunInitializer runs the router and the initializer it selects (plus the chunk import
// for documents) and returns the last action taken.
func (e *Engine) RunInitializer(ctx context.Context, s *store.Session) (flow.Action, error) {
	current := stage.RouterID
	for {
		action, next, err := e.graph.Step(ctx, current, s)
		if err != nil {
			return action, err
		}
		if next == stage.ChatID || next == stage.ErrorID {
			return action, nil
		}
		current = next
	}
}

// RunChat consumes the pending message in one chat turn.
func (e *Engine) RunChat(ctx context.Context, s *store.Session) (flow.Action, error) {
	action, _, err := e.graph.Step(ctx, stage.ChatID, s)
	return action, err
}

func (e *Engine) RunSave(ctx context.Context, s *store.Session) (flow.Action, error) {
	action, _, err := e.graph.Step(ctx, stage.SaveID, s)
	return action, err
}

func (e *Engine) RunError(ctx context.Context, s *store.Session) (flow.Action, error) {
	action, _, err := e.graph.Step(ctx, stage.ErrorID, s)
	return action, err
}

// Advance walks the graph from the given stage and parks before chat once the pending
// message has been consumed. It returns flow.End after an exit.
func (e *Engine) Advance(ctx context.Context, s *store.Session, from flow.StageID) (flow.StageID, error) {
	return e.graph.Run(ctx, from, s, AwaitingInput)
}

// AwaitingInput pauses before the chat stage while there is nothing to say.
func AwaitingInput(next flow.StageID, s *store.Session) bool {
	return next == stage.ChatID && s.PendingMessage == ""
}
