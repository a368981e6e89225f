package stage

import (
	"fmt"

	"survey-assistant-be/pkg/surveybot/flow"
)

// NewGraph registers every stage and the edge table between them.
func NewGraph(d Deps) (*flow.Graph, error) {
	g := flow.NewGraph(d.Log)

	stages := []flow.Stage{
		&RouterStage{log: d.Log},
		&ScratchStage{schema: d.Schema, log: d.Log},
		&RemoteStage{gateway: d.Gateway, schema: d.Schema, log: d.Log},
		&DocumentStage{gateway: d.Gateway, extractor: d.Extractor, schema: d.Schema, log: d.Log},
		&ImportStage{llm: d.LLM, schema: d.Schema, log: d.Log, stream: d.StreamSegmentation},
		&ChatStage{llm: d.LLM, schema: d.Schema, log: d.Log},
		&SaveStage{gateway: d.Gateway, log: d.Log},
		&ErrorStage{log: d.Log},
	}
	for _, st := range stages {
		if err := g.AddStage(st); err != nil {
			return nil, err
		}
	}

	g.Connect(RouterID, ActionScratch, ScratchID)
	g.Connect(RouterID, ActionAPI, APIID)
	g.Connect(RouterID, ActionWord, DocumentID)
	g.Connect(RouterID, flow.ActionError, ErrorID)

	for _, id := range []flow.StageID{ScratchID, APIID, ImportID, SaveID} {
		g.Connect(id, flow.ActionDefault, ChatID)
		g.Connect(id, flow.ActionError, ErrorID)
	}

	g.Connect(DocumentID, ActionWordReady, ImportID)
	g.Connect(DocumentID, flow.ActionError, ErrorID)

	g.Connect(ChatID, ActionModify, ChatID)
	g.Connect(ChatID, ActionSave, SaveID)
	g.Connect(ChatID, flow.ActionError, ErrorID)
	g.Connect(ChatID, flow.ActionExit, flow.End)

	g.Connect(ErrorID, flow.ActionDefault, ChatID)

	if err := g.Validate(RouterID); err != nil {
		return nil, fmt.Errorf("survey graph: %w", err)
	}
	return g, nil
}
