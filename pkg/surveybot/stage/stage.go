// Package stage holds the survey assistant's stages and wires them into a flow graph.
package stage

import (
	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/pkg/extract"
	"survey-assistant-be/pkg/llm"
	"survey-assistant-be/pkg/survey/schema"
	"survey-assistant-be/pkg/surveybot/flow"
	"survey-assistant-be/pkg/voxco"
)

const (
	RouterID   flow.StageID = "router"
	ScratchID  flow.StageID = "scratch"
	APIID      flow.StageID = "api"
	DocumentID flow.StageID = "document"
	ImportID   flow.StageID = "import"
	ChatID     flow.StageID = "chat"
	SaveID     flow.StageID = "save"
	ErrorID    flow.StageID = "errorStage"
)

const (
	ActionScratch   flow.Action = "scratch"
	ActionAPI       flow.Action = "api"
	ActionWord      flow.Action = "word"
	ActionWordReady flow.Action = "word_ready_for_parsing"
	ActionModify    flow.Action = "modify_survey"
	ActionSave      flow.Action = "save_survey"
)

// Deps are the collaborators shared by the stages.
type Deps struct {
	LLM       llm.LLMProvider
	Gateway   voxco.Gateway
	Extractor extract.Extractor
	Schema    *schema.Validator
	Log       logger.ILogger

	// StreamSegmentation asks for the segmentation response as a stream when the
	// provider supports it.
	StreamSegmentation bool
}
