package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/pkg/llm"
	"survey-assistant-be/pkg/store"
	"survey-assistant-be/pkg/survey"
	"survey-assistant-be/pkg/survey/patch"
	"survey-assistant-be/pkg/survey/schema"
	"survey-assistant-be/pkg/surveybot/flow"
)

// Intents a chat reply can carry.
const (
	IntentModify  = "modify"
	IntentSave    = "save"
	IntentExit    = "exit"
	IntentDisplay = "display"
)

var intentAliases = map[string]string{
	"modify":           IntentModify,
	"modify_survey":    IntentModify,
	"save":             IntentSave,
	"save_survey":      IntentSave,
	"exit":             IntentExit,
	"display":          IntentDisplay,
	"display_response": IntentDisplay,
}

// Reply is a validated model answer.
type Reply struct {
	Intent  string
	Patch   json.RawMessage
	Content string
}

// ParseReply extracts the first JSON object from the model text and checks it against
// the reply contract.
func ParseReply(text string) (Reply, error) {
	raw, err := llm.FirstJSONObject(text)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrModelResponse, err)
	}
	var body struct {
		Action  string          `json:"action"`
		Patch   json.RawMessage `json:"patch"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrModelResponse, err)
	}

	intent, ok := intentAliases[strings.ToLower(strings.TrimSpace(body.Action))]
	if !ok {
		return Reply{}, fmt.Errorf("%w: unknown action %q", ErrModelResponse, body.Action)
	}
	reply := Reply{Intent: intent}

	switch intent {
	case IntentModify:
		trimmed := strings.TrimSpace(string(body.Patch))
		if !strings.HasPrefix(trimmed, "[") {
			return Reply{}, fmt.Errorf("%w: modify without a patch array", ErrModelResponse)
		}
		reply.Patch = body.Patch
	case IntentDisplay:
		if len(body.Content) == 0 || string(body.Content) == "null" || json.Unmarshal(body.Content, &reply.Content) != nil {
			return Reply{}, fmt.Errorf("%w: display without text content", ErrModelResponse)
		}
	}
	return reply, nil
}

// ChatStage turns one user utterance into at most one document edit.
type ChatStage struct {
	llm    llm.LLMProvider
	schema *schema.Validator
	log    logger.ILogger
}

func (c *ChatStage) ID() flow.StageID { return ChatID }

func (c *ChatStage) Run(ctx context.Context, s *store.Session) flow.Action {
	msg := strings.TrimSpace(s.PendingMessage)
	s.PendingMessage = ""
	s.LastDisplay = ""

	if msg == "" {
		return ActionModify
	}
	switch strings.ToLower(msg) {
	case "save":
		return ActionSave
	case "exit", "quit":
		return flow.ActionExit
	}

	if s.Document.IsZero() {
		return fail(s, c.log, "STAGE.CHAT", "Chat failed", ErrNoDocument)
	}

	current, err := s.Document.Pretty()
	if err != nil {
		return fail(s, c.log, "STAGE.CHAT", "Chat failed", err)
	}
	text, err := c.llm.Generate(ctx, fmt.Sprintf(chatPrompt, current, c.schema.Raw(), msg))
	if err != nil {
		return fail(s, c.log, "STAGE.CHAT", "ChatAgent failed", err)
	}

	reply, err := ParseReply(text)
	if err != nil {
		c.reject(s, "The assistant's answer could not be processed as a command: "+err.Error())
		return ActionModify
	}

	c.log.Info("STAGE.CHAT", "Reply classified", map[string]interface{}{
		"session_id": s.ID,
		"intent":     reply.Intent,
	})

	switch reply.Intent {
	case IntentModify:
		c.modify(s, reply.Patch)
		return ActionModify
	case IntentDisplay:
		s.LastDisplay = reply.Content
		return ActionModify
	case IntentSave:
		return ActionSave
	default:
		return flow.ActionExit
	}
}

// modify runs parse, apply and validate against a copy. The session document is only
// replaced when all three pass.
func (c *ChatStage) modify(s *store.Session, raw json.RawMessage) {
	p, err := patch.Parse(raw)
	if err != nil {
		c.reject(s, "Modification rejected: "+err.Error())
		return
	}
	if len(p) == 0 {
		s.Notify(store.LevelInfo, "No changes proposed.")
		return
	}
	next, err := patch.Apply(s.Document, p)
	if err != nil {
		c.reject(s, "Modification rejected: "+err.Error())
		return
	}
	if err := c.schema.Validate(next); err != nil {
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			lines := make([]string, 0, len(ve.Violations))
			for _, v := range ve.Violations {
				lines = append(lines, "- "+v.String())
			}
			c.reject(s, "Modification rejected: the resulting survey is invalid.\n"+strings.Join(lines, "\n"))
			return
		}
		c.reject(s, "Modification rejected: "+err.Error())
		return
	}

	s.SetDocument(survey.Document(next))
	s.ClearError()
	s.Notify(store.LevelInfo, "Survey updated.")
	c.log.Info("STAGE.CHAT", "Survey modified", map[string]interface{}{
		"session_id": s.ID,
		"operations": p.Summary(),
	})
}

// reject surfaces a recoverable failure as a warning notice. It never sets LastError:
// that field is reserved for failures routed to the error stage.
func (c *ChatStage) reject(s *store.Session, msg string) {
	s.Notify(store.LevelWarning, msg)
	c.log.Warn("STAGE.CHAT", "Turn rejected", map[string]interface{}{
		"session_id": s.ID,
		"error":      msg,
	})
}
