package stage

import (
	"context"

	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/pkg/store"
	"survey-assistant-be/pkg/surveybot/flow"
)

const unknownError = "Unknown error occurred"

// ErrorStage surfaces the last failure and hands control back to chat.
type ErrorStage struct {
	log logger.ILogger
}

func (st *ErrorStage) ID() flow.StageID { return ErrorID }

func (st *ErrorStage) Run(ctx context.Context, s *store.Session) flow.Action {
	msg := s.LastError
	if msg == "" {
		msg = unknownError
	}
	st.log.Error("STAGE.ERROR", "Error handled", map[string]interface{}{
		"session_id": s.ID,
		"error":      msg,
	})
	s.Notify(store.LevelError, msg)
	s.ClearError()
	return flow.ActionDefault
}
