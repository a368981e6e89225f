package stage

import (
	"context"
	"encoding/json"
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

// Chunk is one segment of an imported document. It lives only for the duration of an
// import.
type Chunk struct {
	Type     string                 `json:"type"`
	Content  string                 `json:"content"`
	Context  string                 `json:"context,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

const (
	ChunkBlock    = "block"
	ChunkQuestion = "question"
	ChunkOther    = "other"
)

// ImportStage merges extracted document text into the base survey chunk by chunk. A
// chunk whose patch fails is recorded and skipped; the rest still land.
type ImportStage struct {
	llm    llm.LLMProvider
	schema *schema.Validator
	log    logger.ILogger
	stream bool
}

func (st *ImportStage) ID() flow.StageID { return ImportID }

func (st *ImportStage) Run(ctx context.Context, s *store.Session) flow.Action {
	const prefix = "Word document parsing failed"

	if s.Document.IsZero() {
		return fail(s, st.log, "STAGE.IMPORT", prefix, ErrNoDocument)
	}
	if strings.TrimSpace(s.DocumentText) == "" {
		return fail(s, st.log, "STAGE.IMPORT", prefix, ErrEmptyText)
	}

	chunks, err := st.segment(ctx, s.DocumentText)
	if err != nil {
		return fail(s, st.log, "STAGE.IMPORT", prefix, err)
	}
	st.log.Info("STAGE.IMPORT", "[PHASE 3] Document segmented", map[string]interface{}{
		"session_id": s.ID,
		"chunks":     len(chunks),
	})

	acc := s.Document
	var chunkErrors []string
	for i, chunk := range chunks {
		next, err := st.merge(ctx, acc, chunk)
		if err != nil {
			msg := fmt.Sprintf("chunk %d (%s %q): %v", i+1, chunk.Type, preview(chunk.Content, 50), err)
			chunkErrors = append(chunkErrors, msg)
			st.log.Warn("STAGE.IMPORT", "Chunk skipped", map[string]interface{}{
				"session_id": s.ID,
				"chunk":      i + 1,
				"error":      err.Error(),
			})
			continue
		}
		acc = next
	}

	succeed(s, acc)
	s.DocumentText = ""
	s.ImportErrors = chunkErrors

	switch {
	case len(chunks) == 0:
		s.Notify(store.LevelWarning, "The document did not yield any survey content; the base survey is unchanged.")
	case len(chunkErrors) > 0:
		s.Notify(store.LevelWarning, fmt.Sprintf("Document imported with %d of %d chunk(s) skipped:\n- %s",
			len(chunkErrors), len(chunks), strings.Join(chunkErrors, "\n- ")))
	default:
		s.Notify(store.LevelInfo, fmt.Sprintf("Document imported: %d chunk(s) merged into the survey.", len(chunks)))
	}
	s.Notify(store.LevelInfo, "The document has been processed and its content integrated into the survey. Please review and continue editing.")

	st.log.Info("STAGE.IMPORT", "[PHASE 4] Import completed", map[string]interface{}{
		"session_id": s.ID,
		"chunks":     len(chunks),
		"skipped":    len(chunkErrors),
	})
	return flow.ActionDefault
}

// segment asks the model to split the text. A response without a parseable array of
// chunks fails the whole import.
func (st *ImportStage) segment(ctx context.Context, text string) ([]Chunk, error) {
	resp, err := llm.GenerateText(ctx, st.llm, st.stream, fmt.Sprintf(segmentationPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("segmentation request: %w", err)
	}
	raw, err := llm.FirstJSONArray(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSegmentation, err)
	}
	var chunks []Chunk
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSegmentation, err)
	}
	for i := range chunks {
		switch chunks[i].Type {
		case ChunkBlock, ChunkQuestion, ChunkOther:
		default:
			chunks[i].Type = ChunkOther
		}
	}
	return chunks, nil
}

// merge asks for a patch against the current accumulated document and returns the
// patched document only when it passes the schema.
func (st *ImportStage) merge(ctx context.Context, acc survey.Document, chunk Chunk) (survey.Document, error) {
	chunkJSON, err := json.MarshalIndent(chunk, "", "  ")
	if err != nil {
		return nil, err
	}
	current, err := acc.Pretty()
	if err != nil {
		return nil, err
	}
	resp, err := st.llm.Generate(ctx, fmt.Sprintf(chunkPatchPrompt, current, st.schema.Raw(), chunkJSON))
	if err != nil {
		return nil, fmt.Errorf("patch request: %w", err)
	}
	raw, err := llm.FirstJSONArray(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", patch.ErrMalformedPatch, err)
	}
	p, err := patch.Parse(raw)
	if err != nil {
		return nil, err
	}
	next, err := patch.Apply(acc, p)
	if err != nil {
		return nil, err
	}
	if err := st.schema.Validate(next); err != nil {
		return nil, err
	}
	return survey.Document(next), nil
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
