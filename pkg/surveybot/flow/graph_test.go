package flow

import (
	"context"
	"testing"

	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedStage struct {
	id      StageID
	actions []Action
	calls   int
}

func (s *scriptedStage) ID() StageID { return s.id }

func (s *scriptedStage) Run(ctx context.Context, sess *store.Session) Action {
	a := s.actions[s.calls%len(s.actions)]
	s.calls++
	return a
}

func newSession() *store.Session {
	return store.NewSession("test", store.NewInitialization(store.ScratchSource{}), nil)
}

func TestRunFollowsEdgesToEnd(t *testing.T) {
	g := NewGraph(logger.NewNopLogger())
	a := &scriptedStage{id: "a", actions: []Action{ActionDefault}}
	b := &scriptedStage{id: "b", actions: []Action{"again", ActionExit}}
	require.NoError(t, g.AddStage(a))
	require.NoError(t, g.AddStage(b))
	g.Connect("a", ActionDefault, "b")
	g.Connect("b", "again", "b")
	g.Connect("b", ActionExit, End)
	require.NoError(t, g.Validate("a"))

	at, err := g.Run(context.Background(), "a", newSession(), nil)
	require.NoError(t, err)
	assert.Equal(t, End, at)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 2, b.calls)
}

func TestRunPausesBeforeStage(t *testing.T) {
	g := NewGraph(logger.NewNopLogger())
	a := &scriptedStage{id: "a", actions: []Action{ActionDefault}}
	b := &scriptedStage{id: "b", actions: []Action{ActionExit}}
	require.NoError(t, g.AddStage(a))
	require.NoError(t, g.AddStage(b))
	g.Connect("a", ActionDefault, "b")
	g.Connect("b", ActionExit, End)

	at, err := g.Run(context.Background(), "a", newSession(), func(next StageID, s *store.Session) bool {
		return next == "b"
	})
	require.NoError(t, err)
	assert.Equal(t, StageID("b"), at)
	assert.Equal(t, 0, b.calls)
}

func TestMissingEdgeIsConfigurationError(t *testing.T) {
	g := NewGraph(logger.NewNopLogger())
	require.NoError(t, g.AddStage(&scriptedStage{id: "a", actions: []Action{"surprise"}}))

	_, err := g.Run(context.Background(), "a", newSession(), nil)
	assert.ErrorIs(t, err, ErrNoEdge)

	_, err = g.Next("a", ActionDefault)
	assert.ErrorIs(t, err, ErrNoEdge)
}

func TestValidate(t *testing.T) {
	g := NewGraph(logger.NewNopLogger())
	require.NoError(t, g.AddStage(&scriptedStage{id: "a", actions: []Action{ActionDefault}}))
	assert.ErrorIs(t, g.AddStage(&scriptedStage{id: "a"}), ErrDuplicateStage)
	assert.ErrorIs(t, g.AddStage(&scriptedStage{id: End}), ErrDuplicateStage)

	assert.ErrorIs(t, g.Validate("missing"), ErrUnknownStage)

	g.Connect("a", ActionDefault, "ghost")
	assert.ErrorIs(t, g.Validate("a"), ErrUnknownStage)

	g.Connect("a", ActionDefault, End)
	assert.NoError(t, g.Validate("a"))
}

func TestStepLimit(t *testing.T) {
	g := NewGraph(logger.NewNopLogger())
	g.MaxSteps = 5
	loop := &scriptedStage{id: "loop", actions: []Action{ActionDefault}}
	require.NoError(t, g.AddStage(loop))
	g.Connect("loop", ActionDefault, "loop")

	_, err := g.Run(context.Background(), "loop", newSession(), nil)
	assert.ErrorIs(t, err, ErrStepLimit)
	assert.Equal(t, 5, loop.calls)
}
