package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/pichlex/debitor/internal/runtime"
	"github.com/pichlex/debitor/pkg/adapters/memory"
	"github.com/pichlex/debitor/pkg/domain"
	"github.com/pichlex/debitor/pkg/graph"
	"github.com/pichlex/debitor/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func entry(_ context.Context, s *domain.ConversationState) (domain.Update, error) {
	turn := s.Scratch.Turn + 1
	delta := &domain.ScratchDelta{Turn: &turn}
	route := "classify"
	switch {
	case turn == 1:
		route = "greet"
	case s.Scratch.ResumeAt != "":
		route = s.Scratch.ResumeAt
		delta.ResumeAt = new(string)
	}
	return domain.Update{Route: route, Scratch: delta}, nil
}

func greet(context.Context, *domain.ConversationState) (domain.Update, error) {
	return domain.Update{
		Messages: []string{"hello"},
		Stage:    "intro",
		Scratch:  domain.ResumeAt("classify"),
	}, nil
}

// classify routes on the literal user text.
func classify(_ context.Context, s *domain.ConversationState) (domain.Update, error) {
	return domain.Update{Route: s.LastUserText()}, nil
}

func done(context.Context, *domain.ConversationState) (domain.Update, error) {
	return domain.Update{
		Messages: []string{"noted", "bye"},
		Stage:    "done",
		Scratch:  (&domain.ScratchDelta{}).WithField("ops_note", "closed"),
	}, nil
}

func buildGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New().
		AddNode("entry", entry).
		AddNode("greet", greet, graph.WritesResume("classify")).
		AddNode("classify", classify).
		AddNode("done", done).
		AddConditionalEdge("entry", nil, map[string]string{"greet": "greet", "classify": "classify"}).
		AddConditionalEdge("classify", nil, map[string]string{"agree": "done", "disagree": "done"}).
		AddEdge("greet", graph.End).
		AddEdge("done", graph.End).
		SetEntry("entry").
		SetResumable("classify").
		Compile()
	require.NoError(t, err)
	return g
}

func newExecutor(t *testing.T, opts ...runtime.Option) (*runtime.Executor, *memory.Store) {
	store := memory.NewStore()
	return runtime.NewExecutor(buildGraph(t), session.NewManager(store), opts...), store
}

func TestExecutor_FirstTurn(t *testing.T) {
	exec, store := newExecutor(t)
	ctx := context.Background()

	res, err := exec.Invoke(ctx, "c1", "hi", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"hello"}, res.Outputs)
	assert.Equal(t, 1, res.Turn)
	assert.Equal(t, "intro", res.Stage)
	assert.Equal(t, []string{"entry", "greet"}, res.Path)
	assert.Equal(t, "classify", res.Scratch[domain.KeyResumeAt])

	saved, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Message{domain.UserMessage("hi"), domain.AssistantMessage("hello")}, saved.History)
	assert.Equal(t, 1, saved.Turn)
}

func TestExecutor_ResumesAndResetsPath(t *testing.T) {
	exec, store := newExecutor(t)
	ctx := context.Background()

	_, err := exec.Invoke(ctx, "c1", "hi", nil)
	require.NoError(t, err)

	res, err := exec.Invoke(ctx, "c1", "agree", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"noted", "bye"}, res.Outputs, "outputs keep production order")
	assert.Equal(t, 2, res.Turn)
	assert.Equal(t, "agree", res.Route)
	assert.Equal(t, []string{"entry", "classify", "done"}, res.Path)
	assert.Equal(t, "", res.Scratch[domain.KeyResumeAt])
	assert.Equal(t, "closed", res.Scratch["ops_note"])

	saved, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, saved.History, 5)
	assert.Equal(t, "done", saved.Scratch.CurrentNode)
}

func TestExecutor_UnmappedRouteSavesNothing(t *testing.T) {
	exec, store := newExecutor(t)
	ctx := context.Background()

	_, err := exec.Invoke(ctx, "c1", "hi", nil)
	require.NoError(t, err)
	before, err := store.Load(ctx, "c1")
	require.NoError(t, err)

	_, err = exec.Invoke(ctx, "c1", "maybe", nil)
	var unmapped *domain.UnmappedRouteError
	require.ErrorAs(t, err, &unmapped)
	assert.Equal(t, "classify", unmapped.Node)
	assert.Equal(t, "maybe", unmapped.Label)

	after, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestExecutor_MissingLabelIsNotInherited(t *testing.T) {
	exec, _ := newExecutor(t)
	ctx := context.Background()

	_, err := exec.Invoke(ctx, "c1", "hi", nil)
	require.NoError(t, err)

	// classify makes no routing decision on empty text; the entry node's
	// label from the same turn must not be reused.
	_, err = exec.Invoke(ctx, "c1", "", nil)
	var unmapped *domain.UnmappedRouteError
	require.ErrorAs(t, err, &unmapped)
	assert.Equal(t, "classify", unmapped.Node)
	assert.Empty(t, unmapped.Label)
}

type failingStore struct {
	*memory.Store
	err error
}

func (f *failingStore) Save(context.Context, string, *domain.ConversationState) error {
	return f.err
}

func TestExecutor_PersistenceError(t *testing.T) {
	boom := errors.New("disk full")
	store := &failingStore{Store: memory.NewStore(), err: boom}
	exec := runtime.NewExecutor(buildGraph(t), session.NewManager(store))

	res, err := exec.Invoke(context.Background(), "c1", "hi", nil)
	assert.Nil(t, res)

	var persistErr *domain.PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "c1", persistErr.ConversationID)
	assert.ErrorIs(t, err, boom)
}

func TestExecutor_IgnoresResumeOutsideWhitelist(t *testing.T) {
	exec, store := newExecutor(t)
	ctx := context.Background()

	seeded := domain.NewConversationState()
	seeded.Scratch.Turn = 1
	seeded.Scratch.ResumeAt = "greet"
	require.NoError(t, store.Save(ctx, "c1", seeded))

	res, err := exec.Invoke(ctx, "c1", "disagree", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"entry", "classify", "done"}, res.Path)
}

func TestExecutor_MetaIsPerTurn(t *testing.T) {
	var seen []any
	g, err := graph.New().
		AddNode("entry", func(_ context.Context, s *domain.ConversationState) (domain.Update, error) {
			seen = append(seen, s.Meta["company"])
			if s.Meta != nil {
				s.Meta["company"] = "tampered"
			}
			return domain.Update{}, nil
		}).
		SetEntry("entry").
		Compile()
	require.NoError(t, err)

	store := memory.NewStore()
	exec := runtime.NewExecutor(g, session.NewManager(store))
	ctx := context.Background()

	meta := map[string]any{"company": "Acme"}
	_, err = exec.Invoke(ctx, "c1", "hi", meta)
	require.NoError(t, err)
	assert.Equal(t, "Acme", meta["company"], "caller's meta must not be mutated")

	_, err = exec.Invoke(ctx, "c1", "hi again", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"Acme", nil}, seen, "meta is not merged across turns")

	saved, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, saved.Meta)
}

func TestExecutor_StepLimit(t *testing.T) {
	noop := func(context.Context, *domain.ConversationState) (domain.Update, error) { return domain.Update{}, nil }
	g, err := graph.New().
		AddNode("a", noop).
		AddNode("b", noop).
		AddEdge("a", "b").
		AddEdge("b", "a").
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	store := memory.NewStore()
	exec := runtime.NewExecutor(g, session.NewManager(store), runtime.WithMaxSteps(5))

	_, err = exec.Invoke(context.Background(), "c1", "hi", nil)
	assert.ErrorIs(t, err, domain.ErrStepLimit)

	_, err = store.Load(context.Background(), "c1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestExecutor_NodeError(t *testing.T) {
	boom := errors.New("boom")
	g, err := graph.New().
		AddNode("entry", func(context.Context, *domain.ConversationState) (domain.Update, error) {
			return domain.Update{}, boom
		}).
		SetEntry("entry").
		Compile()
	require.NoError(t, err)

	exec := runtime.NewExecutor(g, session.NewManager(memory.NewStore()))
	_, err = exec.Invoke(context.Background(), "c1", "hi", nil)

	var nodeErr *domain.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "entry", nodeErr.Node)
	assert.ErrorIs(t, err, boom)
}

func TestExecutor_CanceledContext(t *testing.T) {
	exec, store := newExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Invoke(ctx, "c1", "hi", nil)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.Load(context.Background(), "c1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestExecutor_EmptyConversationID(t *testing.T) {
	exec, _ := newExecutor(t)
	_, err := exec.Invoke(context.Background(), "", "hi", nil)
	assert.Error(t, err)
}

func TestExecutor_Hooks(t *testing.T) {
	var mu sync.Mutex
	var entered, left []string
	var ended *domain.TurnEvent
	started := 0

	hooks := domain.LifecycleHooks{
		OnTurnStart: func(context.Context, *domain.TurnEvent) { started++ },
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			mu.Lock()
			defer mu.Unlock()
			entered = append(entered, e.Node)
		},
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			mu.Lock()
			defer mu.Unlock()
			left = append(left, e.Node+":"+e.Route)
		},
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) { ended = e },
	}
	exec, _ := newExecutor(t, runtime.WithLifecycleHooks(hooks))

	_, err := exec.Invoke(context.Background(), "c1", "hi", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, started)
	assert.Equal(t, []string{"entry", "greet"}, entered)
	assert.Equal(t, []string{"entry:greet", "greet:"}, left)
	require.NotNil(t, ended)
	assert.Equal(t, domain.EventTurnEnd, ended.Type)
	assert.Equal(t, 1, ended.Turn)
	assert.NoError(t, ended.Err)
	assert.NotEmpty(t, ended.TurnID)
}

func TestExecutor_ConcurrentTurnsSameConversation(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec, store := newExecutor(t)
	ctx := context.Background()
	_, err := exec.Invoke(ctx, "c1", "hi", nil)
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			label := "agree"
			if i%2 == 0 {
				label = "disagree"
			}
			_, err := exec.Invoke(ctx, "c1", label, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	saved, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, n+1, saved.Scratch.Turn, "no turn may be lost")
	assert.Len(t, saved.History, 2+n*3)
}

func TestExecutor_DifferentConversationsAreIndependent(t *testing.T) {
	exec, _ := newExecutor(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := exec.Invoke(ctx, fmt.Sprintf("c%d", i), "hi", nil)
			if assert.NoError(t, err) {
				assert.Equal(t, 1, res.Turn)
			}
		}(i)
	}
	wg.Wait()
}
