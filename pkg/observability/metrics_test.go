package observability_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pichlex/debitor/internal/logging"
	"github.com/pichlex/debitor/pkg/domain"
	"github.com/pichlex/debitor/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHooks(t *testing.T) {
	m := observability.NewMetrics()
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnNodeEnter(ctx, &domain.NodeEvent{Node: "entry"})
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{Node: "classify_lpr"})
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{Node: "classify_lpr"})
	hooks.OnNodeLeave(ctx, &domain.NodeEvent{Node: "classify_lpr", Route: domain.RouteUnknown})
	hooks.OnNodeLeave(ctx, &domain.NodeEvent{Node: "classify_lpr", Err: errors.New("boom")})
	hooks.OnTurnEnd(ctx, &domain.TurnEvent{Duration: 20 * time.Millisecond})
	hooks.OnTurnEnd(ctx, &domain.TurnEvent{Err: errors.New("boom")})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("entry")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("classify_lpr")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnknownRoutes.WithLabelValues("classify_lpr")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeErrors.WithLabelValues("classify_lpr")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TurnDuration))
}

func TestMetricsHandler(t *testing.T) {
	m := observability.NewMetrics()
	m.Hooks().OnNodeEnter(context.Background(), &domain.NodeEvent{Node: "intro"})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `debitor_node_visits_total{node="intro"} 1`)
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	hooks := observability.LoggingHooks(logging.NewJSON(&buf, slog.LevelDebug))
	ctx := context.Background()

	hooks.OnNodeEnter(ctx, &domain.NodeEvent{EventBase: domain.EventBase{ConversationID: "c1"}, Node: "intro"})
	hooks.OnTurnEnd(ctx, &domain.TurnEvent{EventBase: domain.EventBase{ConversationID: "c1"}, Turn: 1, Stage: "intro"})

	out := buf.String()
	assert.Contains(t, out, `"msg":"node_enter"`)
	assert.Contains(t, out, `"node":"intro"`)
	assert.Contains(t, out, `"msg":"turn_end"`)
}
