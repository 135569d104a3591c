package oracle_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pichlex/debitor/pkg/domain"
	"github.com/pichlex/debitor/pkg/oracle"
	"github.com/pichlex/debitor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var agreeReq = domain.ClassifyRequest{
	History: []domain.Message{domain.UserMessage("ok, we will pay")},
	Allowed: []string{"agree", "disagree"},
}

func fixed(route string) ports.Oracle {
	return ports.OracleFunc(func(context.Context, domain.ClassifyRequest) (domain.Classification, error) {
		return domain.Classification{Route: route, Notes: "n"}, nil
	})
}

func blocking() ports.Oracle {
	return ports.OracleFunc(func(ctx context.Context, _ domain.ClassifyRequest) (domain.Classification, error) {
		<-ctx.Done()
		return domain.Classification{}, ctx.Err()
	})
}

func TestGuard_PassesAllowedLabel(t *testing.T) {
	out, err := oracle.NewGuard(fixed(" Agree ")).Classify(context.Background(), agreeReq)
	require.NoError(t, err)
	assert.Equal(t, "agree", out.Route)
	assert.Equal(t, "n", out.Notes)
}

func TestGuard_NormalizesUnknownLabel(t *testing.T) {
	out, err := oracle.NewGuard(fixed("maybe")).Classify(context.Background(), agreeReq)
	require.NoError(t, err)
	assert.Equal(t, domain.RouteUnknown, out.Route)
}

func TestGuard_Timeout(t *testing.T) {
	g := oracle.NewGuard(blocking(),
		oracle.WithTimeout(20*time.Millisecond),
		oracle.WithMaxAttempts(2),
		oracle.WithBackoff(0),
	)

	start := time.Now()
	out, err := g.Classify(context.Background(), agreeReq)
	elapsed := time.Since(start)

	assert.Equal(t, domain.RouteUnknown, out.Route)
	var timeoutErr *domain.OracleTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 20*time.Millisecond, timeoutErr.Timeout)
	assert.Less(t, elapsed, time.Second, "retries are bounded")
}

func TestGuard_LateAnswerIsDiscarded(t *testing.T) {
	slow := ports.OracleFunc(func(context.Context, domain.ClassifyRequest) (domain.Classification, error) {
		time.Sleep(time.Second)
		return domain.Classification{Route: "agree"}, nil
	})
	g := oracle.NewGuard(slow,
		oracle.WithTimeout(20*time.Millisecond),
		oracle.WithMaxAttempts(2),
		oracle.WithBackoff(0),
	)

	start := time.Now()
	out, err := g.Classify(context.Background(), agreeReq)
	elapsed := time.Since(start)

	assert.Equal(t, domain.RouteUnknown, out.Route)
	var timeoutErr *domain.OracleTimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
	assert.Less(t, elapsed, 500*time.Millisecond, "an oracle ignoring ctx must not outlive the deadline")
}

func TestGuard_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	flaky := ports.OracleFunc(func(context.Context, domain.ClassifyRequest) (domain.Classification, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return domain.Classification{}, errors.New("503")
		}
		return domain.Classification{Route: "disagree"}, nil
	})

	out, err := oracle.NewGuard(flaky, oracle.WithBackoff(time.Millisecond)).Classify(context.Background(), agreeReq)
	require.NoError(t, err)
	assert.Equal(t, "disagree", out.Route)
	assert.EqualValues(t, 2, calls)
}

func TestGuard_Unavailable(t *testing.T) {
	var calls int32
	down := ports.OracleFunc(func(context.Context, domain.ClassifyRequest) (domain.Classification, error) {
		atomic.AddInt32(&calls, 1)
		return domain.Classification{}, errors.New("connection refused")
	})

	out, err := oracle.NewGuard(down, oracle.WithMaxAttempts(3), oracle.WithBackoff(0)).Classify(context.Background(), agreeReq)
	assert.Equal(t, domain.RouteUnknown, out.Route)

	var unavailable *domain.OracleUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 3, unavailable.Attempts)
	assert.EqualValues(t, 3, calls)
}

func TestGuard_CanceledTurnStopsRetrying(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	down := ports.OracleFunc(func(context.Context, domain.ClassifyRequest) (domain.Classification, error) {
		atomic.AddInt32(&calls, 1)
		cancel()
		return domain.Classification{}, errors.New("boom")
	})

	_, err := oracle.NewGuard(down, oracle.WithMaxAttempts(5)).Classify(ctx, agreeReq)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, calls)
}

func TestNormalize(t *testing.T) {
	allowed := []string{"is_lpr", "not_lpr"}
	assert.Equal(t, "is_lpr", oracle.Normalize("IS_LPR", allowed))
	assert.Equal(t, domain.RouteUnknown, oracle.Normalize("", allowed))
	assert.Equal(t, domain.RouteUnknown, oracle.Normalize("ask_lpr", allowed))
}
