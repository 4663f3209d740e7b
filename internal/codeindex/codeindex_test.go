package codeindex

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCodes struct {
	codes []string
	err   error
}

func (s staticCodes) ListCodes(context.Context) ([]string, error) { return s.codes, s.err }

func newTestIndex() *Index {
	return New(1000, 0.0001, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestIndex_ColdIndexAdmitsEverything(t *testing.T) {
	idx := newTestIndex()
	assert.False(t, idx.Warmed())
	assert.True(t, idx.MayContain("ANYTHING"))
}

func TestIndex_WarmThenLookup(t *testing.T) {
	idx := newTestIndex()
	require.NoError(t, idx.Warm(context.Background(), staticCodes{codes: []string{"SAVE10", "WELCOME"}}))

	assert.True(t, idx.Warmed())
	assert.True(t, idx.MayContain("SAVE10"))
	assert.True(t, idx.MayContain("WELCOME"))
	assert.False(t, idx.MayContain("NEVER-ISSUED"))
}

func TestIndex_AddAfterWarm(t *testing.T) {
	idx := newTestIndex()
	require.NoError(t, idx.Warm(context.Background(), staticCodes{}))

	assert.False(t, idx.MayContain("SPRING-AB12"))
	idx.Add("SPRING-AB12")
	assert.True(t, idx.MayContain("SPRING-AB12"))
}

func TestIndex_WarmFailureStaysCold(t *testing.T) {
	idx := newTestIndex()
	err := idx.Warm(context.Background(), staticCodes{err: errors.New("db down")})

	require.Error(t, err)
	assert.False(t, idx.Warmed())
	assert.True(t, idx.MayContain("SAVE10"))
}

// growingCodes simulates another replica issuing codes between reads.
type growingCodes struct {
	mu    sync.Mutex
	codes []string
}

func (g *growingCodes) ListCodes(context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.codes...), nil
}

func (g *growingCodes) issue(code string) {
	g.mu.Lock()
	g.codes = append(g.codes, code)
	g.mu.Unlock()
}

func TestIndex_RefreshPicksUpCodesIssuedElsewhere(t *testing.T) {
	idx := newTestIndex()
	src := &growingCodes{codes: []string{"SAVE10"}}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		idx.Refresh(ctx, src, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, idx.Warmed, time.Second, time.Millisecond)
	assert.True(t, idx.MayContain("SAVE10"))

	src.issue("OTHER-REPLICA")
	assert.Eventually(t, func() bool { return idx.MayContain("OTHER-REPLICA") }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Refresh did not return after cancel")
	}
}

func TestIndex_RefreshWithoutIntervalWarmsOnce(t *testing.T) {
	idx := newTestIndex()
	idx.Refresh(context.Background(), staticCodes{codes: []string{"ONCE"}}, 0)

	assert.True(t, idx.Warmed())
	assert.True(t, idx.MayContain("ONCE"))
}

func TestNew_FallsBackToDefaults(t *testing.T) {
	idx := New(0, 2, slog.Default())
	require.NotNil(t, idx.filter)
	assert.Greater(t, idx.filter.Cap(), uint(1000))
}
