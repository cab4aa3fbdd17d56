package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/chatdata/internal/apperrors"
	"github.com/hyperjump/chatdata/internal/llm"
	"github.com/hyperjump/chatdata/internal/models"
	"github.com/hyperjump/chatdata/internal/storage"
	"github.com/hyperjump/chatdata/internal/vizspec"
)

type fakeGenerator struct {
	reply string
	err   error
	calls []llm.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.reply, Model: "fake"}, nil
}

func (f *fakeGenerator) Provider() string { return "fake" }
func (f *fakeGenerator) Model() string    { return "fake" }

type brokenQueries struct {
	storage.Collection[models.QueryLog]
}

func (brokenQueries) Create(context.Context, *models.QueryLog) (*models.QueryLog, error) {
	return nil, fmt.Errorf("%w: disk full", apperrors.ErrStorageUnavailable)
}

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.OpenJSON(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func ask(q string) Request {
	return Request{Messages: []models.ChatMessage{{Role: models.RoleUser, Content: q}}}
}

const chartReply = "Sales peaked in Q2.\n\n```json\n" +
	`{"chartType":"bar","title":"Sales","xAxis":"quarter","yAxis":"sales","chartData":[{"quarter":"Q1","sales":10},{"quarter":"Q2","sales":30}]}` +
	"\n```\n\nLet me know if you need more."

func TestRespond_ExtractsChart(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	ds, err := store.DataSources.Create(ctx, &models.DataSource{Name: "Sales Data", Type: models.TypeCSV, Config: models.CSVConfig{Filename: "s.csv"}})
	require.NoError(t, err)

	gen := &fakeGenerator{reply: chartReply}
	svc := NewService(store.DataSources, store.QueryLogs, gen, 0, zap.NewNop())

	resp, err := svc.Respond(ctx, Request{Messages: ask("Show sales by quarter").Messages, DataSourceID: ds.ID})
	require.NoError(t, err)

	assert.Equal(t, models.RoleAssistant, resp.Role)
	assert.Equal(t, chartReply, resp.Content)
	assert.Equal(t, "Sales peaked in Q2.\n\n\n\nLet me know if you need more.", resp.Prose)
	require.NotNil(t, resp.Visualization)
	assert.Equal(t, vizspec.KindChart, resp.Visualization.Kind)
	assert.Len(t, resp.EligibleKinds, 4)

	require.Len(t, gen.calls, 1)
	msgs := gen.calls[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, models.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "You're analyzing data from: Sales Data (csv)")
	assert.Contains(t, msgs[0].Content, "```json")
	assert.Equal(t, "Show sales by quarter", msgs[1].Content)
	assert.Equal(t, Nudge, msgs[2].Content)

	logs, err := store.QueryLogs.List(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Show sales by quarter", logs[0].Content)
	require.NotNil(t, logs[0].DataSourceID)
	assert.Equal(t, ds.ID, *logs[0].DataSourceID)
}

func TestRespond_PlainTextAndUnknownSource(t *testing.T) {
	store := newStore(t)
	gen := &fakeGenerator{reply: "No chart needed."}
	svc := NewService(store.DataSources, store.QueryLogs, gen, 0, nil)

	resp, err := svc.Respond(context.Background(), Request{Messages: ask("hi").Messages, DataSourceID: "missing"})
	require.NoError(t, err)
	assert.Equal(t, "No chart needed.", resp.Prose)
	assert.Nil(t, resp.Visualization)
	assert.Nil(t, resp.EligibleKinds)
	assert.NotContains(t, gen.calls[0].Messages[0].Content, "You're analyzing data from")

	logs, err := store.QueryLogs.List(context.Background())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].DataSourceID, "the id is logged even when the source is unknown")
}

func TestRespond_InvalidBlockStaysProse(t *testing.T) {
	reply := "Here:\n```json\n{\"chartType\":\"bar\"}\n```"
	svc := NewService(nil, nil, &fakeGenerator{reply: reply}, 0, nil)
	resp, err := svc.Respond(context.Background(), ask("chart please"))
	require.NoError(t, err)
	assert.Equal(t, reply, resp.Prose)
	assert.Nil(t, resp.Visualization)
}

func TestRespond_Validation(t *testing.T) {
	gen := &fakeGenerator{reply: "x"}
	svc := NewService(nil, nil, gen, 0, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
	}{
		{"no messages", Request{}},
		{"last from assistant", Request{Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "q"}, {Role: models.RoleAssistant, Content: "a"}}}},
		{"unknown role", Request{Messages: []models.ChatMessage{{Role: "robot", Content: "q"}}}},
		{"empty question", Request{Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "  "}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Respond(ctx, tt.req)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
	assert.Empty(t, gen.calls)
}

func TestRespond_GeneratorErrorsPropagate(t *testing.T) {
	store := newStore(t)
	upstream := &llm.UpstreamError{Provider: "openai", StatusCode: 401, Message: "Incorrect API key"}
	svc := NewService(store.DataSources, store.QueryLogs, &fakeGenerator{err: upstream}, 0, nil)

	_, err := svc.Respond(context.Background(), ask("q"))
	var got *llm.UpstreamError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, 401, got.StatusCode)

	n, err := store.QueryLogs.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "failed turns are not logged")
}

func TestRespond_AuditFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	svc := NewService(nil, brokenQueries{}, &fakeGenerator{reply: "ok"}, 0, zap.New(core))

	resp, err := svc.Respond(context.Background(), ask("q"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	entries := logs.FilterMessage("Failed to record query").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "disk full")
}

func TestRespond_CapsHistory(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	svc := NewService(nil, nil, gen, 4, nil)

	var msgs []models.ChatMessage
	for i := 0; i < 9; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msgs = append(msgs, models.ChatMessage{Role: role, Content: fmt.Sprintf("m%d", i)})
	}
	_, err := svc.Respond(context.Background(), Request{Messages: msgs})
	require.NoError(t, err)

	sent := gen.calls[0].Messages
	require.Len(t, sent, 6)
	var contents []string
	for _, m := range sent[1:5] {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, "m5 m6 m7 m8", strings.Join(contents, " "))
}

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt(nil)
	assert.True(t, strings.HasPrefix(p, assistantIntro))
	block, ok := vizspec.FindFencedBlock(p)
	require.True(t, ok)
	spec, err := vizspec.Decode([]byte(block.Body))
	require.NoError(t, err, "the example in the prompt must itself be a valid spec")
	assert.Equal(t, "Lowest Sales by Category", spec.Chart.Title)
}
