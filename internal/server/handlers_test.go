package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/chatdata/internal/apperrors"
	"github.com/hyperjump/chatdata/internal/catalog"
	"github.com/hyperjump/chatdata/internal/chart"
	"github.com/hyperjump/chatdata/internal/chat"
	"github.com/hyperjump/chatdata/internal/config"
	"github.com/hyperjump/chatdata/internal/ingest"
	"github.com/hyperjump/chatdata/internal/llm"
	"github.com/hyperjump/chatdata/internal/models"
	"github.com/hyperjump/chatdata/internal/storage"
)

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Generate(context.Context, llm.Request) (*llm.Response, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &llm.Response{Content: g.reply, Model: "stub"}, nil
}
func (g *stubGenerator) Provider() string { return llm.ProviderOpenAI }
func (g *stubGenerator) Model() string    { return "stub" }

type testEnv struct {
	handler http.Handler
	store   *storage.Store
	gen     *stubGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	cfg.Upload.Dir = filepath.Join(dir, "uploads")
	cfg.Upload.MaxBytes = 64 << 10

	store, err := storage.OpenJSON(cfg.Storage.DataDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := zap.NewNop()
	up := ingest.NewUploader(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	cat := catalog.New(store, up, catalog.Options{}, logger)
	gen := &stubGenerator{reply: "ok"}
	chatSvc := chat.NewService(cat, store.QueryLogs, gen, cfg.Chat.MaxHistory, logger)
	srv := NewServer(cat, chatSvc, gen, store, cfg, logger)
	return &testEnv{handler: srv.Handler(), store: store, gen: gen}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out), w.Body.String())
	return out
}

func (e *testEnv) upload(t *testing.T, name, filename, contentType, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if name != "" {
		require.NoError(t, mw.WriteField("name", name))
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, w)["status"])
}

func TestDataSourcesCRUD(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/datasources", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = env.do(t, http.MethodPost, "/api/datasources", map[string]any{
		"name": "Warehouse", "type": "postgresql", "config": map[string]any{"hostname": "db", "port": 5432},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[map[string]any](t, w)
	id := created["id"].(string)
	assert.Equal(t, "db", created["config"].(map[string]any)["host"])
	assert.NotEmpty(t, created["createdAt"])

	w = env.do(t, http.MethodGet, "/api/datasources/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, "/api/datasources/"+id, map[string]any{"name": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Renamed", decodeBody[map[string]any](t, w)["name"])

	w = env.do(t, http.MethodPatch, "/api/datasources/"+id, map[string]any{"type": "mysql"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "mysql", decodeBody[map[string]any](t, w)["type"])

	w = env.do(t, http.MethodDelete, "/api/datasources/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w = env.do(t, method, "/api/datasources/"+id, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, method)
		assert.Equal(t, "Data source not found", decodeBody[map[string]string](t, w)["error"])
	}
	w = env.do(t, http.MethodPut, "/api/datasources/"+id, map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateDataSource_BadRequests(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body any
	}{
		{"malformed json", "{"},
		{"missing name", map[string]any{"type": "csv"}},
		{"blank name", map[string]any{"name": "   ", "type": "api"}},
		{"missing type", map[string]any{"name": "x"}},
		{"unknown type", map[string]any{"name": "x", "type": "oracle"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/datasources", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decodeBody[map[string]string](t, w)["error"])
		})
	}
	n, err := env.store.DataSources.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUploadAndPreview(t *testing.T) {
	env := newTestEnv(t)
	csv := "city,temp\nOslo,4\nLima,22\nCairo,31\n"

	w := env.upload(t, "Weather", "weather.csv", "text/csv", csv)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	out := decodeBody[struct {
		Success    bool              `json:"success"`
		DataSource models.DataSource `json:"dataSource"`
	}](t, w)
	assert.True(t, out.Success)
	assert.Equal(t, "Weather", out.DataSource.Name)
	assert.Equal(t, models.TypeCSV, out.DataSource.Type)

	w = env.do(t, http.MethodGet, "/api/csv/"+out.DataSource.ID+"/preview?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	preview := decodeBody[models.CsvPreview](t, w)
	assert.Equal(t, []string{"city", "temp"}, preview.Preview.Headers)
	assert.Equal(t, [][]string{{"Oslo", "4"}, {"Lima", "22"}}, preview.Preview.Rows)
	assert.Equal(t, out.DataSource.ID, preview.DataSource.ID)

	w = env.do(t, http.MethodGet, "/api/csv/"+out.DataSource.ID+"/data", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[models.CsvPreview](t, w).Preview.Rows, 3)

	w = env.do(t, http.MethodGet, "/api/csv/"+out.DataSource.ID+"/preview?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreview_NotCSVAndMissing(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/datasources", map[string]any{"name": "api", "type": "api"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeBody[map[string]any](t, w)["id"].(string)

	w = env.do(t, http.MethodGet, "/api/csv/"+id+"/preview", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody[map[string]string](t, w)["error"], "not a CSV file")

	w = env.do(t, http.MethodGet, "/api/csv/nope/preview", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpload_Rejections(t *testing.T) {
	env := newTestEnv(t)

	w := env.upload(t, "x", "", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No file provided", decodeBody[map[string]string](t, w)["error"])

	w = env.upload(t, "x", "photo.png", "image/png", "data")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.upload(t, "x", "big.csv", "text/csv", strings.Repeat("a", 100<<10))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	n, err := env.store.DataSources.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChat(t *testing.T) {
	env := newTestEnv(t)
	env.gen.reply = "Top cities:\n```json\n{\"tableData\":{\"headers\":[\"city\"],\"rows\":[[\"Oslo\"]]}}\n```"

	w := env.do(t, http.MethodPost, "/api/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "List cities"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[map[string]any](t, w)
	assert.Equal(t, "assistant", resp["role"])
	assert.Equal(t, env.gen.reply, resp["content"])
	assert.Equal(t, "Top cities:", resp["prose"])
	viz := resp["visualization"].(map[string]any)
	assert.Equal(t, "table", viz["kind"])

	w = env.do(t, http.MethodGet, "/api/queries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	logs := decodeBody[[]models.QueryLog](t, w)
	require.Len(t, logs, 1)
	assert.Equal(t, "List cities", logs[0].Content)
	assert.Nil(t, logs[0].DataSourceID)
}

func TestChat_Errors(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"messages": []map[string]string{{"role": "user", "content": "q"}}}

	env.gen.err = fmt.Errorf("%w: OpenAI API key is not configured (set OPENAI_API_KEY)", apperrors.ErrConfiguration)
	w := env.do(t, http.MethodPost, "/api/chat", body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "OpenAI API key is not configured (set OPENAI_API_KEY)", decodeBody[map[string]string](t, w)["error"])

	env.gen.err = &llm.UpstreamError{Provider: llm.ProviderOpenAI, StatusCode: 401, Message: "Incorrect API key",
		Details: map[string]any{"code": "invalid_api_key"}}
	w = env.do(t, http.MethodPost, "/api/chat", body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeBody[map[string]any](t, w)
	assert.Equal(t, "OpenAI API error: Incorrect API key", resp["error"])
	assert.Equal(t, "invalid_api_key", resp["details"].(map[string]any)["code"])

	w = env.do(t, http.MethodPost, "/api/chat", map[string]any{"messages": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVisualize(t *testing.T) {
	env := newTestEnv(t)
	content := "Revenue:\n```json\n{\"chartType\":\"pie\",\"chartData\":[{\"name\":\"A\",\"value\":3},{\"name\":\"B\",\"value\":1}]}\n```"

	w := env.do(t, http.MethodPost, "/api/visualize", map[string]any{"content": content})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[struct {
		Prose         string       `json:"prose"`
		EligibleKinds []string     `json:"eligibleKinds"`
		Chart         *chart.Chart `json:"chart"`
	}](t, w)
	assert.Equal(t, "Revenue:", resp.Prose)
	assert.Equal(t, []string{"bar", "line", "area", "pie"}, resp.EligibleKinds)
	require.NotNil(t, resp.Chart)
	assert.Len(t, resp.Chart.Slices, 2)

	w = env.do(t, http.MethodPost, "/api/visualize", map[string]any{"content": content, "kind": "line"})
	require.Equal(t, http.StatusOK, w.Code)
	resp.Chart = nil
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Chart.Channels, 1)

	w = env.do(t, http.MethodPost, "/api/visualize", map[string]any{"content": content, "kind": "radar"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/visualize", map[string]any{"content": "just text"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"prose":"just text"}`, w.Body.String())
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	table := `{"tableData":{"headers":["name","note"],"rows":[["Smith, J","said \"hi\""]]}}`

	w := env.do(t, http.MethodPost, "/api/export?format=csv", table)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="export.csv"`)
	assert.Equal(t, "name,note\n\"Smith, J\",\"said \"\"hi\"\"\"\n", w.Body.String())

	chartBody := `{"chartType":"bar","title":"Sales: 2024","chartData":[{"name":"Q1","value":5}]}`
	w = env.do(t, http.MethodPost, "/api/export?format=xlsx", chartBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	got, err := chart.ReadXLSX(w.Body)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "value"}, got.Headers)
	assert.Equal(t, [][]string{{"Q1", "5"}}, got.Rows)

	w = env.do(t, http.MethodPost, "/api/export?format=pdf", table)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/api/export", `{"chartType":"bar"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLLMCheck(t *testing.T) {
	env := newTestEnv(t)
	env.gen.reply = "Hello!"
	w := env.do(t, http.MethodGet, "/api/llm/check", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[map[string]any](t, w)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Hello!", resp["message"])

	env.gen.err = &llm.UpstreamError{Provider: "openai", Type: llm.ErrorTypeAuth, StatusCode: 401, Message: "bad key"}
	w = env.do(t, http.MethodGet, "/api/llm/check", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp = decodeBody[map[string]any](t, w)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "auth", resp["errorType"])
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	_, err := storage.Seed(context.Background(), env.store)
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[map[string]any](t, w)
	assert.Equal(t, float64(3), resp["data_sources"])
	assert.Equal(t, float64(0), resp["queries"])
	assert.Equal(t, "json", resp["backend"])
	assert.Greater(t, resp["disk_usage_bytes"], float64(0))
	assert.Equal(t, false, resp["llm"].(map[string]any)["key_configured"])
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Sales_ 2024", sheetName("Sales: 2024"))
	assert.Len(t, []rune(sheetName(strings.Repeat("x", 40))), 31)
}
