package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/alexandrecuer/postprocess/internal/adapter/http"
	"github.com/alexandrecuer/postprocess/internal/feed"
	"github.com/alexandrecuer/postprocess/internal/process"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockQueue struct {
	items []process.Item
}

func (q *mockQueue) Enqueue(_ context.Context, item process.Item) error {
	q.items = append(q.items, item)
	return nil
}

type fixture struct {
	srv   *httpadapter.Server
	feeds *feed.MemoryStore
	queue *mockQueue
	power int
}

func newFixture(t *testing.T, readyErr error) *fixture {
	t.Helper()
	feeds := feed.NewMemoryStore()
	power, err := feeds.Create(1, "power", 10)
	require.NoError(t, err)
	queue := &mockQueue{}
	svc := process.NewService(process.DefaultRegistry(), feeds, process.NewMemoryListStore(), queue, slog.Default())
	return &fixture{
		srv:   httpadapter.NewServer(":0", svc, &mockReadiness{err: readyErr}, slog.Default()),
		feeds: feeds,
		queue: queue,
		power: power,
	}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

type apiResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Item    process.Item `json:"item"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthzReturns200(t *testing.T) {
	rec := newFixture(t, nil).do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	assert.Equal(t, http.StatusOK, newFixture(t, nil).do(http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, newFixture(t, fmt.Errorf("not ready yet")).do(http.MethodGet, "/readyz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := newFixture(t, nil).do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRequestIDHeaderIsAccepted(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/processes", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDescriptions(t *testing.T) {
	rec := newFixture(t, nil).do(http.MethodGet, "/api/processes", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]process.Description
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Contains(t, got, process.InfiltrationLosses)
	assert.Contains(t, got, process.PowerToKWh)
}

func TestCreateListUpdate(t *testing.T) {
	f := newFixture(t, nil)
	input := strconv.Itoa(f.power)

	rec := f.do(http.MethodPost, "/api/process/create?process=powertokwh&userid=1", fmt.Sprintf(`{"input":%s,"output":"energy"}`, input))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.True(t, created.Success)
	assert.NotEmpty(t, created.Item.ID)
	require.Len(t, f.queue.items, 1)

	out, ok := f.feeds.IDByName(1, "energy")
	require.True(t, ok)

	rec = f.do(http.MethodGet, "/api/process/list?userid=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []process.ListedItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.Item.ID, listed[0].ID)

	rec = f.do(http.MethodPost, "/api/process/update?process=powertokwh&userid=1", fmt.Sprintf(`{"input":%s,"output":%d}`, input, out))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, created.Item.ID, decode(t, rec).Item.ID)
	assert.Len(t, f.queue.items, 2)
}

func TestCreateRejections(t *testing.T) {
	f := newFixture(t, nil)
	input := strconv.Itoa(f.power)

	tests := []struct {
		name   string
		target string
		body   string
		status int
		msg    string
	}{
		{"no userid", "/api/process/create?process=powertokwh", `{}`, http.StatusBadRequest, "userid must be numeric and more than 0"},
		{"no process", "/api/process/create?userid=1", `{}`, http.StatusBadRequest, "missing process name"},
		{"unknown process", "/api/process/create?process=basic_formula&userid=1", `{}`, http.StatusNotFound, "unknown process: basic_formula"},
		{"missing option", "/api/process/create?process=powertokwh&userid=1", `{"output":"x"}`, http.StatusBadRequest, "missing option input"},
		{"bad name", "/api/process/create?process=powertokwh&userid=1", `{"input":` + input + `,"output":"a;b"}`, http.StatusBadRequest, "new feed name contains invalid characters"},
		{"bad json", "/api/process/create?process=powertokwh&userid=1", `{`, http.StatusBadRequest, ""},
		{"not registered", "/api/process/update?process=powertokwh&userid=1", `{"input":` + input + `,"output":` + input + `}`, http.StatusNotFound, "process does not exist, please create"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec)
			assert.False(t, resp.Success)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, resp.Message)
			}
		})
	}
	assert.Empty(t, f.queue.items)
}
