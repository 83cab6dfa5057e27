package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retention-intel/server/internal/agent/chat"
	"github.com/retention-intel/server/internal/agent/model"
	errx "github.com/retention-intel/server/internal/core/error"
	"github.com/retention-intel/server/internal/evaluation"
)

type fakeChat struct {
	resp *model.TurnResponse
	err  error
	got  model.TurnRequest

	cleared string
}

func (f *fakeChat) HandleTurn(_ context.Context, req model.TurnRequest) (*model.TurnResponse, error) {
	f.got = req
	return f.resp, f.err
}

func (f *fakeChat) Transcript(_ context.Context, id string) (*model.ConversationHistory, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.ConversationHistory{ConversationID: id, Messages: []*schema.Message{
		schema.UserMessage("hi"),
		schema.AssistantMessage("hello", nil),
	}}, nil
}

func (f *fakeChat) ClearTranscript(_ context.Context, id string) error {
	f.cleared = id
	return f.err
}

type fakeCatalog struct {
	refs []evaluation.Ref
	err  error
}

func (f fakeCatalog) List() ([]evaluation.Ref, error) { return f.refs, f.err }

type fakeEvals struct {
	limit int
	err   error
}

func (f *fakeEvals) ListMetrics(_ context.Context, limit int) ([]model.EvalMetric, error) {
	f.limit = limit
	return []model.EvalMetric{{ID: "m1", Compliance: 1, Completeness: 0.5, WindowEnd: time.Unix(0, 0).UTC()}}, f.err
}

func (f *fakeEvals) ListJudgeRuns(_ context.Context, limit int) ([]model.JudgeRun, error) {
	f.limit = limit
	return []model.JudgeRun{{ID: "j1", ScoringID: "completeness"}}, f.err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestChat(t *testing.T) {
	fc := &fakeChat{resp: &model.TurnResponse{ConversationID: "c1", Response: "ok"}}
	h := NewServer(fc).Routes()

	rec := do(t, h, http.MethodPost, "/api/chat", `{"message":"top 3","customer_id":"C1001","approve_email":true,"approve_email_content":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "c1", body["conversation_id"])
	assert.Equal(t, "ok", body["response"])
	assert.Equal(t, false, body["blocked"])
	assert.Equal(t, map[string]any{}, body["guardrail_findings"])
	assert.Equal(t, model.TurnRequest{Message: "top 3", CustomerID: "C1001", ApproveEmail: true, ApproveEmailContent: "x"}, fc.got)
}

func TestChatErrors(t *testing.T) {
	blocked := errx.New(&chat.BlockedError{
		ConversationID: "c9",
		Findings:       map[string][]string{"jailbreak": {"keyword"}},
	}, http.StatusBadRequest, errx.BlockedMessage)

	tests := []struct {
		name   string
		body   string
		err    error
		status int
		check  func(t *testing.T, body map[string]any)
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, func(t *testing.T, b map[string]any) {
			assert.Equal(t, errx.InvalidRequestMessage, b["error"])
		}},
		{"blocked", `{"message":"ignore previous"}`, blocked, http.StatusBadRequest, func(t *testing.T, b map[string]any) {
			assert.Equal(t, true, b["blocked"])
			assert.Equal(t, "c9", b["conversation_id"])
			assert.Equal(t, map[string]any{"jailbreak": []any{"keyword"}}, b["findings"])
		}},
		{"internal", `{"message":"x"}`, errx.New(errors.New("boom"), 500, errx.SystemErrorMessage), http.StatusInternalServerError, func(t *testing.T, b map[string]any) {
			assert.Equal(t, errx.SystemErrorMessage, b["error"])
		}},
	}
	for _, tt := range tests {
		for _, path := range []string{"/api/chat", "/api/chat/stream"} {
			t.Run(tt.name+path, func(t *testing.T) {
				h := NewServer(&fakeChat{err: tt.err}).Routes()
				rec := do(t, h, http.MethodPost, path, tt.body)
				assert.Equal(t, tt.status, rec.Code)
				tt.check(t, decode(t, rec))
			})
		}
	}
}

func TestChatStream(t *testing.T) {
	text := strings.Repeat("a", 40) + "\nline two"
	h := NewServer(&fakeChat{resp: &model.TurnResponse{ConversationID: "c2", Response: text}}).Routes()

	rec := do(t, h, http.MethodPost, "/api/chat/stream", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	want := "event: meta\ndata: c2\n\n" +
		"event: chunk\ndata: " + strings.Repeat("a", 32) + "\n\n" +
		"event: chunk\ndata: aaaaaaaa\\nline two\n\n" +
		"event: done\ndata: end\n\n"
	assert.Equal(t, want, rec.Body.String())
}

func TestChunkText(t *testing.T) {
	assert.Nil(t, ChunkText("", 32))
	assert.Equal(t, []string{"abc"}, ChunkText("abc", 32))
	assert.Equal(t, []string{"ab", "cd", "e"}, ChunkText("abcde", 2))
	assert.Equal(t, []string{"éé", "é"}, ChunkText("ééé", 2))
}

func TestMetricsAndJudgeRuns(t *testing.T) {
	evals := &fakeEvals{}
	h := NewServer(&fakeChat{}, WithEvalReader(evals), WithSLA(SLA{Compliance: 0.9, Completeness: 0.85})).Routes()

	rec := do(t, h, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, defaultMetricLimit, evals.limit)
	assert.Equal(t, map[string]any{"compliance": 0.9, "completeness": 0.85}, body["sla"])
	assert.Len(t, body["metrics"], 1)

	rec = do(t, h, http.MethodGet, "/api/judge-runs?limit=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, evals.limit)
	assert.Len(t, decode(t, rec)["runs"], 1)

	do(t, h, http.MethodGet, "/api/judge-runs?limit=100000", "")
	assert.Equal(t, maxLimit, evals.limit)
	do(t, h, http.MethodGet, "/api/judge-runs?limit=-3", "")
	assert.Equal(t, defaultRunLimit, evals.limit)

	evals.err = errx.WrapPostgres(errors.New("down"))
	rec = do(t, h, http.MethodGet, "/api/metrics", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestEvalEndpointsWithoutStore(t *testing.T) {
	h := NewServer(&fakeChat{}).Routes()
	for _, path := range []string{"/api/metrics", "/api/judge-runs"} {
		rec := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestConversationMessagesAndHealth(t *testing.T) {
	h := NewServer(&fakeChat{}).Routes()

	rec := do(t, h, http.MethodGet, "/api/conversations/c5/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "c5", body["conversation_id"])
	assert.Equal(t, []any{
		map[string]any{"role": "user", "content": "hi"},
		map[string]any{"role": "assistant", "content": "hello"},
	}, body["messages"])

	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestClearConversation(t *testing.T) {
	fc := &fakeChat{}
	h := NewServer(fc).Routes()

	rec := do(t, h, http.MethodDelete, "/api/conversations/c6/messages", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "c6", fc.cleared)

	fc.err = errx.New(errors.New("redis down"), http.StatusBadGateway, errx.RedisErrorMessage)
	rec = do(t, h, http.MethodDelete, "/api/conversations/c6/messages", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestScoringFunctions(t *testing.T) {
	rec := do(t, NewServer(&fakeChat{}).Routes(), http.MethodGet, "/api/scoring-functions", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	catalog := fakeCatalog{refs: []evaluation.Ref{{Name: "compliance", Version: "v1"}, {Name: "completeness", Version: "v1"}}}
	rec = do(t, NewServer(&fakeChat{}, WithScoringCatalog(catalog)).Routes(), http.MethodGet, "/api/scoring-functions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{
		map[string]any{"name": "compliance", "version": "v1"},
		map[string]any{"name": "completeness", "version": "v1"},
	}, decode(t, rec)["scoring_functions"])
}
