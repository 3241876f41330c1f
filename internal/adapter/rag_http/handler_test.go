package rag_http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rag_http "rag-chat/internal/adapter/rag_http"
	"rag-chat/internal/adapter/rag_http/openapi"
	"rag-chat/internal/domain"
	"rag-chat/internal/infra/logger"
	"rag-chat/internal/usecase"
)

type stubChatUsecase struct {
	events    []usecase.ChatEvent
	err       error
	calls     int
	captured  string
	requestID string
}

func (s *stubChatUsecase) Chat(ctx context.Context, message string) (<-chan usecase.ChatEvent, error) {
	s.calls++
	s.captured = message
	s.requestID = logger.RequestID(ctx)
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan usecase.ChatEvent, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func newTestServer(t *testing.T, chat usecase.ChatUsecase, readiness rag_http.ReadinessCheck) *echo.Echo {
	t.Helper()
	doc, err := openapi.GetSwagger(context.Background())
	require.NoError(t, err)
	handler := rag_http.NewHandler(chat, readiness, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	return rag_http.NewRouter(handler, doc, rag_http.RouterConfig{AllowOrigins: []string{"*"}})
}

func postChat(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_ChatStreamsChunksAndCitationMap(t *testing.T) {
	chat := &stubChatUsecase{events: []usecase.ChatEvent{
		{Kind: usecase.ChatEventText, Text: "Florence is on day 2 "},
		{Kind: usecase.ChatEventText, Text: "[1]."},
		{Kind: usecase.ChatEventCitations, Citations: domain.NewCitationMap("Day 2: Florence")},
	}}
	e := newTestServer(t, chat, nil)

	rec := postChat(e, `{"message":"Where are we on day 2?"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "no-cache", rec.Header().Get(echo.HeaderCacheControl))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.Equal(t, "Where are we on day 2?", chat.captured)

	prose, citations, found, err := domain.SplitCitationMarker(rec.Body.String())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Florence is on day 2 [1].", prose)
	text, ok := citations.Get("1")
	assert.True(t, ok)
	assert.Equal(t, "Day 2: Florence", text)
}

func TestHandler_ChatEmptyMessage(t *testing.T) {
	for _, body := range []string{`{"message":""}`, `{"message":"   \n"}`} {
		chat := &stubChatUsecase{}
		e := newTestServer(t, chat, nil)

		rec := postChat(e, body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"detail":"Message must not be empty"}`, rec.Body.String())
		assert.Zero(t, chat.calls)
	}
}

func TestHandler_ChatRejectsInvalidBody(t *testing.T) {
	chat := &stubChatUsecase{}
	e := newTestServer(t, chat, nil)

	rec := postChat(e, `{"message": 42}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request")
	assert.Zero(t, chat.calls)
}

func TestHandler_ChatUsecaseError(t *testing.T) {
	e := newTestServer(t, &stubChatUsecase{err: errors.New("boom")}, nil)

	rec := postChat(e, `{"message":"hi"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var detail openapi.Detail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, usecase.InternalErrorMessage, detail.Detail)
}

func TestHandler_Probes(t *testing.T) {
	e := newTestServer(t, &stubChatUsecase{}, nil)

	tests := []struct {
		path string
		want string
	}{
		{"/health", `{"status":"ok","detail":"Service is healthy"}`},
		{"/liveness", `{"status":"alive","detail":"Service is live"}`},
		{"/readyz", `{"status":"ready"}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestHandler_ReadinessFailure(t *testing.T) {
	e := newTestServer(t, &stubChatUsecase{}, func(ctx context.Context) error {
		return errors.New("db down")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}

func TestHandler_OpenAPIDocument(t *testing.T) {
	e := newTestServer(t, &stubChatUsecase{}, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
	assert.Contains(t, doc["paths"], "/chat")
}

func TestChat_PassesRequestIDToPipeline(t *testing.T) {
	stub := &stubChatUsecase{events: []usecase.ChatEvent{
		{Kind: usecase.ChatEventCitations, Citations: domain.CitationMap{}},
	}}
	e := newTestServer(t, stub, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRequestID, "req-7")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-7", stub.requestID)
	assert.Equal(t, "req-7", rec.Header().Get(echo.HeaderXRequestID))

	rec = postChat(e, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, stub.requestID)
	assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), stub.requestID)
}
