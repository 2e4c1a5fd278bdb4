package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	aierrors "github.com/hrygo/smartcache/internal/errors"
	"github.com/hrygo/smartcache/internal/profile"
	"github.com/hrygo/smartcache/plugin/ai/metrics"
	"github.com/hrygo/smartcache/plugin/ai/smartcache"
	"github.com/hrygo/smartcache/store"
)

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetAnswer(ctx context.Context, userID, question string, returnDebug bool) (*smartcache.Answer, error) {
	args := m.Called(ctx, userID, question, returnDebug)
	answer, _ := args.Get(0).(*smartcache.Answer)
	return answer, args.Error(1)
}

func (m *MockCacheService) StoreInteractionAutoCat(ctx context.Context, userID, query, answer string) (*store.Interaction, error) {
	args := m.Called(ctx, userID, query, answer)
	interaction, _ := args.Get(0).(*store.Interaction)
	return interaction, args.Error(1)
}

func (m *MockCacheService) UserFeedback(ctx context.Context, userID, query string, helpful bool) error {
	args := m.Called(ctx, userID, query, helpful)
	return args.Error(0)
}

func (m *MockCacheService) StatsBetween(ctx context.Context, tr metrics.TimeRange) (*smartcache.Stats, error) {
	args := m.Called(ctx, tr)
	stats, _ := args.Get(0).(*smartcache.Stats)
	return stats, args.Error(1)
}

func newTestEcho(cache CacheService) *echo.Echo {
	e := echo.New()
	NewAPIV1Service(&profile.Profile{Mode: "dev"}, cache, nil).RegisterRoutes(e)
	return e
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := doJSON(newTestEcho(new(MockCacheService)), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetAnswer(t *testing.T) {
	cache := new(MockCacheService)
	cache.On("GetAnswer", mock.Anything, "alice", "What is Go?", true).
		Return(&smartcache.Answer{Text: "A language.", Source: smartcache.SourceColdLLM, Debug: &smartcache.Trace{RequestID: "r1"}}, nil)

	rec := doJSON(newTestEcho(cache), http.MethodPost, "/api/v1/answer", `{"user_id":"alice","question":"What is Go?","debug":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "A language.", body["answer"])
	assert.Equal(t, "cold_llm", body["source"])
	assert.NotNil(t, body["debug"])
	cache.AssertExpectations(t)
}

func TestGetAnswer_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"InvalidArgument", aierrors.InvalidArgument("question is required"), http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"LLMFailed", aierrors.LLMCallFailed("LLM call failed", errors.New("boom")), http.StatusBadGateway, "LLM_CALL_FAILED"},
		{"Timeout", aierrors.Timeout("LLM call timed out", nil), http.StatusGatewayTimeout, "TIMEOUT"},
		{"Unavailable", aierrors.ServiceUnavailable("down", nil), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"Canceled", aierrors.ContextCanceled(context.Canceled), statusClientClosedRequest, "CONTEXT_CANCELED"},
		{"Unknown", errors.New("unexpected"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := new(MockCacheService)
			cache.On("GetAnswer", mock.Anything, "alice", "q", false).Return(nil, tt.err)

			rec := doJSON(newTestEcho(cache), http.MethodPost, "/api/v1/answer", `{"user_id":"alice","question":"q"}`)
			assert.Equal(t, tt.status, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestGetAnswer_BadBody(t *testing.T) {
	rec := doJSON(newTestEcho(new(MockCacheService)), http.MethodPost, "/api/v1/answer", `{"user_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateInteraction(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		cache := new(MockCacheService)
		cache.On("StoreInteractionAutoCat", mock.Anything, "alice", "q", "a").
			Return(&store.Interaction{ID: "ix-1", UserID: "alice", Query: "q", Answer: "a", Category: "work", CreatedTs: 42}, nil)

		rec := doJSON(newTestEcho(cache), http.MethodPost, "/api/v1/interactions", `{"user_id":"alice","query":"q","answer":"a"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var body CreateInteractionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ix-1", body.Interaction.ID)
		assert.Equal(t, "work", body.Interaction.Category)
		assert.Empty(t, body.Warning)
	})

	t.Run("CachedButNotIndexed", func(t *testing.T) {
		cache := new(MockCacheService)
		cache.On("StoreInteractionAutoCat", mock.Anything, "alice", "q", "a").
			Return(&store.Interaction{UserID: "alice", Query: "q", Answer: "a"}, aierrors.ServiceUnavailable("failed to index interaction", errors.New("disk full")))

		rec := doJSON(newTestEcho(cache), http.MethodPost, "/api/v1/interactions", `{"user_id":"alice","query":"q","answer":"a"}`)
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), "warning")
	})

	t.Run("Invalid", func(t *testing.T) {
		cache := new(MockCacheService)
		cache.On("StoreInteractionAutoCat", mock.Anything, "", "q", "a").Return(nil, aierrors.InvalidArgument("user id is required"))

		rec := doJSON(newTestEcho(cache), http.MethodPost, "/api/v1/interactions", `{"query":"q","answer":"a"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCreateFeedback(t *testing.T) {
	cache := new(MockCacheService)
	cache.On("UserFeedback", mock.Anything, "alice", "q", false).Return(nil).Once()
	e := newTestEcho(cache)

	rec := doJSON(e, http.MethodPost, "/api/v1/feedback", `{"user_id":"alice","query":"q","helpful":false}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/v1/feedback", `{"user_id":"alice","query":"q"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	cache.AssertExpectations(t)
}

func TestGetStats(t *testing.T) {
	cache := new(MockCacheService)
	cache.On("StatsBetween", mock.Anything, metrics.TimeRange{}).
		Return(&smartcache.Stats{Metrics: &metrics.AnswerMetrics{RequestCount: 3}, CachedEntries: 2}, nil)
	cache.On("StatsBetween", mock.Anything, mock.MatchedBy(func(tr metrics.TimeRange) bool {
		return !tr.Start.IsZero() && tr.End.Sub(tr.Start).Hours() == 1
	})).Return(&smartcache.Stats{Metrics: &metrics.AnswerMetrics{RequestCount: 1}}, nil)
	e := newTestEcho(cache)

	rec := doJSON(e, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cached_entries":2`)

	rec = doJSON(e, http.MethodGet, "/api/v1/stats?range=1h", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"request_count":1`)

	rec = doJSON(e, http.MethodGet, "/api/v1/stats?range=forever", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(aierrors.ErrCodeConfiguration))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(aierrors.ErrCodeInvalidArgument))
}
