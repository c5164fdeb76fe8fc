package event

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilstats/veil-analytics/internal/codec"
	"go.uber.org/zap"
)

func collectBody(t *testing.T, token, eventType string) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"originToken": token,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"page":        "/docs",
		"eventType":   eventType,
	})
	require.NoError(t, err)
	return string(body)
}

func TestCollect_Accepted(t *testing.T) {
	o := testOrigin()
	repo := &fakeRepo{}
	h := NewHandler(NewService(repo, &fakeAuth{origin: o}, codec.NewJSONCodec(), &recordingNotifier{}, zap.NewNop()), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/collect", strings.NewReader(collectBody(t, o.Token, TypePageview)))
	rec := httptest.NewRecorder()
	h.Collect(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["accepted"])
	assert.Equal(t, true, resp["encrypted"])
	assert.Equal(t, true, resp["realtime"])
	assert.NotEmpty(t, resp["eventId"])
}

func TestCollect_UnknownToken(t *testing.T) {
	repo := &fakeRepo{}
	notifier := &recordingNotifier{}
	h := NewHandler(NewService(repo, &fakeAuth{origin: testOrigin()}, codec.NewJSONCodec(), notifier, zap.NewNop()), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/collect", strings.NewReader(collectBody(t, "veil_bogus", TypePageview)))
	rec := httptest.NewRecorder()
	h.Collect(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, repo.events)
	assert.Zero(t, notifier.count())
}

func TestCollect_MalformedBody(t *testing.T) {
	o := testOrigin()
	h := NewHandler(NewService(&fakeRepo{}, &fakeAuth{origin: o}, codec.NewJSONCodec(), &recordingNotifier{}, zap.NewNop()), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/collect", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Collect(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCollect_BadTimestamp(t *testing.T) {
	o := testOrigin()
	h := NewHandler(NewService(&fakeRepo{}, &fakeAuth{origin: o}, codec.NewJSONCodec(), &recordingNotifier{}, zap.NewNop()), zap.NewNop())

	body := `{"originToken":"` + o.Token + `","timestamp":"yesterday","page":"/","eventType":"pageview"}`
	req := httptest.NewRequest(http.MethodPost, "/api/collect", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Collect(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCollect_InvalidEventType(t *testing.T) {
	o := testOrigin()
	h := NewHandler(NewService(&fakeRepo{}, &fakeAuth{origin: o}, codec.NewJSONCodec(), &recordingNotifier{}, zap.NewNop()), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/collect", strings.NewReader(collectBody(t, o.Token, "telemetry")))
	rec := httptest.NewRecorder()
	h.Collect(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCollect_DefaultValueIsOne(t *testing.T) {
	o := testOrigin()
	repo := &fakeRepo{}
	cdc := codec.NewJSONCodec()
	h := NewHandler(NewService(repo, &fakeAuth{origin: o}, cdc, &recordingNotifier{}, zap.NewNop()), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/collect", strings.NewReader(collectBody(t, o.Token, TypeSession)))
	rec := httptest.NewRecorder()
	h.Collect(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, repo.events, 1)
	assert.Equal(t, 1.0, cdc.Decode(repo.events[0].ValueBlob))
}
