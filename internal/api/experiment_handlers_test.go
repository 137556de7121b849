package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ewhitford/labsite/internal/experiments"
	"github.com/ewhitford/labsite/internal/intake"
	"github.com/ewhitford/labsite/internal/models"
)

type fakeStore struct {
	sessions  map[string]*models.ExperimentSession
	responses []*models.ExperimentResponse
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string]*models.ExperimentSession{}}
}

func (s *fakeStore) UpsertSession(_ context.Context, tokenHash string) (*models.ExperimentSession, error) {
	if sess, ok := s.sessions[tokenHash]; ok {
		return sess, nil
	}
	sess := &models.ExperimentSession{
		ID:               int64(len(s.sessions) + 1),
		SessionTokenHash: tokenHash,
		CreatedAt:        time.Now(),
		LastSeenAt:       time.Now(),
	}
	s.sessions[tokenHash] = sess
	return sess, nil
}

func (s *fakeStore) InsertResponse(_ context.Context, r *models.ExperimentResponse) (int64, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	for _, existing := range s.responses {
		if existing.SessionID == r.SessionID && existing.ExperimentSlug == r.ExperimentSlug {
			return 0, experiments.ErrDuplicateResponse
		}
	}
	r.ID = int64(len(s.responses) + 1)
	s.responses = append(s.responses, r)
	return r.ID, nil
}

func (s *fakeStore) ListResponses(_ context.Context, experimentSlug string) ([]*models.ExperimentResponse, error) {
	var out []*models.ExperimentResponse
	for _, r := range s.responses {
		if r.ExperimentSlug == experimentSlug {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestMux(t *testing.T, store experiments.Store) *http.ServeMux {
	t.Helper()
	logg := zap.NewNop().Sugar()
	router := NewRouter(RouterConfig{
		Dictator:            experiments.NewService(store, experiments.DictatorTask(), "dictator-game-v1", logg),
		Temporal:            experiments.NewService(store, experiments.TemporalTask(), "temporal-discounting-v1", logg),
		DictatorExportToken: "dictator-secret",
		TemporalExportToken: "temporal-secret",
		Reader:              &intake.Reader{RepoRoot: t.TempDir()},
		Orchestrator: intake.NewOrchestrator(
			&intake.Manager{RepoRoot: t.TempDir()}, "main", "", logg),
		Log: logg,
	})
	mux := http.NewServeMux()
	router.Register(mux)
	return mux
}

func dictatorBody() string {
	return `{
		"amountGiven": 35,
		"ageRange": "25-34",
		"genderIdentity": "Man",
		"countryOrRegion": "Ireland",
		"educationLevel": "Bachelor's degree",
		"employmentStatus": "Employed full-time",
		"incomeRange": "$50,000-$74,999"
	}`
}

func TestSubmitCreatesResponseAndSetsCookie(t *testing.T) {
	mux := newTestMux(t, newFakeStore())

	req := httptest.NewRequest(http.MethodPost, "/api/experiments/dictator-game", strings.NewReader(dictatorBody()))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var body experiments.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, experiments.StatusOK, body.Status)
	assert.Equal(t, int64(1), body.ID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, "dg_session", cookie.Name)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure, "secure only in production")
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 365*24*3600, cookie.MaxAge)
}

func TestSubmitReusesExistingCookie(t *testing.T) {
	store := newFakeStore()
	mux := newTestMux(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/experiments/dictator-game", strings.NewReader(dictatorBody()))
	req.AddCookie(&http.Cookie{Name: "dg_session", Value: "existing-token"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "no Set-Cookie when a session cookie already exists")

	hash := experiments.HashSessionToken("existing-token")
	assert.Contains(t, store.sessions, hash)
}

func TestSubmitDuplicateConflict(t *testing.T) {
	mux := newTestMux(t, newFakeStore())

	first := httptest.NewRequest(http.MethodPost, "/api/experiments/dictator-game", strings.NewReader(dictatorBody()))
	first.AddCookie(&http.Cookie{Name: "dg_session", Value: "tok"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, first)
	require.Equal(t, http.StatusCreated, rec.Code)

	second := httptest.NewRequest(http.MethodPost, "/api/experiments/dictator-game", strings.NewReader(dictatorBody()))
	second.AddCookie(&http.Cookie{Name: "dg_session", Value: "tok"})
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, second)

	require.Equal(t, http.StatusConflict, rec.Code)
	var body experiments.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, experiments.StatusDuplicate, body.Status)
	assert.Empty(t, rec.Result().Cookies())
}

func TestSubmitMalformedJSON(t *testing.T) {
	mux := newTestMux(t, newFakeStore())

	req := httptest.NewRequest(http.MethodPost, "/api/experiments/dictator-game", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"Invalid request body."}`, rec.Body.String())
	assert.Empty(t, rec.Result().Cookies())
}

func TestSubmitValidationErrorSetsNoCookie(t *testing.T) {
	mux := newTestMux(t, newFakeStore())

	req := httptest.NewRequest(http.MethodPost, "/api/experiments/dictator-game", strings.NewReader(`{"amountGiven": 33}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body experiments.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, experiments.StatusError, body.Status)
	assert.Equal(t, experiments.CodeValidation, body.Code)
	assert.Empty(t, rec.Result().Cookies(), "failed first attempt must not lock in a token")
}

func TestSubmitMethodNotAllowed(t *testing.T) {
	mux := newTestMux(t, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/api/experiments/dictator-game", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTemporalSubmitUsesOwnCookie(t *testing.T) {
	mux := newTestMux(t, newFakeStore())

	body := `{
		"donationTiming": "sooner",
		"ageRange": "45-54",
		"genderIdentity": "Prefer not to say",
		"countryOrRegion": "New Zealand",
		"educationLevel": "Other",
		"employmentStatus": "Retired",
		"incomeRange": "$150,000+"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/experiments/temporal-discounting", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "td_session", cookies[0].Name)
}

func TestExportRequiresToken(t *testing.T) {
	mux := newTestMux(t, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/api/experiments/dictator-game/export", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"Unauthorized."}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/experiments/dictator-game/export", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExportWithBearerToken(t *testing.T) {
	store := newFakeStore()
	mux := newTestMux(t, store)

	submit := httptest.NewRequest(http.MethodPost, "/api/experiments/dictator-game", strings.NewReader(dictatorBody()))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, submit)
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/experiments/dictator-game/export", nil)
	req.Header.Set("Authorization", "Bearer dictator-secret")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "dictator-game-responses.csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "id,experiment_slug,amount_given,amount_kept"))
	assert.Contains(t, rec.Body.String(), "Ireland")
}

func TestExportWithQueryToken(t *testing.T) {
	mux := newTestMux(t, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/api/experiments/temporal-discounting/export?token=temporal-secret", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	mux := newTestMux(t, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestContentRoutesHiddenByDefault(t *testing.T) {
	mux := newTestMux(t, newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/api/local-content/options?type=blog", nil)
	req.RemoteAddr = "127.0.0.1:41000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())
}
