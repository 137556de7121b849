package experiments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ewhitford/labsite/internal/models"
)

type stubStore struct {
	sessions  map[string]*models.ExperimentSession
	responses []*models.ExperimentResponse
	nextID    int64

	upsertErr error
	insertErr error
	listErr   error
}

func newStubStore() *stubStore {
	return &stubStore{sessions: map[string]*models.ExperimentSession{}}
}

func (s *stubStore) UpsertSession(_ context.Context, tokenHash string) (*models.ExperimentSession, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	if existing, ok := s.sessions[tokenHash]; ok {
		existing.LastSeenAt = time.Now()
		return existing, nil
	}
	session := &models.ExperimentSession{
		ID:               int64(len(s.sessions) + 1),
		SessionTokenHash: tokenHash,
		CreatedAt:        time.Now(),
		LastSeenAt:       time.Now(),
	}
	s.sessions[tokenHash] = session
	return session, nil
}

func (s *stubStore) InsertResponse(_ context.Context, r *models.ExperimentResponse) (int64, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	for _, existing := range s.responses {
		if existing.SessionID == r.SessionID && existing.ExperimentSlug == r.ExperimentSlug {
			return 0, ErrDuplicateResponse
		}
	}
	s.nextID++
	r.ID = s.nextID
	r.CreatedAt = time.Now()
	s.responses = append(s.responses, r)
	return r.ID, nil
}

func (s *stubStore) ListResponses(_ context.Context, experimentSlug string) ([]*models.ExperimentResponse, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*models.ExperimentResponse
	for i := len(s.responses) - 1; i >= 0; i-- {
		if s.responses[i].ExperimentSlug == experimentSlug {
			out = append(out, s.responses[i])
		}
	}
	return out, nil
}

func validDictatorPayload(t *testing.T, overrides map[string]any) []byte {
	t.Helper()
	payload := map[string]any{
		"amountGiven":      40,
		"ageRange":         "25-34",
		"genderIdentity":   "Woman",
		"countryOrRegion":  "United Kingdom",
		"educationLevel":   "Master's degree",
		"employmentStatus": "Student",
		"incomeRange":      "Under $25,000",
	}
	for k, v := range overrides {
		if v == nil {
			delete(payload, k)
			continue
		}
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw
}

func newDictatorService(store Store) *Service {
	return NewService(store, DictatorTask(), "dictator-game-v1", zap.NewNop().Sugar())
}

func newTemporalService(store Store) *Service {
	return NewService(store, TemporalTask(), "temporal-discounting-v1", zap.NewNop().Sugar())
}

func TestSubmitRecordsDictatorResponse(t *testing.T) {
	store := newStubStore()
	svc := newDictatorService(store)

	result := svc.Submit(context.Background(), NewSessionToken(), validDictatorPayload(t, nil))

	require.Equal(t, StatusOK, result.Status)
	assert.Equal(t, int64(1), result.ID)
	assert.Empty(t, result.Code)

	require.Len(t, store.responses, 1)
	saved := store.responses[0]
	require.NotNil(t, saved.AmountGiven)
	require.NotNil(t, saved.AmountKept)
	assert.Equal(t, 40, *saved.AmountGiven)
	assert.Equal(t, 60, *saved.AmountKept)
	assert.Equal(t, "dictator-game-v1", saved.ExperimentSlug)
}

func TestSubmitRecordsTemporalResponse(t *testing.T) {
	store := newStubStore()
	svc := newTemporalService(store)

	payload := validDictatorPayload(t, map[string]any{
		"amountGiven":    nil,
		"donationTiming": "later",
	})
	result := svc.Submit(context.Background(), NewSessionToken(), payload)

	require.Equal(t, StatusOK, result.Status)
	require.Len(t, store.responses, 1)
	require.NotNil(t, store.responses[0].DonationTiming)
	assert.Equal(t, "later", *store.responses[0].DonationTiming)
	assert.Nil(t, store.responses[0].AmountGiven)
}

func TestSubmitSecondAttemptIsDuplicate(t *testing.T) {
	store := newStubStore()
	svc := newDictatorService(store)
	token := NewSessionToken()

	first := svc.Submit(context.Background(), token, validDictatorPayload(t, nil))
	require.Equal(t, StatusOK, first.Status)

	second := svc.Submit(context.Background(), token, validDictatorPayload(t, map[string]any{"amountGiven": 80}))
	assert.Equal(t, StatusDuplicate, second.Status)
	assert.NotEmpty(t, second.Message)
	assert.Len(t, store.responses, 1)
}

func TestSubmitSameSessionDifferentExperiments(t *testing.T) {
	store := newStubStore()
	token := NewSessionToken()

	dictator := newDictatorService(store)
	temporal := newTemporalService(store)

	first := dictator.Submit(context.Background(), token, validDictatorPayload(t, nil))
	require.Equal(t, StatusOK, first.Status)

	payload := validDictatorPayload(t, map[string]any{
		"amountGiven":    nil,
		"donationTiming": "sooner",
	})
	second := temporal.Submit(context.Background(), token, payload)
	assert.Equal(t, StatusOK, second.Status)
	assert.Len(t, store.responses, 2)
}

func TestSubmitValidationFailures(t *testing.T) {
	cases := map[string]map[string]any{
		"missing amount":        {"amountGiven": nil},
		"amount above cap":      {"amountGiven": 105},
		"amount negative":       {"amountGiven": -5},
		"amount off step":       {"amountGiven": 43},
		"amount fractional":     {"amountGiven": 42.5},
		"unknown field":         {"surprise": true},
		"bad age range":         {"ageRange": "17-20"},
		"bad gender":            {"genderIdentity": "other"},
		"missing country":       {"countryOrRegion": nil},
		"country too short":     {"countryOrRegion": "A"},
		"honeypot filled":       {"honeypot": "buy now"},
		"bad browser language":  {"browserLanguage": "x"},
		"timezone out of range": {"timezoneOffsetMinutes": 900},
		"wrong amount type":     {"amountGiven": "forty"},
	}

	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			store := newStubStore()
			svc := newDictatorService(store)

			result := svc.Submit(context.Background(), NewSessionToken(), validDictatorPayload(t, overrides))

			assert.Equal(t, StatusError, result.Status)
			assert.Equal(t, CodeValidation, result.Code)
			assert.Equal(t, "Please complete all required fields using the allowed values.", result.Message)
			assert.Empty(t, store.responses, "nothing should be persisted")
		})
	}
}

func TestSubmitAcceptsOptionalFields(t *testing.T) {
	store := newStubStore()
	svc := newDictatorService(store)

	payload := validDictatorPayload(t, map[string]any{
		"browserLanguage":       "en-GB",
		"timezoneOffsetMinutes": -60,
		"honeypot":              "",
	})
	result := svc.Submit(context.Background(), NewSessionToken(), payload)

	require.Equal(t, StatusOK, result.Status)
	saved := store.responses[0]
	require.NotNil(t, saved.BrowserLanguage)
	assert.Equal(t, "en-GB", *saved.BrowserLanguage)
	require.NotNil(t, saved.TimezoneOffsetMinutes)
	assert.Equal(t, -60, *saved.TimezoneOffsetMinutes)
}

func TestSubmitTemporalRejectsBadTiming(t *testing.T) {
	store := newStubStore()
	svc := newTemporalService(store)

	payload := validDictatorPayload(t, map[string]any{
		"amountGiven":    nil,
		"donationTiming": "eventually",
	})
	result := svc.Submit(context.Background(), NewSessionToken(), payload)

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, CodeValidation, result.Code)
}

func TestSubmitStoreFailuresAreServerErrors(t *testing.T) {
	t.Run("session upsert fails", func(t *testing.T) {
		store := newStubStore()
		store.upsertErr = errors.New("disk full")
		svc := newDictatorService(store)

		result := svc.Submit(context.Background(), NewSessionToken(), validDictatorPayload(t, nil))

		assert.Equal(t, StatusError, result.Status)
		assert.Equal(t, CodeServer, result.Code)
	})

	t.Run("insert fails", func(t *testing.T) {
		store := newStubStore()
		store.insertErr = errors.New("disk full")
		svc := newDictatorService(store)

		result := svc.Submit(context.Background(), NewSessionToken(), validDictatorPayload(t, nil))

		assert.Equal(t, StatusError, result.Status)
		assert.Equal(t, CodeServer, result.Code)
	})
}

func TestHashSessionTokenIsStableAndOpaque(t *testing.T) {
	token := NewSessionToken()
	hash := HashSessionToken(token)

	assert.Len(t, hash, 64)
	assert.NotContains(t, hash, token)
	assert.Equal(t, hash, HashSessionToken(token))
	assert.NotEqual(t, hash, HashSessionToken(NewSessionToken()))
}
