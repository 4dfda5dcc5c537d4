package site

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/construo/construo-server/internal/models"
)

type stubLoader struct {
	agg        *models.Aggregate
	loadErr    error
	refreshed  int
	loaded     int
	subscriber func(*models.Aggregate)
}

func (s *stubLoader) LoadAll(context.Context) (*models.Aggregate, error) {
	s.loaded++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.agg, nil
}

func (s *stubLoader) RefreshAll(context.Context) (*models.Aggregate, error) {
	s.refreshed++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.agg, nil
}

func (s *stubLoader) Subscribe(fn func(*models.Aggregate)) func() {
	s.subscriber = fn
	return func() { s.subscriber = nil }
}

type stubWriter struct {
	stored *models.Registration
	err    error
}

func (s *stubWriter) CreateRegistration(_ context.Context, reg *models.Registration) (*models.Registration, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.stored = reg
	return reg, nil
}

func testAggregate() *models.Aggregate {
	a := &models.Aggregate{
		SiteConfig: &models.SiteConfig{
			Key:  models.SiteConfigKey,
			Hero: json.RawMessage(`{"title":"CONSTRUO 2026"}`),
		},
		Events: []models.Event{{ID: "e1", Title: "Robotics"}},
	}
	a.Normalize()
	return a
}

func TestSiteEndpoint(t *testing.T) {
	t.Parallel()

	loader := &stubLoader{agg: testAggregate()}
	srv := NewServer(loader, &stubWriter{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/site", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var view View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.JSONEq(t, `{"title":"CONSTRUO 2026"}`, string(view.Hero))
	require.Len(t, view.Events, 1)
	assert.Equal(t, "Robotics", view.Events[0].Title)
	assert.NotNil(t, view.Timeline, "empty sections serialize as arrays")
	assert.Equal(t, 0, loader.refreshed)
}

func TestSectionEndpoint(t *testing.T) {
	t.Parallel()

	loader := &stubLoader{agg: testAggregate()}
	srv := NewServer(loader, &stubWriter{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var events []models.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "e1", events[0].ID)
}

func TestRefreshParamForcesRefresh(t *testing.T) {
	t.Parallel()

	loader := &stubLoader{agg: testAggregate()}
	srv := NewServer(loader, &stubWriter{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/site?refresh=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, loader.refreshed)
	assert.Equal(t, 0, loader.loaded)
}

func TestLoadFailureFallsBackToLastGoodPayload(t *testing.T) {
	t.Parallel()

	loader := &stubLoader{agg: testAggregate()}
	srv := NewServer(loader, &stubWriter{})

	// The server learns the last good payload through its subscription.
	require.NotNil(t, loader.subscriber)
	loader.subscriber(testAggregate())
	loader.loadErr = errors.New("store unavailable")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/site", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var view View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Len(t, view.Events, 1)
}

func TestLoadFailureWithoutSnapshot(t *testing.T) {
	t.Parallel()

	loader := &stubLoader{loadErr: errors.New("store unavailable")}
	srv := NewServer(loader, &stubWriter{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/site", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCreateRegistration(t *testing.T) {
	t.Parallel()

	writer := &stubWriter{}
	srv := NewServer(&stubLoader{agg: testAggregate()}, writer)

	body := `{"fields":[{"label":"Name","value":"Asha Rao"}],"events":["Robotics"]}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/registrations", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, writer.stored)
	assert.NotEmpty(t, writer.stored.ID)
	assert.Equal(t, "submitted", writer.stored.Status)
	assert.Equal(t, []string{"Robotics"}, writer.stored.Events)
	require.Len(t, writer.stored.Fields, 1)
	assert.Equal(t, "Asha Rao", writer.stored.Fields[0].Value)
}

func TestCreateRegistrationValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"malformed body", `{nope`},
		{"no fields", `{"fields":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := NewServer(&stubLoader{agg: testAggregate()}, &stubWriter{})

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/registrations", bytes.NewBufferString(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateRegistrationStoreFailure(t *testing.T) {
	t.Parallel()

	writer := &stubWriter{err: errors.New("row-level security policy violation")}
	srv := NewServer(&stubLoader{agg: testAggregate()}, writer)

	body := `{"fields":[{"label":"Name","value":"Asha Rao"}]}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/registrations", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "row-level security")
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(&stubLoader{agg: testAggregate()}, &stubWriter{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
