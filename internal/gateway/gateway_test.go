package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/construo/construo-server/internal/models"
)

// readyClient returns a client marked available against srv.
func readyClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c := New(srv.URL, "test-key")
	require.NoError(t, c.WaitReady(context.Background()))
	return c
}

func TestWaitReadyUnreachable(t *testing.T) {
	t.Parallel()

	c := New("", "")
	err := c.WaitReady(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, c.Available())
}

func TestFetchBeforeReadyIsUnavailable(t *testing.T) {
	t.Parallel()

	c := New("http://localhost:1", "")
	_, err := c.Events(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEventsAppliesFilterAndOrder(t *testing.T) {
	t.Parallel()

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		assert.Equal(t, "/rest/v1/events", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("apikey"))
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode([]models.Event{{ID: "1", Title: "Robotics"}})
	}))
	defer srv.Close()

	c := readyClient(t, srv)
	events, err := c.Events(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Robotics", events[0].Title)
	assert.Contains(t, gotQuery, "status=eq.active")
	assert.Contains(t, gotQuery, "order=position.asc")
}

func TestSiteConfigByFixedKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		assert.Equal(t, "/rest/v1/site_config", r.URL.Path)
		assert.Contains(t, r.URL.RawQuery, "key=eq.main")
		_ = json.NewEncoder(w).Encode([]models.SiteConfig{{Key: "main"}})
	}))
	defer srv.Close()

	c := readyClient(t, srv)
	cfg, err := c.SiteConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Key)
}

func TestSiteConfigMissingRow(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := readyClient(t, srv)
	_, err := c.SiteConfig(context.Background())
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, http.StatusNotFound, storeErr.StatusCode)
}

func TestStoreErrorCarriesMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"permission denied for table events"}`))
	}))
	defer srv.Close()

	c := readyClient(t, srv)
	_, err := c.Events(context.Background())
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, http.StatusForbidden, storeErr.StatusCode)
	assert.Contains(t, storeErr.Message, "permission denied")
}

func TestCreateRegistrationReturnsStoredRow(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		var reg models.Registration
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reg))
		reg.Status = "confirmed"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]models.Registration{reg})
	}))
	defer srv.Close()

	c := readyClient(t, srv)
	stored, err := c.CreateRegistration(context.Background(), &models.Registration{
		ID:     "r1",
		Fields: []models.FormField{{Label: "Full Name", Value: "Asha Rao"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "confirmed", stored.Status)
	assert.Equal(t, "r1", stored.ID)
}

func TestUpdateReturnsUpdatedRow(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		assert.Contains(t, r.URL.RawQuery, "id=eq.e1")

		var partial map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&partial))
		assert.Equal(t, "archived", partial["status"])

		_ = json.NewEncoder(w).Encode([]models.Event{{ID: "e1", Title: "Robotics", Status: "archived"}})
	}))
	defer srv.Close()

	c := readyClient(t, srv)
	var updated models.Event
	err := c.Update(context.Background(), models.CollectionEvents, "id", "e1",
		map[string]string{"status": "archived"}, &updated)
	require.NoError(t, err)
	assert.Equal(t, "archived", updated.Status)
	assert.Equal(t, "Robotics", updated.Title)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Contains(t, r.URL.RawQuery, "id=eq.42")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := readyClient(t, srv)
	assert.NoError(t, c.Delete(context.Background(), models.CollectionEvents, "id", "42"))
}
