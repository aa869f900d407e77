package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdnply/matchsync/pkg/model"
)

var testCtx = context.TODO()

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(`[{"id": "m1"}, {"id": "m2"}]`))
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL})

	records, err := client.Fetch(testCtx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "m1", records[0].RawID)
}

func TestClient_FetchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL})

	_, err := client.Fetch(testCtx)
	require.Error(t, err)
	assert.Equal(t, model.ErrFeedUnavailable, errors.Cause(err))
}

func TestClient_FetchInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html>not a feed</html>`))
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL})

	_, err := client.Fetch(testCtx)
	require.Error(t, err)
	assert.Equal(t, model.ErrFeedUnavailable, errors.Cause(err))
}

func TestClient_FetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := NewClient(Config{URL: srv.URL})

	_, err := client.Fetch(testCtx)
	require.Error(t, err)
	assert.Equal(t, model.ErrFeedUnavailable, errors.Cause(err))
}

func TestClient_FetchEmptyDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL})

	records, err := client.Fetch(testCtx)
	require.NoError(t, err, "an empty document is not a fetch failure")
	assert.Empty(t, records)
}
