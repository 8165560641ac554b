package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

const groupsFixture = `{"lockbit3": [], "akira": [], "play": []}`

// The posts element uses numeric string keys, matching the live API.
const groupFixture = `[
  {"name": "akira", "captcha": false},
  {
    "0": {
      "post_title": "Acme Corp",
      "discovered": "2025-06-10 08:15:30.123456",
      "description": "40GB of finance documents",
      "screen": "screenshots/akira/acme.png",
      "link": "",
      "magnet": ""
    },
    "1": {
      "post_title": "Globex Industries",
      "discovered": "2025-07-01 12:00:00.000000",
      "description": "",
      "screen": "",
      "link": "http://leaksite.onion/globex",
      "magnet": ""
    },
    "2": {
      "post_title": "Old Victim Ltd",
      "discovered": "2024-01-05 09:30:00.000000",
      "description": "outside the window",
      "screen": "",
      "link": "",
      "magnet": ""
    },
    "3": {
      "post_title": "",
      "discovered": "2025-06-15 10:00:00.000000",
      "description": "missing title, must be skipped",
      "screen": "",
      "link": "",
      "magnet": ""
    }
  }
]`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/groups", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(groupsFixture))
	})
	mux.HandleFunc("/api/group/akira", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(groupFixture))
	})
	mux.HandleFunc("/api/group/ghostgroup", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRansomLookClient_ListGroups(t *testing.T) {
	server := newTestServer(t)
	client := NewRansomLookClient(server.URL)

	groups, err := client.ListGroups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"akira", "lockbit3", "play"}, groups)
}

func TestRansomLookClient_GroupExists(t *testing.T) {
	server := newTestServer(t)
	client := NewRansomLookClient(server.URL)

	exists, err := client.GroupExists(context.Background(), "AKIRA")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.GroupExists(context.Background(), "nosuchgroup")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRansomLookClient_FetchPostings(t *testing.T) {
	server := newTestServer(t)
	client := NewRansomLookClient(server.URL)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	postings, err := client.FetchPostings(context.Background(), "akira", start, nil)
	require.NoError(t, err)

	// Old Victim Ltd is before the window; the empty-title post is dropped.
	require.Len(t, postings, 2)

	byName := map[string]models.Posting{}
	for _, p := range postings {
		byName[p.VictimRaw] = p
	}

	acme, ok := byName["Acme Corp"]
	require.True(t, ok)
	assert.Equal(t, "akira", acme.GroupName)
	assert.Equal(t, time.Date(2025, 6, 10, 8, 15, 30, 123456000, time.UTC), acme.PostDate)
	require.NotNil(t, acme.Description)
	assert.Equal(t, "40GB of finance documents", *acme.Description)
	require.NotNil(t, acme.ScreenshotURL)
	assert.Equal(t, server.URL+"/screenshots/akira/acme.png", *acme.ScreenshotURL)
	assert.Nil(t, acme.DataLink)

	globex, ok := byName["Globex Industries"]
	require.True(t, ok)
	assert.Nil(t, globex.Description)
	assert.Nil(t, globex.ScreenshotURL)
	require.NotNil(t, globex.DataLink)
	assert.Equal(t, "http://leaksite.onion/globex", *globex.DataLink)
}

func TestRansomLookClient_FetchPostings_EndDate(t *testing.T) {
	server := newTestServer(t)
	client := NewRansomLookClient(server.URL)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	postings, err := client.FetchPostings(context.Background(), "akira", start, &end)
	require.NoError(t, err)

	// Globex was posted in July, past the end date.
	require.Len(t, postings, 1)
	assert.Equal(t, "Acme Corp", postings[0].VictimRaw)
}

func TestRansomLookClient_FetchPostings_UnknownGroup(t *testing.T) {
	server := newTestServer(t)
	client := NewRansomLookClient(server.URL)

	postings, err := client.FetchPostings(context.Background(), "ghostgroup", time.Time{}, nil)
	require.NoError(t, err)
	assert.Empty(t, postings)
}

func TestRansomLookClient_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	client := NewRansomLookClient(server.URL)

	_, err := client.ListGroups(context.Background())
	var upstream *models.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "ransomlook", upstream.Service)
	assert.Equal(t, http.StatusInternalServerError, upstream.StatusCode)
}
