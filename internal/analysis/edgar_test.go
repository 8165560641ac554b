package analysis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

const submissionsFixture = `{
  "cik": "0000320193",
  "name": "ACME CORP",
  "filings": {
    "recent": {
      "accessionNumber": ["0000320193-25-000101", "0000320193-25-000088", "0000320193-24-000012"],
      "filingDate": ["2025-07-15", "2025-06-20", "2024-02-01"],
      "form": ["10-Q", "8-K", "8-K"],
      "items": ["", "1.05,9.01", "1.05"],
      "primaryDocument": ["q.htm", "incident8k.htm", "old8k.htm"]
    }
  }
}`

func newEdgarServer(t *testing.T, body string, status int) *EdgarClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return NewEdgarClient(server.URL)
}

func TestEdgarClient_CheckFilings_FindsInWindow(t *testing.T) {
	client := newEdgarServer(t, submissionsFixture, http.StatusOK)

	postDate := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	result, err := client.CheckFilings(context.Background(), "0000320193", postDate)
	require.NoError(t, err)

	assert.Equal(t, models.TriYes, result.HasFiling)
	require.NotNil(t, result.FilingDate)
	assert.Equal(t, "2025-06-20", result.FilingDate.Format("2006-01-02"))
	require.NotNil(t, result.FilingItem)
	assert.Equal(t, "1.05", *result.FilingItem)
	require.NotNil(t, result.DisclosureDays)
	assert.Equal(t, 10, *result.DisclosureDays)
	require.NotNil(t, result.FilingURL)
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/data/320193/000032019325000088/incident8k.htm", *result.FilingURL)
	require.NotNil(t, result.FilingSource)
	assert.Equal(t, "edgar", *result.FilingSource)
}

func TestEdgarClient_CheckFilings_NothingInWindow(t *testing.T) {
	client := newEdgarServer(t, submissionsFixture, http.StatusOK)

	// The only 8-Ks near this date are over a year away.
	postDate := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	result, err := client.CheckFilings(context.Background(), "0000320193", postDate)
	require.NoError(t, err)
	assert.Equal(t, models.TriNo, result.HasFiling)
	assert.Nil(t, result.FilingDate)
}

func TestEdgarClient_CheckFilings_UnknownCIK(t *testing.T) {
	client := newEdgarServer(t, "", http.StatusNotFound)

	result, err := client.CheckFilings(context.Background(), "0000000001", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.TriNo, result.HasFiling)
}

func TestEdgarClient_CheckFilings_UpstreamFailure(t *testing.T) {
	client := newEdgarServer(t, "", http.StatusTooManyRequests)

	_, err := client.CheckFilings(context.Background(), "0000320193", time.Now())
	var upstream *models.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "edgar", upstream.Service)
}

func TestMatchItem(t *testing.T) {
	assert.Equal(t, "1.05", matchItem("1.05,9.01"))
	assert.Equal(t, "1.05", matchItem("7.01, 1.05"))
	assert.Equal(t, "7.01", matchItem("7.01,9.01"))
	assert.Equal(t, "8.01", matchItem("8.01"))
	assert.Equal(t, "", matchItem("2.02,9.01"))
	assert.Equal(t, "", matchItem(""))
}
