package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

// Filing windows relative to the leak-site posting date. An 8-K a few days
// before the posting still counts: groups sometimes post after the victim
// has already disclosed.
const (
	filingWindowBefore = 7 * 24 * time.Hour
	filingWindowAfter  = 120 * 24 * time.Hour
)

// relevantItems are the 8-K item numbers that signal a cybersecurity
// disclosure. 1.05 is the dedicated material-incident item; 7.01 (Reg FD)
// is how many issuers disclosed before 1.05 existed.
var relevantItems = []string{"1.05", "7.01", "8.01"}

// FilingChecker looks up SEC 8-K filings for a CIK.
type FilingChecker interface {
	// CheckFilings returns the 8-K disclosure correlation for the company
	// with the given CIK, relative to the posting date.
	CheckFilings(ctx context.Context, cik string, postDate time.Time) (models.FilingCorrelation, error)
}

// EdgarClient implements FilingChecker against the SEC EDGAR submissions API.
type EdgarClient struct {
	baseURL string
	client  *resty.Client
}

var _ FilingChecker = (*EdgarClient)(nil)

// NewEdgarClient creates an EDGAR client. The SEC requires a descriptive
// User-Agent with contact information on all automated requests.
func NewEdgarClient(baseURL string) *EdgarClient {
	return &EdgarClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "LeakMonitor research tool admin@leakmonitor.example").
			SetHeader("Accept", "application/json"),
	}
}

// submissionsResponse is the column-oriented shape of the EDGAR
// submissions endpoint: parallel arrays indexed together.
type submissionsResponse struct {
	Recent struct {
		AccessionNumber []string `json:"accessionNumber"`
		FilingDate      []string `json:"filingDate"`
		Form            []string `json:"form"`
		Items           []string `json:"items"`
		PrimaryDocument []string `json:"primaryDocument"`
	} `json:"recent"`
}

type submissionsEnvelope struct {
	CIK     string              `json:"cik"`
	Name    string              `json:"name"`
	Filings submissionsResponse `json:"filings"`
}

func (c *EdgarClient) CheckFilings(ctx context.Context, cik string, postDate time.Time) (models.FilingCorrelation, error) {
	none := models.FilingCorrelation{HasFiling: models.TriNo}

	resp, err := c.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/submissions/CIK%s.json", c.baseURL, cik))
	if err != nil {
		return none, &models.UpstreamError{Service: "edgar", Err: err}
	}
	if resp.StatusCode() == http.StatusNotFound {
		logrus.Warnf("No EDGAR submissions for CIK %s", cik)
		return none, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return none, &models.UpstreamError{
			Service:    "edgar",
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("submissions lookup returned status %d", resp.StatusCode()),
		}
	}

	var decoded submissionsEnvelope
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return none, &models.UpstreamError{Service: "edgar", Err: fmt.Errorf("decode submissions: %w", err)}
	}

	recent := decoded.Filings.Recent
	windowStart := postDate.Add(-filingWindowBefore)
	windowEnd := postDate.Add(filingWindowAfter)

	// Filings are ordered newest first; the earliest matching one in the
	// window is the disclosure we report.
	var best *models.FilingCorrelation
	for i := range recent.Form {
		if recent.Form[i] != "8-K" && recent.Form[i] != "8-K/A" {
			continue
		}
		filed, err := time.Parse("2006-01-02", recent.FilingDate[i])
		if err != nil {
			continue
		}
		if filed.Before(windowStart) || filed.After(windowEnd) {
			continue
		}
		item := matchItem(recent.Items[i])
		if item == "" {
			continue
		}

		days := int(filed.Sub(postDate).Hours() / 24)
		url := c.filingURL(decoded.CIK, recent.AccessionNumber[i], recent.PrimaryDocument[i])
		source := "edgar"
		filedCopy := filed
		match := models.FilingCorrelation{
			HasFiling:      models.TriYes,
			FilingDate:     &filedCopy,
			FilingURL:      &url,
			FilingSource:   &source,
			FilingItem:     &item,
			DisclosureDays: &days,
		}
		if best == nil || filed.Before(*best.FilingDate) {
			best = &match
		}
	}

	if best == nil {
		return none, nil
	}
	logrus.Infof("Found 8-K item %s filed %s for CIK %s", *best.FilingItem, best.FilingDate.Format("2006-01-02"), cik)
	return *best, nil
}

// matchItem returns the first relevant item number present in the filing's
// comma-separated items string, preferring 1.05 over the broader items.
func matchItem(items string) string {
	for _, want := range relevantItems {
		for _, have := range strings.Split(items, ",") {
			if strings.TrimSpace(have) == want {
				return want
			}
		}
	}
	return ""
}

// filingURL builds the browsable archive URL for a filing document.
func (c *EdgarClient) filingURL(cik, accession, document string) string {
	return fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/%s",
		strings.TrimLeft(cik, "0"),
		strings.ReplaceAll(accession, "-", ""),
		document)
}
