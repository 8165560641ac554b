// Package feed talks to the external leak-site feed that supplies victim
// postings per ransomware group. The Client interface keeps the ingestion
// logic testable without network access.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

// Client is the contract for the leak-site feed collaborator.
type Client interface {
	// ListGroups returns the catalog of group names known to the feed.
	ListGroups(ctx context.Context) ([]string, error)
	// GroupExists reports whether the feed tracks the named group.
	GroupExists(ctx context.Context, name string) (bool, error)
	// FetchPostings returns postings for a group within the date window.
	// A nil end means "up to now".
	FetchPostings(ctx context.Context, group string, start time.Time, end *time.Time) ([]models.Posting, error)
}

// RansomLookClient implements Client against the RansomLook.io API.
type RansomLookClient struct {
	baseURL string
	client  *resty.Client
}

// Ensure RansomLookClient implements Client
var _ Client = (*RansomLookClient)(nil)

// NewRansomLookClient creates a new RansomLook feed client.
func NewRansomLookClient(baseURL string) *RansomLookClient {
	return &RansomLookClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "leak-monitor/1.0 (threat intelligence tracker)").
			SetHeader("Accept", "application/json"),
	}
}

func (c *RansomLookClient) ListGroups(ctx context.Context) ([]string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(c.baseURL + "/api/groups")
	if err != nil {
		return nil, &models.UpstreamError{Service: "ransomlook", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &models.UpstreamError{
			Service:    "ransomlook",
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("list groups returned status %d", resp.StatusCode()),
		}
	}

	// The API returns either an object keyed by group name or a plain array.
	var byName map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &byName); err == nil {
		groups := make([]string, 0, len(byName))
		for name := range byName {
			groups = append(groups, name)
		}
		sort.Strings(groups)
		logrus.Infof("Retrieved %d groups from feed", len(groups))
		return groups, nil
	}

	var groups []string
	if err := json.Unmarshal(resp.Body(), &groups); err != nil {
		return nil, &models.UpstreamError{Service: "ransomlook", Err: fmt.Errorf("decode groups: %w", err)}
	}
	sort.Strings(groups)
	return groups, nil
}

func (c *RansomLookClient) GroupExists(ctx context.Context, name string) (bool, error) {
	groups, err := c.ListGroups(ctx)
	if err != nil {
		return false, err
	}

	name = strings.ToLower(name)
	for _, g := range groups {
		if strings.ToLower(g) == name {
			return true, nil
		}
	}
	return false, nil
}

type feedPost struct {
	PostTitle   string `json:"post_title"`
	Discovered  string `json:"discovered"`
	Description string `json:"description"`
	Screen      string `json:"screen"`
	Link        string `json:"link"`
	Magnet      string `json:"magnet"`
}

func (c *RansomLookClient) FetchPostings(ctx context.Context, group string, start time.Time, end *time.Time) ([]models.Posting, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(c.baseURL + "/api/group/" + strings.ToLower(group))
	if err != nil {
		return nil, &models.UpstreamError{Service: "ransomlook", Err: err}
	}
	if resp.StatusCode() == http.StatusNotFound {
		logrus.Warnf("Group not found on feed: %s", group)
		return nil, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &models.UpstreamError{
			Service:    "ransomlook",
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("fetch group %s returned status %d", group, resp.StatusCode()),
		}
	}

	posts, err := c.decodePosts(resp.Body())
	if err != nil {
		return nil, &models.UpstreamError{Service: "ransomlook", Err: err}
	}

	logrus.Infof("Retrieved %d total posts for %s", len(posts), group)

	var postings []models.Posting
	for _, post := range posts {
		posting, ok := c.parsePost(group, post)
		if !ok {
			continue
		}
		if posting.PostDate.Before(start) {
			continue
		}
		if end != nil && posting.PostDate.After(*end) {
			continue
		}
		postings = append(postings, posting)
	}

	logrus.Infof("Filtered to %d posts for %s within window", len(postings), group)
	return postings, nil
}

// decodePosts unpacks the [group_metadata, posts] response shape. The posts
// element is sometimes an array and sometimes an object with numeric keys.
func (c *RansomLookClient) decodePosts(body []byte) ([]feedPost, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode group response: %w", err)
	}
	if len(envelope) < 2 {
		logrus.Warn("Unexpected feed response shape, no posts element")
		return nil, nil
	}

	raw := envelope[1]

	var asList []feedPost
	if err := json.Unmarshal(raw, &asList); err == nil {
		return asList, nil
	}

	var asMap map[string]feedPost
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}

	posts := make([]feedPost, 0, len(asMap))
	for _, p := range asMap {
		posts = append(posts, p)
	}
	return posts, nil
}

// discoveredFormats are the timestamp layouts the feed has been seen to use.
var discoveredFormats = []string{
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func (c *RansomLookClient) parsePost(group string, post feedPost) (models.Posting, bool) {
	title := strings.TrimSpace(post.PostTitle)
	if title == "" || post.Discovered == "" {
		logrus.Debugf("Skipping post with missing required fields: %q", post.PostTitle)
		return models.Posting{}, false
	}

	var postDate time.Time
	var err error
	for _, layout := range discoveredFormats {
		postDate, err = time.Parse(layout, post.Discovered)
		if err == nil {
			break
		}
	}
	if err != nil {
		logrus.Warnf("Failed to parse post date %q: %v", post.Discovered, err)
		return models.Posting{}, false
	}
	postDate = postDate.UTC()

	posting := models.Posting{
		GroupName: strings.ToLower(group),
		VictimRaw: title,
		PostDate:  postDate,
	}

	if desc := strings.TrimSpace(post.Description); desc != "" {
		posting.Description = &desc
	}
	if post.Screen != "" {
		screen := post.Screen
		if !strings.HasPrefix(screen, "http") {
			screen = c.baseURL + "/" + strings.TrimLeft(screen, "/")
		}
		posting.ScreenshotURL = &screen
	}
	if link := firstNonEmpty(post.Link, post.Magnet); link != "" {
		posting.DataLink = &link
	}

	return posting, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
