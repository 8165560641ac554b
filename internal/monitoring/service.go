// Package monitoring manages group monitors: recurring watches on one
// ransomware group's leak-site postings, each polled on its own interval.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/leakmonitor/leakmonitor/internal/archive"
	"github.com/leakmonitor/leakmonitor/internal/feed"
	"github.com/leakmonitor/leakmonitor/internal/models"
	"github.com/leakmonitor/leakmonitor/internal/notifications"
)

const (
	minPollIntervalHours = 1
	maxPollIntervalHours = 168
)

// MonitorStore is the slice of the storage layer the monitoring service
// needs for monitor records.
type MonitorStore interface {
	Create(ctx context.Context, in models.MonitorCreate) (*models.Monitor, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Monitor, error)
	List(ctx context.Context, activeOnly bool) ([]models.Monitor, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	TouchLastPoll(ctx context.Context, id uuid.UUID) error
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
}

// VictimStore is the slice of the storage layer polls write into.
type VictimStore interface {
	Insert(ctx context.Context, postings []models.Posting) ([]models.Posting, int, error)
}

// Service coordinates monitor lifecycle and feed polling. The notifier and
// archive are optional; nil disables that side effect.
type Service struct {
	monitors MonitorStore
	victims  VictimStore
	feed     feed.Client
	notifier notifications.Notifier
	archive  archive.Archive
}

// NewService creates a monitoring service.
func NewService(monitors MonitorStore, victims VictimStore, feedClient feed.Client, notifier notifications.Notifier, arc archive.Archive) *Service {
	return &Service{
		monitors: monitors,
		victims:  victims,
		feed:     feedClient,
		notifier: notifier,
		archive:  arc,
	}
}

// CreateMonitor validates the request against the feed's group catalog,
// creates the monitor, and runs an initial poll. The initial poll is best
// effort: its failure does not fail the creation.
func (s *Service) CreateMonitor(ctx context.Context, in models.MonitorCreate) (*models.Monitor, error) {
	if in.GroupName == "" {
		return nil, fmt.Errorf("%w: group_name is required", models.ErrValidation)
	}
	if in.PollIntervalHours < minPollIntervalHours || in.PollIntervalHours > maxPollIntervalHours {
		return nil, fmt.Errorf("%w: poll_interval_hours must be between %d and %d",
			models.ErrValidation, minPollIntervalHours, maxPollIntervalHours)
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return nil, fmt.Errorf("%w: end_date is before start_date", models.ErrValidation)
	}

	exists, err := s.feed.GroupExists(ctx, in.GroupName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: unknown group %q", models.ErrValidation, in.GroupName)
	}

	monitor, err := s.monitors.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Created monitor %s for group %s", monitor.ID, monitor.GroupName)

	if _, err := s.Poll(ctx, monitor.ID); err != nil {
		logrus.Warnf("Initial poll for monitor %s failed: %v", monitor.ID, err)
	}

	return s.monitors.Get(ctx, monitor.ID)
}

// Poll fetches the monitor's group postings within its date window and
// inserts the new ones. The last-poll timestamp is updated whether or not
// anything new arrived.
func (s *Service) Poll(ctx context.Context, id uuid.UUID) (*models.PollResult, error) {
	monitor, err := s.monitors.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !monitor.IsActive {
		return nil, fmt.Errorf("%w: monitor %s is not active", models.ErrValidation, id)
	}

	postings, err := s.feed.FetchPostings(ctx, monitor.GroupName, monitor.StartDate, monitor.EndDate)

	// Touch last_poll_at regardless of outcome so a broken feed does not
	// look like a monitor that never ran.
	if touchErr := s.monitors.TouchLastPoll(ctx, id); touchErr != nil {
		logrus.Warnf("Failed to update last poll time for %s: %v", id, touchErr)
	}

	if err != nil {
		return nil, err
	}

	s.archivePayload(ctx, monitor.GroupName, postings)

	inserted, skipped, err := s.victims.Insert(ctx, postings)
	if err != nil {
		return nil, err
	}

	if len(inserted) > 0 {
		s.notifyNewVictims(monitor.GroupName, inserted)
	}

	result := &models.PollResult{
		MonitorID:  monitor.ID,
		GroupName:  monitor.GroupName,
		TotalPosts: len(postings),
		Inserted:   len(inserted),
		Skipped:    skipped,
	}
	logrus.Infof("Polled %s: %d posts, %d new, %d duplicates", monitor.GroupName, result.TotalPosts, result.Inserted, result.Skipped)
	return result, nil
}

// PollDue polls every active monitor whose interval has elapsed since its
// last poll. Monitors never polled are always due.
func (s *Service) PollDue(ctx context.Context, now time.Time) []models.PollResult {
	monitors, err := s.monitors.List(ctx, true)
	if err != nil {
		logrus.Errorf("Failed to list monitors for polling: %v", err)
		return nil
	}

	var results []models.PollResult
	for _, m := range monitors {
		if m.LastPollAt != nil {
			due := m.LastPollAt.Add(time.Duration(m.PollIntervalHours) * time.Hour)
			if now.Before(due) {
				continue
			}
		}
		result, err := s.Poll(ctx, m.ID)
		if err != nil {
			logrus.Errorf("Poll failed for monitor %s (%s): %v", m.ID, m.GroupName, err)
			continue
		}
		results = append(results, *result)
	}
	return results
}

// DeactivateMonitor stops a monitor. Already-inactive monitors deactivate
// without error.
func (s *Service) DeactivateMonitor(ctx context.Context, id uuid.UUID) error {
	return s.monitors.Deactivate(ctx, id)
}

// GetMonitor returns one monitor by id.
func (s *Service) GetMonitor(ctx context.Context, id uuid.UUID) (*models.Monitor, error) {
	return s.monitors.Get(ctx, id)
}

// ListMonitors returns monitors, optionally only active ones.
func (s *Service) ListMonitors(ctx context.Context, activeOnly bool) ([]models.Monitor, error) {
	return s.monitors.List(ctx, activeOnly)
}

// ListGroups returns the feed's group catalog.
func (s *Service) ListGroups(ctx context.Context) ([]string, error) {
	return s.feed.ListGroups(ctx)
}

// ExpireMonitors deactivates monitors past their auto-expiry horizon.
func (s *Service) ExpireMonitors(ctx context.Context, now time.Time) (int, error) {
	count, err := s.monitors.DeactivateExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		logrus.Infof("Auto-expired %d monitors", count)
	}
	return count, nil
}

// ListSnapshots returns the archived raw poll payload names for a group,
// oldest first. Snapshot names embed their poll timestamp, so lexical order
// is chronological order.
func (s *Service) ListSnapshots(ctx context.Context, group string) ([]string, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("%w: snapshot archive is not configured", models.ErrValidation)
	}
	names, err := s.archive.ListSnapshots(ctx, group)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// LatestSnapshot returns the raw payload of the most recent archived poll
// for a group.
func (s *Service) LatestSnapshot(ctx context.Context, group string) ([]byte, error) {
	names, err := s.ListSnapshots(ctx, group)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no snapshots for group %q", models.ErrNotFound, group)
	}
	return s.archive.Retrieve(ctx, names[len(names)-1])
}

// PruneSnapshots deletes all but the newest keep snapshots for a group and
// returns the number removed.
func (s *Service) PruneSnapshots(ctx context.Context, group string, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("%w: keep must not be negative", models.ErrValidation)
	}
	names, err := s.ListSnapshots(ctx, group)
	if err != nil {
		return 0, err
	}
	excess := len(names) - keep
	if excess <= 0 {
		return 0, nil
	}

	deleted := 0
	for _, name := range names[:excess] {
		if err := s.archive.Delete(ctx, name); err != nil {
			return deleted, err
		}
		deleted++
	}
	logrus.Infof("Pruned %d poll snapshots for group %s", deleted, group)
	return deleted, nil
}

func (s *Service) archivePayload(ctx context.Context, group string, postings []models.Posting) {
	if s.archive == nil || len(postings) == 0 {
		return
	}
	payload, err := json.Marshal(postings)
	if err != nil {
		logrus.Warnf("Failed to marshal poll payload for %s: %v", group, err)
		return
	}
	if _, err := s.archive.StoreSnapshot(ctx, group, time.Now().UTC(), payload); err != nil {
		logrus.Warnf("Failed to archive poll snapshot for %s: %v", group, err)
	}
}

func (s *Service) notifyNewVictims(group string, postings []models.Posting) {
	if s.notifier == nil {
		return
	}
	victims := make([]models.Victim, 0, len(postings))
	for _, p := range postings {
		victims = append(victims, models.Victim{
			GroupName:   p.GroupName,
			VictimRaw:   p.VictimRaw,
			PostDate:    p.PostDate,
			Description: p.Description,
		})
	}
	if err := s.notifier.SendNewVictims(group, victims); err != nil {
		logrus.Warnf("Failed to send new-victim notification for %s: %v", group, err)
	}
}
