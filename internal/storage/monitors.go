package storage

import (
	"context"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

var monitorColumns = []string{
	"id", "group_name", "start_date", "end_date", "poll_interval_hours",
	"auto_expire_days", "is_active", "last_poll_at", "created_at", "updated_at",
}

// MonitorRepo provides monitor persistence backed by PostgreSQL.
type MonitorRepo struct {
	db Querier
}

// NewMonitorRepo creates a new monitor repository.
func NewMonitorRepo(db Querier) *MonitorRepo {
	return &MonitorRepo{db: db}
}

// Create inserts a new active monitor. A partial unique index on
// (group_name) WHERE is_active makes a second active monitor for the same
// group surface as ErrConflict.
func (r *MonitorRepo) Create(ctx context.Context, in models.MonitorCreate) (*models.Monitor, error) {
	sql, args, err := psql.Insert("monitors").
		Columns("group_name", "start_date", "end_date", "poll_interval_hours", "auto_expire_days", "is_active").
		Values(strings.ToLower(in.GroupName), in.StartDate, in.EndDate, in.PollIntervalHours, in.AutoExpireDays, true).
		Suffix("RETURNING " + strings.Join(monitorColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, mapError(err, "create monitor")
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "create monitor")
	}

	var m models.Monitor
	if err := pgxscan.ScanOne(&m, rows); err != nil {
		return nil, mapError(err, "create monitor")
	}

	logrus.Infof("Created monitor for %s: %s", m.GroupName, m.ID)
	return &m, nil
}

// Get returns a monitor by id.
func (r *MonitorRepo) Get(ctx context.Context, id uuid.UUID) (*models.Monitor, error) {
	sql, args, err := psql.Select(monitorColumns...).
		From("monitors").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, mapError(err, "get monitor")
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "get monitor")
	}

	var m models.Monitor
	if err := pgxscan.ScanOne(&m, rows); err != nil {
		if pgxscan.NotFound(err) {
			return nil, mapError(pgxNoRows, "get monitor")
		}
		return nil, mapError(err, "get monitor")
	}
	return &m, nil
}

// List returns monitors, newest first, optionally only active ones.
func (r *MonitorRepo) List(ctx context.Context, activeOnly bool) ([]models.Monitor, error) {
	query := psql.Select(monitorColumns...).From("monitors")
	if activeOnly {
		query = query.Where(squirrel.Eq{"is_active": true})
	}
	query = query.OrderBy("created_at DESC")

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, mapError(err, "list monitors")
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "list monitors")
	}

	monitors := []models.Monitor{}
	if err := pgxscan.ScanAll(&monitors, rows); err != nil {
		return nil, mapError(err, "list monitors")
	}
	return monitors, nil
}

// Deactivate turns a monitor off. It stays in the table for history.
func (r *MonitorRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE monitors SET is_active = false, updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "deactivate monitor")
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgxNoRows, "deactivate monitor")
	}

	logrus.Infof("Deactivated monitor %s", id)
	return nil
}

// TouchLastPoll stamps the last poll time. Called after every poll,
// whatever its outcome.
func (r *MonitorRepo) TouchLastPoll(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE monitors SET last_poll_at = now(), updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "touch monitor poll time")
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgxNoRows, "touch monitor poll time")
	}
	return nil
}

// DeactivateExpired turns off active monitors whose auto-expire window has
// passed, counted from end_date when set, otherwise from creation. Returns
// the number deactivated.
func (r *MonitorRepo) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE monitors SET is_active = false, updated_at = now()
		WHERE is_active
		  AND auto_expire_days IS NOT NULL
		  AND COALESCE(end_date, created_at) + auto_expire_days * interval '1 day' < $1`, now)
	if err != nil {
		return 0, mapError(err, "deactivate expired monitors")
	}

	count := int(tag.RowsAffected())
	if count > 0 {
		logrus.Infof("Deactivated %d expired monitors", count)
	}
	return count, nil
}
