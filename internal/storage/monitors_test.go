package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

func newMonitorRepo(t *testing.T) (*MonitorRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewMonitorRepo(mock), mock
}

func monitorRows(monitors ...models.Monitor) *pgxmock.Rows {
	rows := pgxmock.NewRows(monitorColumns)
	for _, m := range monitors {
		rows.AddRow(
			m.ID, m.GroupName, m.StartDate, m.EndDate, m.PollIntervalHours,
			m.AutoExpireDays, m.IsActive, m.LastPollAt, m.CreatedAt, m.UpdatedAt,
		)
	}
	return rows
}

func sampleMonitor() models.Monitor {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	return models.Monitor{
		ID:                uuid.New(),
		GroupName:         "akira",
		StartDate:         now,
		PollIntervalHours: 24,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestMonitorRepo_Create_LowercasesGroup(t *testing.T) {
	repo, mock := newMonitorRepo(t)
	m := sampleMonitor()

	mock.ExpectQuery("INSERT INTO monitors .* RETURNING .*").
		WithArgs("akira", m.StartDate, (*time.Time)(nil), 24, (*int)(nil), true).
		WillReturnRows(monitorRows(m))

	created, err := repo.Create(context.Background(), models.MonitorCreate{
		GroupName:         "Akira",
		StartDate:         m.StartDate,
		PollIntervalHours: 24,
	})
	require.NoError(t, err)
	assert.Equal(t, "akira", created.GroupName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitorRepo_Create_SecondActiveConflicts(t *testing.T) {
	repo, mock := newMonitorRepo(t)
	m := sampleMonitor()

	mock.ExpectQuery("INSERT INTO monitors .* RETURNING .*").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), models.MonitorCreate{
		GroupName:         m.GroupName,
		StartDate:         m.StartDate,
		PollIntervalHours: 24,
	})
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitorRepo_Get_NotFound(t *testing.T) {
	repo, mock := newMonitorRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT .* FROM monitors WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(monitorRows())

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitorRepo_List_ActiveOnly(t *testing.T) {
	repo, mock := newMonitorRepo(t)
	m := sampleMonitor()

	mock.ExpectQuery("SELECT .* FROM monitors WHERE is_active = \\$1 ORDER BY created_at DESC").
		WithArgs(true).
		WillReturnRows(monitorRows(m))

	monitors, err := repo.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, monitors, 1)
	assert.Equal(t, m.ID, monitors[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitorRepo_Deactivate(t *testing.T) {
	repo, mock := newMonitorRepo(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE monitors SET is_active = false").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.Deactivate(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitorRepo_Deactivate_UnknownID(t *testing.T) {
	repo, mock := newMonitorRepo(t)

	mock.ExpectExec("UPDATE monitors SET is_active = false").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Deactivate(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitorRepo_DeactivateExpired(t *testing.T) {
	repo, mock := newMonitorRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE monitors SET is_active = false").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	count, err := repo.DeactivateExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
