package storage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

func newVictimRepo(t *testing.T) (*VictimRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewVictimRepo(mock), mock
}

func sampleVictim() models.Victim {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	return models.Victim{
		ID:                     uuid.New(),
		GroupName:              "akira",
		VictimRaw:              "Acme Corp",
		PostDate:               now,
		CompanyType:            models.CompanyTypeUnknown,
		HasFiling:              models.TriUnknown,
		NewsFound:              models.TriUnknown,
		NewsSources:            []string{},
		DisclosureAcknowledged: models.TriUnknown,
		ReviewStatus:           models.ReviewStatusPending,
		LifecycleStatus:        models.LifecycleActive,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

func victimRows(victims ...models.Victim) *pgxmock.Rows {
	rows := pgxmock.NewRows(victimColumns)
	for _, v := range victims {
		rows.AddRow(
			v.ID, v.GroupName, v.VictimRaw, v.PostDate, v.Description,
			v.ScreenshotURL, v.DataLink,
			v.CompanyName, v.CompanyType, v.Region, v.Country,
			v.IsSECRegulated, v.SECCik, v.StockTicker,
			v.IsSubsidiary, v.ParentCompany, v.HasADR,
			v.HasFiling, v.FilingDate, v.FilingURL, v.FilingSource,
			v.FilingItem, v.DisclosureDays,
			v.Confidence, v.AINotes, v.NewsFound, v.NewsSummary,
			v.NewsSources, v.FirstNewsDate, v.DisclosureAcknowledged,
			v.ReviewStatus, v.Notes,
			v.LifecycleStatus, v.FlagReason,
			v.CreatedAt, v.UpdatedAt,
		)
	}
	return rows
}

func TestVictimRepo_List_ZeroLimitIsEmptyPage(t *testing.T) {
	repo, mock := newVictimRepo(t)

	victims, err := repo.List(context.Background(), models.VictimFilter{Limit: 0})
	require.NoError(t, err)
	assert.Empty(t, victims)

	// No query must reach the database.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVictimRepo_List_DefaultHidesNonActive(t *testing.T) {
	repo, mock := newVictimRepo(t)
	v := sampleVictim()

	mock.ExpectQuery("SELECT .* FROM victims WHERE lifecycle_status = \\$1 ORDER BY post_date DESC, id LIMIT 50 OFFSET 0").
		WithArgs(models.LifecycleActive).
		WillReturnRows(victimRows(v))

	victims, err := repo.List(context.Background(), models.VictimFilter{Limit: 50})
	require.NoError(t, err)
	require.Len(t, victims, 1)
	assert.Equal(t, v.ID, victims[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVictimRepo_List_IncludeHiddenSkipsLifecycleFilter(t *testing.T) {
	repo, mock := newVictimRepo(t)

	mock.ExpectQuery("SELECT .* FROM victims ORDER BY post_date DESC, id LIMIT 50 OFFSET 0").
		WillReturnRows(victimRows())

	victims, err := repo.List(context.Background(), models.VictimFilter{IncludeHidden: true, Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, victims)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVictimRepo_List_CombinesFiltersWithAnd(t *testing.T) {
	repo, mock := newVictimRepo(t)

	mock.ExpectQuery("SELECT .* FROM victims WHERE lifecycle_status = \\$1 AND group_name = \\$2 AND review_status = \\$3 ORDER BY post_date DESC, id LIMIT 10 OFFSET 20").
		WithArgs(models.LifecycleActive, "akira", models.ReviewStatusPending).
		WillReturnRows(victimRows())

	_, err := repo.List(context.Background(), models.VictimFilter{
		GroupName:    "Akira",
		ReviewStatus: models.ReviewStatusPending,
		Limit:        10,
		Offset:       20,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVictimRepo_Get_NotFound(t *testing.T) {
	repo, mock := newVictimRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT .* FROM victims WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(victimRows())

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVictimRepo_Review_MarksReviewed(t *testing.T) {
	repo, mock := newVictimRepo(t)
	v := sampleVictim()
	v.ReviewStatus = models.ReviewStatusReviewed
	name := "Acme Corporation"

	mock.ExpectQuery("UPDATE victims SET .*review_status = .* RETURNING .*").
		WillReturnRows(victimRows(v))

	updated, err := repo.Review(context.Background(), v.ID, models.VictimReview{
		CompanyName: &name,
		CompanyType: models.CompanyTypePrivate,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusReviewed, updated.ReviewStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVictimRepo_SoftDelete(t *testing.T) {
	repo, mock := newVictimRepo(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE victims SET lifecycle_status = \\$1, updated_at = \\$2 WHERE id = \\$3").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.SoftDelete(context.Background(), id)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVictimRepo_SoftDelete_KeepsFlagReason(t *testing.T) {
	repo, mock := newVictimRepo(t)
	reason := "duplicate listing"
	v := sampleVictim()
	v.LifecycleStatus = models.LifecycleDeleted
	v.FlagReason = &reason

	// Flagging writes the reason; the delete statement must not touch it.
	mock.ExpectExec("UPDATE victims SET lifecycle_status = \\$1, flag_reason = \\$2, updated_at = \\$3 WHERE id = \\$4").
		WithArgs(models.LifecycleFlagged, &reason, pgxmock.AnyArg(), v.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE victims SET lifecycle_status = \\$1, updated_at = \\$2 WHERE id = \\$3").
		WithArgs(models.LifecycleDeleted, pgxmock.AnyArg(), v.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("SELECT .* FROM victims WHERE id = \\$1").
		WithArgs(v.ID).
		WillReturnRows(victimRows(v))

	require.NoError(t, repo.Flag(context.Background(), v.ID, &reason))
	require.NoError(t, repo.SoftDelete(context.Background(), v.ID))

	got, err := repo.Get(context.Background(), v.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FlagReason)
	assert.Equal(t, reason, *got.FlagReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVictimRepo_SoftDelete_UnknownID(t *testing.T) {
	repo, mock := newVictimRepo(t)

	mock.ExpectExec("UPDATE victims SET lifecycle_status = .*").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.SoftDelete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVictimRepo_BulkDelete_ReportsTransitionedCount(t *testing.T) {
	repo, mock := newVictimRepo(t)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	// One of the three is already deleted; only two transition.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE victims")).
		WithArgs(ids).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	count, err := repo.BulkDelete(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVictimRepo_BulkDelete_EmptySet(t *testing.T) {
	repo, mock := newVictimRepo(t)

	count, err := repo.BulkDelete(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVictimRepo_Insert_SkipsDuplicates(t *testing.T) {
	repo, mock := newVictimRepo(t)
	postDate := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	postings := []models.Posting{
		{GroupName: "akira", VictimRaw: "Acme Corp", PostDate: postDate},
		{GroupName: "akira", VictimRaw: "Globex Industries", PostDate: postDate},
	}

	mock.ExpectExec("INSERT INTO victims .*ON CONFLICT ON CONSTRAINT unique_victim_post DO NOTHING").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO victims .*ON CONFLICT ON CONSTRAINT unique_victim_post DO NOTHING").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, skipped, err := repo.Insert(context.Background(), postings)
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.Equal(t, "Acme Corp", inserted[0].VictimRaw)
	assert.Equal(t, 1, skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVictimRepo_ApplyAIClassification_HighConfidenceReviews(t *testing.T) {
	repo, mock := newVictimRepo(t)
	v := sampleVictim()
	v.ReviewStatus = models.ReviewStatusReviewed
	v.Confidence = models.ConfidenceHigh

	mock.ExpectQuery("UPDATE victims SET .*review_status.* RETURNING .*").
		WillReturnRows(victimRows(v))

	name := "Acme Corporation"
	updated, err := repo.ApplyAIClassification(context.Background(), v.ID, models.AIClassification{
		Confidence:  models.ConfidenceHigh,
		CompanyName: &name,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusReviewed, updated.ReviewStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVictimRepo_Stats_ZeroRecords(t *testing.T) {
	repo, mock := newVictimRepo(t)

	mock.ExpectQuery("SELECT count.* FROM victims WHERE lifecycle_status = 'active'").
		WillReturnRows(pgxmock.NewRows([]string{"count", "pending", "reviewed"}).AddRow(0, 0, 0))
	mock.ExpectQuery("SELECT review_status, count.*").
		WillReturnRows(pgxmock.NewRows([]string{"review_status", "count"}))
	mock.ExpectQuery("SELECT company_type, count.*").
		WillReturnRows(pgxmock.NewRows([]string{"company_type", "count"}))
	mock.ExpectQuery("SELECT group_name, count.*").
		WillReturnRows(pgxmock.NewRows([]string{"group_name", "count"}))
	mock.ExpectQuery("SELECT count.* FROM monitors WHERE is_active").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalVictims)
	assert.Empty(t, stats.ByGroup)
	assert.NoError(t, mock.ExpectationsWereMet())
}
