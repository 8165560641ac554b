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

// psql builds queries with PostgreSQL-style $n placeholders.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var victimColumns = []string{
	"id", "group_name", "victim_raw", "post_date", "description",
	"screenshot_url", "data_link",
	"company_name", "company_type", "region", "country",
	"is_sec_regulated", "sec_cik", "stock_ticker",
	"is_subsidiary", "parent_company", "has_adr",
	"has_filing", "filing_date", "filing_url", "filing_source",
	"filing_item", "disclosure_days",
	"confidence", "ai_notes", "news_found", "news_summary",
	"news_sources", "first_news_date", "disclosure_acknowledged",
	"review_status", "notes",
	"lifecycle_status", "flag_reason",
	"created_at", "updated_at",
}

var victimReturning = "RETURNING " + strings.Join(victimColumns, ", ")

// VictimRepo provides victim record persistence backed by PostgreSQL.
type VictimRepo struct {
	db Querier
}

// NewVictimRepo creates a new victim repository.
func NewVictimRepo(db Querier) *VictimRepo {
	return &VictimRepo{db: db}
}

// List returns victims matching the filter, newest post first. All supplied
// filters combine with AND. Flagged and deleted records are only eligible
// when IncludeHidden is set. An empty result is not an error.
func (r *VictimRepo) List(ctx context.Context, filter models.VictimFilter) ([]models.Victim, error) {
	// A zero limit is an empty page, never "unlimited".
	if filter.Limit == 0 {
		return []models.Victim{}, nil
	}

	query := psql.Select(victimColumns...).From("victims")

	if !filter.IncludeHidden {
		query = query.Where(squirrel.Eq{"lifecycle_status": models.LifecycleActive})
	}
	if filter.GroupName != "" {
		query = query.Where(squirrel.Eq{"group_name": strings.ToLower(filter.GroupName)})
	}
	if filter.ReviewStatus != "" {
		query = query.Where(squirrel.Eq{"review_status": filter.ReviewStatus})
	}
	if filter.CompanyType != "" {
		query = query.Where(squirrel.Eq{"company_type": filter.CompanyType})
	}
	if filter.IsSECRegulated != nil {
		query = query.Where(squirrel.Eq{"is_sec_regulated": *filter.IsSECRegulated})
	}
	if filter.StartDate != nil {
		query = query.Where(squirrel.GtOrEq{"post_date": *filter.StartDate})
	}
	if filter.EndDate != nil {
		query = query.Where(squirrel.LtOrEq{"post_date": *filter.EndDate})
	}

	// id breaks ties so equal post dates keep a stable order across pages.
	query = query.OrderBy("post_date DESC, id").
		Limit(filter.Limit).
		Offset(filter.Offset)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, mapError(err, "list victims")
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "list victims")
	}

	victims := []models.Victim{}
	if err := pgxscan.ScanAll(&victims, rows); err != nil {
		return nil, mapError(err, "list victims")
	}
	return victims, nil
}

// Get returns a victim by id, including flagged and deleted ones.
func (r *VictimRepo) Get(ctx context.Context, id uuid.UUID) (*models.Victim, error) {
	sql, args, err := psql.Select(victimColumns...).
		From("victims").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, mapError(err, "get victim")
	}

	return r.scanOne(ctx, "get victim", sql, args)
}

// Review updates the manually editable enrichment fields of a victim and
// marks it reviewed. Deleted records stay updatable by id; only listing
// hides them.
func (r *VictimRepo) Review(ctx context.Context, id uuid.UUID, review models.VictimReview) (*models.Victim, error) {
	companyType := review.CompanyType
	if companyType == "" {
		companyType = models.CompanyTypeUnknown
	}

	sql, args, err := psql.Update("victims").
		Set("company_name", review.CompanyName).
		Set("company_type", companyType).
		Set("region", review.Region).
		Set("country", review.Country).
		Set("is_sec_regulated", review.IsSECRegulated).
		Set("sec_cik", review.SECCik).
		Set("stock_ticker", review.StockTicker).
		Set("is_subsidiary", review.IsSubsidiary).
		Set("parent_company", review.ParentCompany).
		Set("has_adr", review.HasADR).
		Set("notes", review.Notes).
		Set("review_status", models.ReviewStatusReviewed).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		Suffix(victimReturning).
		ToSql()
	if err != nil {
		return nil, mapError(err, "review victim")
	}

	return r.scanOne(ctx, "review victim", sql, args)
}

// ApplyAIClassification stores an AI classification result. Nil fields are
// left untouched. High-confidence results flip the record to reviewed;
// anything weaker stays pending for a human pass.
func (r *VictimRepo) ApplyAIClassification(ctx context.Context, id uuid.UUID, c models.AIClassification) (*models.Victim, error) {
	query := psql.Update("victims").
		Set("confidence", c.Confidence).
		Set("updated_at", time.Now().UTC())

	if c.AINotes != nil {
		query = query.Set("ai_notes", c.AINotes)
	}
	if c.CompanyName != nil {
		query = query.Set("company_name", c.CompanyName)
	}
	if c.CompanyType != "" {
		query = query.Set("company_type", c.CompanyType)
	}
	if c.Region != nil {
		query = query.Set("region", c.Region)
	}
	if c.Country != nil {
		query = query.Set("country", c.Country)
	}
	if c.IsSECRegulated != nil {
		query = query.Set("is_sec_regulated", *c.IsSECRegulated)
	}
	if c.SECCik != nil {
		query = query.Set("sec_cik", c.SECCik)
	}
	if c.Confidence == models.ConfidenceHigh {
		query = query.Set("review_status", models.ReviewStatusReviewed)
	}

	sql, args, err := query.Where(squirrel.Eq{"id": id}).Suffix(victimReturning).ToSql()
	if err != nil {
		return nil, mapError(err, "apply ai classification")
	}

	return r.scanOne(ctx, "apply ai classification", sql, args)
}

// ApplyNewsCorrelation stores the result of an AI news search.
func (r *VictimRepo) ApplyNewsCorrelation(ctx context.Context, id uuid.UUID, n models.NewsCorrelation) (*models.Victim, error) {
	sql, args, err := psql.Update("victims").
		Set("news_found", n.NewsFound).
		Set("news_summary", n.NewsSummary).
		Set("news_sources", n.NewsSources).
		Set("first_news_date", n.FirstNewsDate).
		Set("disclosure_acknowledged", n.DisclosureAcknowledged).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		Suffix(victimReturning).
		ToSql()
	if err != nil {
		return nil, mapError(err, "apply news correlation")
	}

	return r.scanOne(ctx, "apply news correlation", sql, args)
}

// ApplyFilingCorrelation stores the result of an SEC 8-K filing check.
func (r *VictimRepo) ApplyFilingCorrelation(ctx context.Context, id uuid.UUID, f models.FilingCorrelation) (*models.Victim, error) {
	sql, args, err := psql.Update("victims").
		Set("has_filing", f.HasFiling).
		Set("filing_date", f.FilingDate).
		Set("filing_url", f.FilingURL).
		Set("filing_source", f.FilingSource).
		Set("filing_item", f.FilingItem).
		Set("disclosure_days", f.DisclosureDays).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		Suffix(victimReturning).
		ToSql()
	if err != nil {
		return nil, mapError(err, "apply filing correlation")
	}

	return r.scanOne(ctx, "apply filing correlation", sql, args)
}

// SoftDelete moves a victim to the deleted lifecycle state. No other field
// changes, so a flag reason recorded before the delete survives it. Deleting
// an already-deleted record is a no-op success; only an unknown id errors.
func (r *VictimRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := psql.Update("victims").
		Set("lifecycle_status", models.LifecycleDeleted).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id})
	return r.execOne(ctx, query, "delete victim")
}

// Flag marks a victim as junk with an optional reason. Review status is
// untouched; the two state machines are independent.
func (r *VictimRepo) Flag(ctx context.Context, id uuid.UUID, reason *string) error {
	return r.setLifecycle(ctx, id, models.LifecycleFlagged, reason, "flag victim")
}

// Restore returns a flagged or deleted victim to the active state and
// clears the flag reason.
func (r *VictimRepo) Restore(ctx context.Context, id uuid.UUID) error {
	return r.setLifecycle(ctx, id, models.LifecycleActive, nil, "restore victim")
}

func (r *VictimRepo) setLifecycle(ctx context.Context, id uuid.UUID, status models.LifecycleStatus, reason *string, op string) error {
	query := psql.Update("victims").
		Set("lifecycle_status", status).
		Set("flag_reason", reason).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id})
	return r.execOne(ctx, query, op)
}

func (r *VictimRepo) execOne(ctx context.Context, query squirrel.UpdateBuilder, op string) error {
	sql, args, err := query.ToSql()
	if err != nil {
		return mapError(err, op)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err, op)
	}
	if tag.RowsAffected() == 0 {
		return mapError(pgxNoRows, op)
	}
	return nil
}

// BulkDelete soft-deletes every id in the set in one atomic statement.
// Unknown ids are silently skipped, and already-deleted ids do not count,
// so the returned count is exactly the number of records transitioned.
func (r *VictimRepo) BulkDelete(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE victims
		SET lifecycle_status = 'deleted', updated_at = now()
		WHERE id = ANY($1::uuid[]) AND lifecycle_status <> 'deleted'`, ids)
	if err != nil {
		return 0, mapError(err, "bulk delete victims")
	}

	count := int(tag.RowsAffected())
	logrus.Infof("Bulk deleted %d victims", count)
	return count, nil
}

// Insert adds postings to the victims table, skipping any that collide
// with the (group, raw label, post date) dedup key. Returns the postings
// that were actually inserted plus the skipped-duplicate count.
func (r *VictimRepo) Insert(ctx context.Context, postings []models.Posting) (inserted []models.Posting, skipped int, err error) {
	for _, p := range postings {
		sql, args, buildErr := psql.Insert("victims").
			Columns("group_name", "victim_raw", "post_date", "description", "screenshot_url", "data_link").
			Values(strings.ToLower(p.GroupName), p.VictimRaw, p.PostDate, p.Description, p.ScreenshotURL, p.DataLink).
			Suffix("ON CONFLICT ON CONSTRAINT unique_victim_post DO NOTHING").
			ToSql()
		if buildErr != nil {
			return inserted, skipped, mapError(buildErr, "insert victims")
		}

		tag, execErr := r.db.Exec(ctx, sql, args...)
		if execErr != nil {
			return inserted, skipped, mapError(execErr, "insert victims")
		}

		if tag.RowsAffected() > 0 {
			inserted = append(inserted, p)
		} else {
			skipped++
		}
	}

	if len(inserted) > 0 || skipped > 0 {
		logrus.Infof("Inserted victims: %d new, %d duplicates skipped", len(inserted), skipped)
	}
	return inserted, skipped, nil
}

// Stats returns aggregate counts over active-lifecycle victims. A system
// with zero records yields zero counts, not an error.
func (r *VictimRepo) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{
		ByReviewStatus: make(map[string]int),
		ByCompanyType:  make(map[string]int),
		ByGroup:        make(map[string]int),
	}

	row := r.db.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE review_status = 'pending'),
		       count(*) FILTER (WHERE review_status = 'reviewed')
		FROM victims WHERE lifecycle_status = 'active'`)
	if err := row.Scan(&stats.TotalVictims, &stats.PendingCount, &stats.ReviewedCount); err != nil {
		return nil, mapError(err, "victim stats")
	}

	if err := r.countInto(ctx, stats.ByReviewStatus, `
		SELECT review_status, count(*) FROM victims
		WHERE lifecycle_status = 'active' GROUP BY review_status`); err != nil {
		return nil, err
	}

	if err := r.countInto(ctx, stats.ByCompanyType, `
		SELECT company_type, count(*) FROM victims
		WHERE lifecycle_status = 'active' GROUP BY company_type`); err != nil {
		return nil, err
	}

	if err := r.countInto(ctx, stats.ByGroup, `
		SELECT group_name, count(*) FROM victims
		WHERE lifecycle_status = 'active'
		GROUP BY group_name ORDER BY count(*) DESC LIMIT 10`); err != nil {
		return nil, err
	}

	row = r.db.QueryRow(ctx, `SELECT count(*) FROM monitors WHERE is_active`)
	if err := row.Scan(&stats.ActiveMonitors); err != nil {
		return nil, mapError(err, "victim stats")
	}

	return stats, nil
}

func (r *VictimRepo) countInto(ctx context.Context, dst map[string]int, sql string) error {
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return mapError(err, "victim stats")
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return mapError(err, "victim stats")
		}
		dst[key] = count
	}
	return mapError(rows.Err(), "victim stats")
}

func (r *VictimRepo) scanOne(ctx context.Context, op, sql string, args []any) (*models.Victim, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, op)
	}

	var v models.Victim
	if err := pgxscan.ScanOne(&v, rows); err != nil {
		if pgxscan.NotFound(err) {
			return nil, mapError(pgxNoRows, op)
		}
		return nil, mapError(err, op)
	}
	return &v, nil
}
