package models

import (
	"time"

	"github.com/google/uuid"
)

// Victim represents one ransomware-group posting tracked by the dashboard.
// Raw fields come from the leak-site feed and are immutable after ingestion;
// enrichment fields are filled in by manual review or AI analysis.
type Victim struct {
	ID uuid.UUID `db:"id" json:"id"`

	// Raw data from the leak-site feed
	GroupName     string    `db:"group_name" json:"group_name"`
	VictimRaw     string    `db:"victim_raw" json:"victim_raw"`
	PostDate      time.Time `db:"post_date" json:"post_date"`
	Description   *string   `db:"description" json:"description"`
	ScreenshotURL *string   `db:"screenshot_url" json:"screenshot_url"`
	DataLink      *string   `db:"data_link" json:"data_link"`

	// Enriched company information
	CompanyName    *string     `db:"company_name" json:"company_name"`
	CompanyType    CompanyType `db:"company_type" json:"company_type"`
	Region         *string     `db:"region" json:"region"`
	Country        *string     `db:"country" json:"country"`
	IsSECRegulated bool        `db:"is_sec_regulated" json:"is_sec_regulated"`
	SECCik         *string     `db:"sec_cik" json:"sec_cik"`
	StockTicker    *string     `db:"stock_ticker" json:"stock_ticker"`
	IsSubsidiary   bool        `db:"is_subsidiary" json:"is_subsidiary"`
	ParentCompany  *string     `db:"parent_company" json:"parent_company"`
	HasADR         bool        `db:"has_adr" json:"has_adr"`

	// SEC 8-K filing correlation
	HasFiling      TriState   `db:"has_filing" json:"has_filing"`
	FilingDate     *time.Time `db:"filing_date" json:"filing_date"`
	FilingURL      *string    `db:"filing_url" json:"filing_url"`
	FilingSource   *string    `db:"filing_source" json:"filing_source"` // "edgar" or "tracker"
	FilingItem     *string    `db:"filing_item" json:"filing_item"`     // "1.05", "7.01", etc.
	DisclosureDays *int       `db:"disclosure_days" json:"disclosure_days"`

	// AI analysis
	Confidence             Confidence `db:"confidence" json:"confidence"`
	AINotes                *string    `db:"ai_notes" json:"ai_notes"`
	NewsFound              TriState   `db:"news_found" json:"news_found"`
	NewsSummary            *string    `db:"news_summary" json:"news_summary"`
	NewsSources            []string   `db:"news_sources" json:"news_sources"`
	FirstNewsDate          *time.Time `db:"first_news_date" json:"first_news_date"`
	DisclosureAcknowledged TriState   `db:"disclosure_acknowledged" json:"disclosure_acknowledged"`

	// Review workflow
	ReviewStatus ReviewStatus `db:"review_status" json:"review_status"`
	Notes        *string      `db:"notes" json:"notes"`

	// Lifecycle (soft delete, flagging)
	LifecycleStatus LifecycleStatus `db:"lifecycle_status" json:"lifecycle_status"`
	FlagReason      *string         `db:"flag_reason" json:"flag_reason"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Posting is a raw victim posting fetched from the leak-site feed, ready
// for dedup insertion into the victims table.
type Posting struct {
	GroupName     string    `json:"group_name"`
	VictimRaw     string    `json:"victim_raw"`
	PostDate      time.Time `json:"post_date"`
	Description   *string   `json:"description"`
	ScreenshotURL *string   `json:"screenshot_url"`
	DataLink      *string   `json:"data_link"`
}

// VictimReview carries the manually editable enrichment and workflow fields
// of a victim. Raw ingestion fields are never part of this patch.
type VictimReview struct {
	CompanyName    *string     `json:"company_name"`
	CompanyType    CompanyType `json:"company_type"`
	Region         *string     `json:"region"`
	Country        *string     `json:"country"`
	IsSECRegulated bool        `json:"is_sec_regulated"`
	SECCik         *string     `json:"sec_cik"`
	StockTicker    *string     `json:"stock_ticker"`
	IsSubsidiary   bool        `json:"is_subsidiary"`
	ParentCompany  *string     `json:"parent_company"`
	HasADR         bool        `json:"has_adr"`
	Notes          *string     `json:"notes"`
}

// VictimFilter holds the query options for listing victims. Zero-valued
// enum fields mean "no filter". When IncludeHidden is false only records
// in the active lifecycle state are eligible.
type VictimFilter struct {
	GroupName      string
	ReviewStatus   ReviewStatus
	CompanyType    CompanyType
	IsSECRegulated *bool
	StartDate      *time.Time
	EndDate        *time.Time
	IncludeHidden  bool
	Limit          uint64
	Offset         uint64
}

// AIClassification is the enrichment write produced by the AI classifier.
// Nil pointer fields are left untouched on the record.
type AIClassification struct {
	Confidence     Confidence
	AINotes        *string
	CompanyName    *string
	CompanyType    CompanyType
	Region         *string
	Country        *string
	IsSECRegulated *bool
	SECCik         *string
}

// NewsCorrelation is the enrichment write produced by the AI news search.
type NewsCorrelation struct {
	NewsFound              TriState
	NewsSummary            *string
	NewsSources            []string
	FirstNewsDate          *time.Time
	DisclosureAcknowledged TriState
}

// FilingCorrelation is the enrichment write produced by the SEC filing check.
type FilingCorrelation struct {
	HasFiling      TriState
	FilingDate     *time.Time
	FilingURL      *string
	FilingSource   *string
	FilingItem     *string
	DisclosureDays *int
}

// Monitor is a configured, recurring watch on one ransomware group's
// postings. Only one monitor per group may be active at a time.
type Monitor struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	GroupName         string     `db:"group_name" json:"group_name"`
	StartDate         time.Time  `db:"start_date" json:"start_date"`
	EndDate           *time.Time `db:"end_date" json:"end_date"`
	PollIntervalHours int        `db:"poll_interval_hours" json:"poll_interval_hours"`
	AutoExpireDays    *int       `db:"auto_expire_days" json:"auto_expire_days"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	LastPollAt        *time.Time `db:"last_poll_at" json:"last_poll_at"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// MonitorCreate is the input for creating a new monitor.
type MonitorCreate struct {
	GroupName         string     `json:"group_name"`
	StartDate         time.Time  `json:"start_date"`
	EndDate           *time.Time `json:"end_date"`
	PollIntervalHours int        `json:"poll_interval_hours"`
	AutoExpireDays    *int       `json:"auto_expire_days"`
}

// PollResult summarizes one poll of a monitor against the feed.
type PollResult struct {
	MonitorID  uuid.UUID `json:"monitor_id"`
	GroupName  string    `json:"group_name"`
	TotalPosts int       `json:"total_posts"`
	Inserted   int       `json:"inserted"`
	Skipped    int       `json:"skipped"`
}

// Stats holds aggregate victim counts. All counts respect the default
// listing visibility, i.e. only active lifecycle records.
type Stats struct {
	TotalVictims   int            `json:"total_victims"`
	PendingCount   int            `json:"pending_count"`
	ReviewedCount  int            `json:"reviewed_count"`
	ByReviewStatus map[string]int `json:"by_review_status"`
	ByCompanyType  map[string]int `json:"by_company_type"`
	ByGroup        map[string]int `json:"by_group"`
	ActiveMonitors int            `json:"active_monitors"`
}
