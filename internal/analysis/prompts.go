package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/leakmonitor/leakmonitor/internal/models"
)

// classifyPrompt asks the model to identify the company behind a raw
// leak-site posting and return structured JSON.
func classifyPrompt(v models.Victim) string {
	var b strings.Builder
	b.WriteString("You are a threat intelligence analyst. A ransomware group published a victim posting on its leak site. Identify the victim organization.\n\n")
	fmt.Fprintf(&b, "Ransomware group: %s\n", v.GroupName)
	fmt.Fprintf(&b, "Victim name as posted: %s\n", v.VictimRaw)
	fmt.Fprintf(&b, "Posting date: %s\n", v.PostDate.Format("2006-01-02"))
	if v.Description != nil && *v.Description != "" {
		fmt.Fprintf(&b, "Posting description: %s\n", truncate(*v.Description, 2000))
	}
	b.WriteString(`
Respond with ONLY a JSON object, no prose, in this exact shape:
{
  "company_name": "official company name or null if unidentifiable",
  "company_type": "public" | "private" | "government" | "unknown",
  "region" : "region or null",
  "country": "country or null",
  "is_sec_regulated": true | false,
  "sec_cik": "10-digit CIK string or null",
  "confidence": "high" | "medium" | "low",
  "notes": "one or two sentences of reasoning"
}

Rules:
- "is_sec_regulated" is true only for companies that file with the US SEC (US-listed public companies, including foreign private issuers with ADRs).
- Only provide "sec_cik" if you are certain of it; otherwise null.
- "confidence" is "high" only when the posted name unambiguously maps to one real organization.`)
	return b.String()
}

// verifyPrompt asks the model to double-check a prior classification.
func verifyPrompt(v models.Victim, first classifyResponse) string {
	var b strings.Builder
	b.WriteString("You are reviewing another analyst's identification of a ransomware victim. Verify or correct it.\n\n")
	fmt.Fprintf(&b, "Victim name as posted by group %q: %s\n", v.GroupName, v.VictimRaw)
	fmt.Fprintf(&b, "Proposed identification: %s (type=%s, country=%s, sec_regulated=%t, cik=%s)\n",
		deref(first.CompanyName, "null"), first.CompanyType, deref(first.Country, "null"),
		first.IsSECRegulated, deref(first.SECCik, "null"))
	b.WriteString(`
Is this identification correct? Respond with ONLY a JSON object:
{
  "agrees": true | false,
  "company_name": "corrected or confirmed name, or null",
  "company_type": "public" | "private" | "government" | "unknown",
  "region": "region or null",
  "country": "country or null",
  "is_sec_regulated": true | false,
  "sec_cik": "10-digit CIK string or null",
  "notes": "brief reasoning"
}`)
	return b.String()
}

// newsPrompt asks the model whether public breach reporting exists for a
// classified victim.
func newsPrompt(companyName string, v models.Victim) string {
	var b strings.Builder
	b.WriteString("You are a threat intelligence analyst tracking public reporting of ransomware incidents.\n\n")
	fmt.Fprintf(&b, "Company: %s\n", companyName)
	fmt.Fprintf(&b, "Claimed by ransomware group: %s\n", v.GroupName)
	fmt.Fprintf(&b, "Leak-site posting date: %s\n", v.PostDate.Format("2006-01-02"))
	b.WriteString(`
Based on your knowledge, has this incident been reported in the news or acknowledged by the company?

Respond with ONLY a JSON object:
{
  "news_found": true | false,
  "summary": "2-3 sentence summary of the reporting, or null",
  "sources": ["publication or site names"],
  "first_news_date": "YYYY-MM-DD or null",
  "company_acknowledged": true | false
}

If you have no knowledge of reporting on this incident, set "news_found" to false and leave the other fields null or empty.`)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func deref(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}

func parseNewsDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
