package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/leakmonitor/leakmonitor/internal/config"
	"github.com/leakmonitor/leakmonitor/internal/models"
)

// Service sends new-victim alerts via the configured channels. Channels
// with no configuration are skipped silently, so an unconfigured Service
// is a valid no-op Notifier.
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements Notifier
var _ Notifier = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams MessageCard payload
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendNewVictims alerts the configured channels that a monitored group
// published new victim postings.
func (s *Service) SendNewVictims(group string, victims []models.Victim) error {
	if len(victims) == 0 {
		return nil
	}

	var errs []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(group, victims); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errs = append(errs, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Infof("Sent Teams alert for %d new victims from %s", len(victims), group)
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(group, victims); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errs = append(errs, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Infof("Sent email alert for %d new victims from %s", len(victims), group)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s *Service) sendToTeams(group string, victims []models.Victim) error {
	message := s.buildTeamsMessage(group, victims)

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsMessage(group string, victims []models.Victim) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("New Victims Posted by %s", group),
		Text:    fmt.Sprintf("%d new victim posting(s) detected on the %s leak site", len(victims), group),
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts: []TeamsFact{
			{Name: "Group", Value: group},
			{Name: "New Postings", Value: fmt.Sprintf("%d", len(victims))},
			{Name: "Detected", Value: time.Now().UTC().Format("2006-01-02 15:04:05 UTC")},
		},
		Markdown: true,
	})

	var lines []string
	limit := 10
	if len(victims) < limit {
		limit = len(victims)
	}
	for i := 0; i < limit; i++ {
		v := victims[i]
		lines = append(lines, fmt.Sprintf("**%s** - posted %s", v.VictimRaw, v.PostDate.Format("Jan 2, 2006")))
	}
	if len(victims) > limit {
		lines = append(lines, fmt.Sprintf("...and %d more", len(victims)-limit))
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Postings",
		ActivityText:  strings.Join(lines, "\n\n"),
		Markdown:      true,
	})

	return message
}

func (s *Service) sendEmail(group string, victims []models.Victim) error {
	subject := fmt.Sprintf("Leak Monitor: %d new victim(s) posted by %s", len(victims), group)

	htmlBody, err := s.buildEmailHTML(group, victims)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", s.buildEmailText(group, victims))
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

type emailData struct {
	Group     string
	Victims   []models.Victim
	Generated time.Time
}

func (s *Service) buildEmailHTML(group string, victims []models.Victim) (string, error) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New Victim Postings</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #7b1e1e; color: white; padding: 20px; border-radius: 5px; }
        .victim { border-left: 4px solid #7b1e1e; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .victim-title { font-weight: bold; margin-bottom: 5px; }
        .victim-meta { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="header">
        <h1>New Victim Postings: {{.Group}}</h1>
        <p>{{len .Victims}} new posting(s) detected on {{.Generated.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    {{range .Victims}}
    <div class="victim">
        <div class="victim-title">{{.VictimRaw}}</div>
        <div class="victim-meta">Posted {{.PostDate.Format "Jan 2, 2006"}}</div>
        {{if .Description}}<p>{{truncate (deref .Description) 200}}</p>{{end}}
    </div>
    {{end}}

    <hr>
    <p><small>This alert was generated automatically by the leak monitor.</small></p>
</body>
</html>
`

	t := template.New("email").Funcs(template.FuncMap{
		"truncate": func(s string, length int) string {
			if len(s) <= length {
				return s
			}
			return s[:length] + "..."
		},
		"deref": func(p *string) string {
			if p == nil {
				return ""
			}
			return *p
		},
	})

	t, err := t.Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, emailData{Group: group, Victims: victims, Generated: time.Now().UTC()}); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *Service) buildEmailText(group string, victims []models.Victim) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("New Victim Postings: %s\n", group))
	text.WriteString(fmt.Sprintf("Detected: %s\n\n", time.Now().UTC().Format("2006-01-02 15:04:05 UTC")))

	for i, v := range victims {
		text.WriteString(fmt.Sprintf("%d. %s\n", i+1, v.VictimRaw))
		text.WriteString(fmt.Sprintf("   Posted: %s\n", v.PostDate.Format("Jan 2, 2006")))
		if v.Description != nil && *v.Description != "" {
			desc := *v.Description
			if len(desc) > 200 {
				desc = desc[:200] + "..."
			}
			text.WriteString(fmt.Sprintf("   Description: %s\n", desc))
		}
	}

	text.WriteString("\n---\nThis alert was generated automatically by the leak monitor.\n")

	return text.String()
}
