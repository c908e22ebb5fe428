package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/signrelay/signrelay/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// GenerativeStatus summarizes the connector for CLI output.
type GenerativeStatus struct {
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Available  bool      `json:"available"`
	InCooldown bool      `json:"in_cooldown"`
	RetryAfter time.Time `json:"retry_after,omitempty"`
	LastOK     time.Time `json:"last_success_at,omitempty"`
}

// Report is what `status` and `ask` print.
type Report struct {
	CheckedAt  time.Time              `json:"checked_at"`
	Services   []core.ServiceEndpoint `json:"services,omitempty"`
	Generative *GenerativeStatus      `json:"generative,omitempty"`
	Input      string                 `json:"input,omitempty"`
	Reply      string                 `json:"reply,omitempty"`
}

// Formatter renders a report.
type Formatter interface {
	FormatReport(report *Report) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &TableFormatter{Markdown: true}
	default:
		return &TableFormatter{}
	}
}

func reachableLabel(ok bool) string {
	if ok {
		return "reachable"
	}
	return "unreachable"
}

func endpointLabel(ep core.ServiceEndpoint) string {
	switch {
	case ep.Selected != "":
		return ep.Selected
	case ep.LastGood != "":
		return ep.LastGood + " (last good)"
	case len(ep.Candidates) > 0:
		return ep.Candidates[0] + " (unverified)"
	default:
		return "-"
	}
}

func generativeLabel(g *GenerativeStatus) string {
	switch {
	case g.InCooldown:
		return fmt.Sprintf("cooldown until %s", g.RetryAfter.Format(time.RFC3339))
	case g.Available:
		return "available"
	default:
		return "unavailable"
	}
}
