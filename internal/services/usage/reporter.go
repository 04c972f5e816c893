// Package usage cross-checks the pipeline's character counter against the
// provider's billing export. The report is advisory: the run coordinator logs
// failures and moves on, because billing visibility must never block
// publication.
package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services"
)

const queryEndpoint = "https://bigquery.googleapis.com/bigquery/v2/projects/%s/queries"

// GroupUsage is month-to-date characters for one voice tier.
type GroupUsage struct {
	Group      string
	Characters int64
	FreeTier   int64
	Remaining  int64
}

// DayUsage is total characters billed on one day.
type DayUsage struct {
	Date       string
	Characters int64
}

// Report summarizes month-to-date synthesis billing.
type Report struct {
	MonthStart string
	Total      int64
	ByGroup    []GroupUsage
	Daily      []DayUsage
}

// Reporter queries the billing export table.
type Reporter struct {
	project      string
	table        string
	token        string
	freeStandard int64
	freePremium  int64
	client       *http.Client
}

// NewReporter builds a reporter, or returns an error when the billing export
// is not configured.
func NewReporter(cfg *config.Config) (*Reporter, error) {
	if cfg.Usage.Project == "" || cfg.Usage.BillingTable == "" || cfg.Usage.Token == "" {
		return nil, services.Wrap(services.ErrConfiguration, "usage", "init",
			"usage.project, usage.billing_table, and usage.token required", nil)
	}
	return &Reporter{
		project:      cfg.Usage.Project,
		table:        cfg.Usage.BillingTable,
		token:        cfg.Usage.Token,
		freeStandard: cfg.Usage.FreeTierStandard,
		freePremium:  cfg.Usage.FreeTierPremium,
		client:       &http.Client{Timeout: time.Duration(cfg.Usage.TimeoutSeconds) * time.Second},
	}, nil
}

// Collect queries month-to-date synthesis usage grouped by voice tier and day.
func (r *Reporter) Collect(ctx context.Context) (*Report, error) {
	monthStart := time.Now().UTC().Format("2006-01") + "-01"
	query := fmt.Sprintf(`
SELECT
  CASE WHEN LOWER(sku.description) LIKE '%%wavenet%%' OR LOWER(sku.description) LIKE '%%neural%%'
       THEN 'premium' ELSE 'standard' END AS voice_group,
  FORMAT_DATE('%%F', DATE(usage_start_time)) AS usage_day,
  CAST(SUM(usage.amount) AS INT64) AS characters
FROM %s
WHERE service.description = 'Cloud Text-to-Speech API'
  AND DATE(usage_start_time) >= DATE('%s')
GROUP BY voice_group, usage_day
ORDER BY usage_day`, "`"+r.table+"`", monthStart)

	rows, err := r.runQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	report := &Report{MonthStart: monthStart}
	groups := map[string]int64{}
	daily := map[string]int64{}
	var days []string
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		group, day := row[0], row[1]
		chars, _ := strconv.ParseInt(row[2], 10, 64)
		groups[group] += chars
		if _, seen := daily[day]; !seen {
			days = append(days, day)
		}
		daily[day] += chars
		report.Total += chars
	}

	for _, group := range []string{"standard", "premium"} {
		chars, ok := groups[group]
		if !ok {
			continue
		}
		free := r.freeStandard
		if group == "premium" {
			free = r.freePremium
		}
		remaining := free - chars
		if remaining < 0 {
			remaining = 0
		}
		report.ByGroup = append(report.ByGroup, GroupUsage{
			Group: group, Characters: chars, FreeTier: free, Remaining: remaining,
		})
	}
	for _, day := range days {
		report.Daily = append(report.Daily, DayUsage{Date: day, Characters: daily[day]})
	}
	return report, nil
}

type queryResponse struct {
	JobComplete bool `json:"jobComplete"`
	Rows        []struct {
		F []struct {
			V any `json:"v"`
		} `json:"f"`
	} `json:"rows"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (r *Reporter) runQuery(ctx context.Context, sql string) ([][]string, error) {
	payload, err := json.Marshal(map[string]any{
		"query":        sql,
		"useLegacySql": false,
		"timeoutMs":    30000,
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf(queryEndpoint, r.project)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "usage", "query", "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "usage", "query", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, "usage", "query",
			fmt.Sprintf("status %d: %s", resp.StatusCode, firstLine(body)), nil)
	}

	var parsed queryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	if !parsed.JobComplete {
		return nil, services.Wrap(services.ErrTimeout, "usage", "query",
			"query did not complete in time", nil)
	}

	rows := make([][]string, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		fields := make([]string, 0, len(row.F))
		for _, f := range row.F {
			fields = append(fields, fmt.Sprintf("%v", f.V))
		}
		rows = append(rows, fields)
	}
	return rows, nil
}

func firstLine(body []byte) string {
	s := strings.TrimSpace(string(body))
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
