package experiments

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/ewhitford/labsite/internal/models"
)

// renderCSV writes a fixed header row followed by one row per response.
// encoding/csv applies RFC 4180 quoting, so commas, quotes, and newlines in
// free-text fields round-trip; nil optionals render as empty cells.
func renderCSV(task TaskSpec, rows []*models.ExperimentResponse) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	header := append([]string{"id", "experiment_slug"}, task.Columns...)
	header = append(header,
		"age_range",
		"gender_identity",
		"country_or_region",
		"education_level",
		"employment_status",
		"income_range",
		"browser_language",
		"timezone_offset_minutes",
		"created_at",
	)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, r := range rows {
		rec := append([]string{strconv.FormatInt(r.ID, 10), r.ExperimentSlug}, task.Values(r)...)
		rec = append(rec,
			r.AgeRange,
			r.GenderIdentity,
			r.CountryOrRegion,
			r.EducationLevel,
			r.EmploymentStatus,
			r.IncomeRange,
			optStr(r.BrowserLanguage),
			optInt(r.TimezoneOffsetMinutes),
			r.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}
