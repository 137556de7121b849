package experiments

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ewhitford/labsite/internal/models"
)

// The payload schema is strict: unknown fields are rejected so that form bugs
// and probing noise fail loudly instead of being silently dropped.

var sharedPayloadFields = []string{
	"ageRange",
	"genderIdentity",
	"countryOrRegion",
	"educationLevel",
	"employmentStatus",
	"incomeRange",
	"browserLanguage",
	"timezoneOffsetMinutes",
	"honeypot",
}

func decodeFields(payload []byte, taskFields []string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object")
	}
	allowed := make(map[string]bool, len(sharedPayloadFields)+len(taskFields))
	for _, name := range sharedPayloadFields {
		allowed[name] = true
	}
	for _, name := range taskFields {
		allowed[name] = true
	}
	for key := range fields {
		if !allowed[key] {
			return nil, fmt.Errorf("unknown field %q", key)
		}
	}
	return fields, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool, error) {
	raw, ok := fields[key]
	if !ok {
		return "", false, nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", true, fmt.Errorf("%s must be a string", key)
	}
	return value, true, nil
}

func intField(fields map[string]json.RawMessage, key string) (int, bool, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, false, nil
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, true, fmt.Errorf("%s must be a number", key)
	}
	if value != math.Trunc(value) {
		return 0, true, fmt.Errorf("%s must be an integer", key)
	}
	return int(value), true, nil
}

func enumField(fields map[string]json.RawMessage, key string, options []string) (string, error) {
	value, present, err := stringField(fields, key)
	if err != nil {
		return "", err
	}
	if !present {
		return "", fmt.Errorf("%s is required", key)
	}
	if !isOption(value, options) {
		return "", fmt.Errorf("%s is not an allowed value", key)
	}
	return value, nil
}

func validateDemographics(fields map[string]json.RawMessage) (models.Demographics, error) {
	var d models.Demographics
	var err error

	if d.AgeRange, err = enumField(fields, "ageRange", AgeRangeOptions); err != nil {
		return d, err
	}
	if d.GenderIdentity, err = enumField(fields, "genderIdentity", GenderIdentityOptions); err != nil {
		return d, err
	}
	if d.EducationLevel, err = enumField(fields, "educationLevel", EducationLevelOptions); err != nil {
		return d, err
	}
	if d.EmploymentStatus, err = enumField(fields, "employmentStatus", EmploymentStatusOptions); err != nil {
		return d, err
	}
	if d.IncomeRange, err = enumField(fields, "incomeRange", IncomeRangeOptions); err != nil {
		return d, err
	}

	country, present, err := stringField(fields, "countryOrRegion")
	if err != nil {
		return d, err
	}
	if !present {
		return d, fmt.Errorf("countryOrRegion is required")
	}
	country = strings.TrimSpace(country)
	if len(country) < 2 || len(country) > 120 {
		return d, fmt.Errorf("countryOrRegion must be 2-120 characters")
	}
	d.CountryOrRegion = country

	lang, present, err := stringField(fields, "browserLanguage")
	if err != nil {
		return d, err
	}
	if present {
		lang = strings.TrimSpace(lang)
		if len(lang) < 2 || len(lang) > 35 {
			return d, fmt.Errorf("browserLanguage must be 2-35 characters")
		}
		d.BrowserLanguage = &lang
	}

	offset, present, err := intField(fields, "timezoneOffsetMinutes")
	if err != nil {
		return d, err
	}
	if present {
		if offset < -840 || offset > 840 {
			return d, fmt.Errorf("timezoneOffsetMinutes out of range")
		}
		d.TimezoneOffsetMinutes = &offset
	}

	// The honeypot is a hidden form field. Anything in it means an automated
	// submission; it fails as a plain validation error on purpose.
	honeypot, present, err := stringField(fields, "honeypot")
	if err != nil {
		return d, err
	}
	if present && honeypot != "" {
		return d, fmt.Errorf("honeypot field populated")
	}

	return d, nil
}

func (s *Service) validate(payload []byte) (*models.ExperimentResponse, error) {
	fields, err := decodeFields(payload, s.task.Fields)
	if err != nil {
		return nil, err
	}
	demographics, err := validateDemographics(fields)
	if err != nil {
		return nil, err
	}
	resp := &models.ExperimentResponse{Demographics: demographics}
	if err := s.task.Decode(fields, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
