package models

import "time"

// ExperimentSession identifies a returning anonymous browser. Only a SHA-256
// hash of the session token is stored, never the raw token.
type ExperimentSession struct {
	ID               int64
	SessionTokenHash string
	CreatedAt        time.Time
	LastSeenAt       time.Time
}

// Demographics are the survey fields shared by every experiment.
type Demographics struct {
	AgeRange              string
	GenderIdentity        string
	CountryOrRegion       string
	EducationLevel        string
	EmploymentStatus      string
	IncomeRange           string
	BrowserLanguage       *string
	TimezoneOffsetMinutes *int
}

// ExperimentResponse is one respondent's answer plus demographics. The
// task-specific columns are nullable: dictator-game rows carry AmountGiven and
// AmountKept, temporal-discounting rows carry DonationTiming.
type ExperimentResponse struct {
	ID             int64
	SessionID      int64
	ExperimentSlug string
	AmountGiven    *int
	AmountKept     *int
	DonationTiming *string
	Demographics
	CreatedAt time.Time
}
