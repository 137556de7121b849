// Package experiments implements the behavioral-experiment submission
// workflow: payload validation, anonymous session identity, deduplicated
// persistence, and CSV export. Both experiments share this one service,
// parameterized by a TaskSpec for their task-specific field.
package experiments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ewhitford/labsite/internal/models"
)

// Endowment is the amount split in the dictator game; AmountStep is the
// increment the form offers.
const (
	Endowment  = 100
	AmountStep = 5
)

// ErrDuplicateResponse signals that the storage uniqueness constraint on
// (session, experiment slug) rejected an insert. It is an expected outcome of
// repeat submission, not a failure.
var ErrDuplicateResponse = errors.New("response already recorded for this session and experiment")

// Store is the persistence surface the service needs.
type Store interface {
	UpsertSession(ctx context.Context, tokenHash string) (*models.ExperimentSession, error)
	InsertResponse(ctx context.Context, r *models.ExperimentResponse) (int64, error)
	ListResponses(ctx context.Context, experimentSlug string) ([]*models.ExperimentResponse, error)
}

// Status tags the outcome of one submission attempt.
type Status string

const (
	StatusOK        Status = "ok"
	StatusDuplicate Status = "duplicate"
	StatusError     Status = "error"
)

const (
	CodeValidation = "validation"
	CodeServer     = "server"
)

// SubmitResult is the tri-state outcome returned to the HTTP layer. It
// marshals directly into the response body.
type SubmitResult struct {
	Status  Status `json:"status"`
	ID      int64  `json:"id,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	validationMessage = "Please complete all required fields using the allowed values."
	duplicateMessage  = "This browser session already submitted a response for this experiment."
	serverMessage     = "Unable to save your response right now. Please try again."
)

// TaskSpec parameterizes the shared service with one experiment's
// task-specific field: its payload keys, validator, and CSV columns.
type TaskSpec struct {
	Name    string
	Fields  []string
	Columns []string
	Decode  func(fields map[string]json.RawMessage, resp *models.ExperimentResponse) error
	Values  func(r *models.ExperimentResponse) []string
}

// DictatorTask describes the dictator-game split choice.
func DictatorTask() TaskSpec {
	return TaskSpec{
		Name:    "dictator-game",
		Fields:  []string{"amountGiven"},
		Columns: []string{"amount_given", "amount_kept"},
		Decode: func(fields map[string]json.RawMessage, resp *models.ExperimentResponse) error {
			amount, present, err := intField(fields, "amountGiven")
			if err != nil {
				return err
			}
			if !present {
				return fmt.Errorf("amountGiven is required")
			}
			if amount < 0 || amount > Endowment || amount%AmountStep != 0 {
				return fmt.Errorf("amountGiven must be 0-%d in increments of %d", Endowment, AmountStep)
			}
			kept := Endowment - amount
			resp.AmountGiven = &amount
			resp.AmountKept = &kept
			return nil
		},
		Values: func(r *models.ExperimentResponse) []string {
			return []string{optInt(r.AmountGiven), optInt(r.AmountKept)}
		},
	}
}

// TemporalTask describes the temporal-discounting sooner/later choice.
func TemporalTask() TaskSpec {
	return TaskSpec{
		Name:    "temporal-discounting",
		Fields:  []string{"donationTiming"},
		Columns: []string{"donation_timing"},
		Decode: func(fields map[string]json.RawMessage, resp *models.ExperimentResponse) error {
			timing, err := enumField(fields, "donationTiming", DonationTimingOptions)
			if err != nil {
				return err
			}
			resp.DonationTiming = &timing
			return nil
		},
		Values: func(r *models.ExperimentResponse) []string {
			return []string{optStr(r.DonationTiming)}
		},
	}
}

// Service runs the submission workflow for one experiment.
type Service struct {
	store Store
	task  TaskSpec
	slug  string
	log   *zap.SugaredLogger
}

func NewService(store Store, task TaskSpec, slug string, log *zap.SugaredLogger) *Service {
	return &Service{store: store, task: task, slug: slug, log: log}
}

// Slug returns the experiment slug responses are recorded under.
func (s *Service) Slug() string { return s.slug }

// Name returns the experiment's logical name.
func (s *Service) Name() string { return s.task.Name }

// NewSessionToken mints an opaque per-browser session token.
func NewSessionToken() string {
	return uuid.NewString()
}

// HashSessionToken derives the storage key for a raw session token.
func HashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Submit validates the payload, resolves the session, and inserts the
// response. Validation failures and duplicates are results, not errors;
// persistence failures are reported as a generic server error and logged.
func (s *Service) Submit(ctx context.Context, sessionToken string, payload []byte) SubmitResult {
	resp, err := s.validate(payload)
	if err != nil {
		s.log.Debugw("submission rejected", "experiment", s.task.Name, "reason", err)
		return SubmitResult{Status: StatusError, Code: CodeValidation, Message: validationMessage}
	}

	session, err := s.store.UpsertSession(ctx, HashSessionToken(sessionToken))
	if err != nil {
		s.log.Errorw("session upsert failed", "experiment", s.task.Name, "error", err)
		return SubmitResult{Status: StatusError, Code: CodeServer, Message: serverMessage}
	}

	resp.SessionID = session.ID
	resp.ExperimentSlug = s.slug

	id, err := s.store.InsertResponse(ctx, resp)
	if errors.Is(err, ErrDuplicateResponse) {
		return SubmitResult{Status: StatusDuplicate, Message: duplicateMessage}
	}
	if err != nil {
		s.log.Errorw("response insert failed", "experiment", s.task.Name, "error", err)
		return SubmitResult{Status: StatusError, Code: CodeServer, Message: serverMessage}
	}

	return SubmitResult{Status: StatusOK, ID: id}
}

// ExportCSV renders every persisted response for this experiment's slug,
// most recent first.
func (s *Service) ExportCSV(ctx context.Context) ([]byte, error) {
	rows, err := s.store.ListResponses(ctx, s.slug)
	if err != nil {
		return nil, fmt.Errorf("list responses for export: %w", err)
	}
	return renderCSV(s.task, rows)
}

// ExportFilename is the attachment name served with the CSV download.
func (s *Service) ExportFilename() string {
	return s.task.Name + "-responses.csv"
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
