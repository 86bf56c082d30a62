package wizard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftlab/assessor/pkg/api"
	"github.com/driftlab/assessor/pkg/draft"
	"github.com/driftlab/assessor/pkg/models"
)

// Submitter is the slice of the API client the session needs for the final
// submit call.
type Submitter interface {
	SubmitAssessment(ctx context.Context, assessment *models.Assessment) (*api.SubmitResult, error)
}

// SubmitOutcome reports a submission attempt. Duplicate and throttled are
// business outcomes, not failures; only Err-returning paths are genuine
// errors.
type SubmitOutcome struct {
	Accepted     bool
	AssessmentID string
	WorkflowID   string

	// Duplicate outcome: the backend reports an assessment with the same
	// identifying fields already exists. The draft is kept so the user can
	// choose between viewing the existing assessment and editing further.
	Duplicate  bool
	ExistingID string

	// Throttled outcome: the local guard refused the attempt.
	Throttled bool
	RetryIn   time.Duration

	// Per-field validation findings; set when the payload is incomplete.
	FieldErrors []FieldError
}

// Session is one user's pass through the intake wizard. It owns the
// in-memory form state and coordinates the draft manager, submission
// guard, and API client. Safe for concurrent access by the autosave timer.
type Session struct {
	manager   *draft.Manager
	guard     *draft.Guard
	submitter Submitter
	logger    *slog.Logger

	mu           sync.Mutex
	fields       models.FieldMap
	stepIndex    int
	assessmentID string
}

// NewFormID generates the client-side opaque identifier created once per
// wizard session.
func NewFormID() string {
	return "form-" + uuid.New().String()[:8]
}

// NewSession starts a wizard session on an empty form.
func NewSession(manager *draft.Manager, guard *draft.Guard, submitter Submitter, logger *slog.Logger) *Session {
	return &Session{
		manager:   manager,
		guard:     guard,
		submitter: submitter,
		logger:    logger,
		fields:    make(models.FieldMap),
	}
}

// Answer records one field value on the current form.
func (s *Session) Answer(field string, value models.FieldValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fields[field] = value
}

// Fields returns a snapshot of the current answers.
func (s *Session) Fields() models.FieldMap {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fields.Clone()
}

// StepIndex returns the current position in the step sequence.
func (s *Session) StepIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stepIndex
}

// AssessmentID returns the server-assigned draft id, empty while the
// draft is local-only.
func (s *Session) AssessmentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.assessmentID
}

// CurrentStep returns the step the user is on.
func (s *Session) CurrentStep() Step {
	return steps[s.StepIndex()]
}

// Next validates the current step and advances past it when clean. The
// findings are returned for display; a non-empty list leaves the position
// unchanged.
func (s *Session) Next() []FieldError {
	s.mu.Lock()
	defer s.mu.Unlock()

	findings := ValidateStep(s.stepIndex, s.fields)
	if len(findings) > 0 {
		return findings
	}

	if s.stepIndex < len(steps)-1 {
		s.stepIndex++
	}

	return nil
}

// Back moves to the previous step. No validation: going back never loses
// entered values.
func (s *Session) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stepIndex > 0 {
		s.stepIndex--
	}
}

// Restore loads the saved draft, if any, into the session. Returns true
// when a draft was restored.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	record, err := s.manager.LoadDraft(ctx, s.AssessmentID())
	if err != nil {
		return false, err
	}

	if record == nil {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.fields = record.Fields.Clone()
	if s.fields == nil {
		s.fields = make(models.FieldMap)
	}

	s.stepIndex = record.StepIndex
	if s.stepIndex < 0 {
		s.stepIndex = 0
	}

	if s.stepIndex >= len(steps) {
		s.stepIndex = len(steps) - 1
	}

	s.assessmentID = record.AssessmentID

	return true, nil
}

// Save writes the current form state through the draft manager.
func (s *Session) Save(ctx context.Context) draft.SaveResult {
	result := s.manager.SaveDraft(ctx, s.Fields(), s.StepIndex(), s.AssessmentID())
	s.setAssessmentID(result.AssessmentID)

	return result
}

// StartAutoSave begins silent periodic saving of whatever the session
// holds at each tick. The server-assigned draft id flows back into the
// session so later ticks update the same remote draft and a post-submit
// cleanup can find it. The returned cancel must run on teardown.
func (s *Session) StartAutoSave(ctx context.Context, interval time.Duration) func() {
	return s.manager.SetupAutoSave(ctx, s.Fields, s.StepIndex, s.AssessmentID, s.setAssessmentID, interval)
}

func (s *Session) setAssessmentID(id string) {
	if id == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.assessmentID = id
}

// Discard throws the draft away on explicit user request.
func (s *Session) Discard(ctx context.Context) error {
	return s.manager.ClearDraft(ctx, s.AssessmentID())
}

// Submit runs the guarded final submission. The draft is cleared only
// after the backend confirms acceptance; duplicate and throttled outcomes
// keep it intact.
func (s *Session) Submit(ctx context.Context) (*SubmitOutcome, error) {
	if findings := ValidateAll(s.Fields()); len(findings) > 0 {
		return &SubmitOutcome{FieldErrors: findings}, nil
	}

	if !s.guard.CanSubmit() {
		return &SubmitOutcome{Throttled: true, RetryIn: s.guard.RemainingCooldown()}, nil
	}

	assessment := s.buildAssessment()

	s.guard.RecordAttempt()

	result, err := s.submitter.SubmitAssessment(ctx, assessment)

	switch {
	case err == nil:
		s.guard.RecordSuccess()

		clearErr := s.manager.ClearDraft(ctx, s.AssessmentID())
		if clearErr != nil {
			s.logger.Warn("submitted but draft cleanup failed", "error", clearErr)
		}

		return &SubmitOutcome{
			Accepted:     true,
			AssessmentID: result.AssessmentID,
			WorkflowID:   result.WorkflowID,
		}, nil

	case api.IsDuplicate(err):
		// Business outcome, not a transport failure: refund the guard slot
		// and keep the draft so the user can still edit and resubmit.
		s.guard.RecordFailureRelax()

		existingID, _ := api.DuplicateID(err)

		return &SubmitOutcome{Duplicate: true, ExistingID: existingID}, nil

	case api.IsRateLimit(err):
		// The server already rejected; tightening the local counter would
		// compound the limit instead of preventing it.
		s.guard.RecordFailureRelax()

		return nil, err

	default:
		s.guard.RecordFailure()

		return nil, err
	}
}

func (s *Session) buildAssessment() *models.Assessment {
	fields := s.Fields()

	return &models.Assessment{
		CompanyName:  fields["company_name"].Text,
		ContactEmail: fields["contact_email"].Text,
		Status:       models.AssessmentStatusSubmitted,
		DraftData:    fields,
		CurrentStep:  s.StepIndex(),
	}
}
