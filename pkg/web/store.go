package web

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftlab/assessor/pkg/models"
)

// Store is the mock backend's in-memory state. It exists for local
// development and integration tests; nothing here survives a restart.
type Store struct {
	mu          sync.Mutex
	assessments map[string]*models.Assessment
	drafts      map[string]*models.DraftRecord
	workflows   map[string]*models.WorkflowProgress
}

func NewStore() *Store {
	return &Store{
		assessments: make(map[string]*models.Assessment),
		drafts:      make(map[string]*models.DraftRecord),
		workflows:   make(map[string]*models.WorkflowProgress),
	}
}

// FindDuplicate applies the backend's duplicate rule: same company name
// (case-insensitive) and contact email identify the same assessment.
func (s *Store) FindDuplicate(companyName, contactEmail string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, assessment := range s.assessments {
		if strings.EqualFold(assessment.CompanyName, companyName) &&
			strings.EqualFold(assessment.ContactEmail, contactEmail) {
			return id, true
		}
	}

	return "", false
}

func (s *Store) PutAssessment(assessment *models.Assessment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assessments[assessment.ID] = assessment
}

func (s *Store) GetAssessment(id string) (*models.Assessment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assessment, ok := s.assessments[id]

	return assessment, ok
}

func (s *Store) DeleteAssessment(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.assessments, id)
	delete(s.drafts, id)
}

// SaveDraft upserts a remote draft, assigning an assessment id on first
// save so the client can address updates.
func (s *Store) SaveDraft(record *models.DraftRecord) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.AssessmentID == "" {
		record.AssessmentID = uuid.New().String()
	}

	record.SavedAt = time.Now().UTC()
	s.drafts[record.AssessmentID] = record

	return record.AssessmentID
}

func (s *Store) GetDraft(assessmentID string) (*models.DraftRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.drafts[assessmentID]

	return record, ok
}

func (s *Store) DeleteDraft(assessmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, assessmentID)
}

func (s *Store) ListDrafts() []models.DraftSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]models.DraftSummary, 0, len(s.drafts))
	for _, record := range s.drafts {
		summaries = append(summaries, record.Summary())
	}

	return summaries
}

func (s *Store) PutWorkflow(progress *models.WorkflowProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflows[progress.ID] = progress
}

func (s *Store) GetWorkflow(id string) (*models.WorkflowProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	progress, ok := s.workflows[id]
	if !ok {
		return nil, false
	}

	snapshot := *progress
	snapshot.Steps = append([]models.WorkflowStep(nil), progress.Steps...)

	return &snapshot, true
}

// UpdateWorkflow mutates a stored workflow under the lock so the polling
// endpoint and the push simulation stay consistent.
func (s *Store) UpdateWorkflow(id string, update func(progress *models.WorkflowProgress)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	progress, ok := s.workflows[id]
	if !ok {
		return
	}

	update(progress)
	progress.UpdatedAt = time.Now().UTC()
}
