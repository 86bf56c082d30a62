package draft

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/assessor/pkg/localstore"
	"github.com/driftlab/assessor/pkg/log"
	"github.com/driftlab/assessor/pkg/models"
)

// fakeRemote is an in-memory RemoteStore whose failure mode is switchable
// mid-test. Every create allocates a fresh id, like the real backend, so
// a caller that loses the returned id shows up as extra drafts. Mutex-
// guarded because the autosave timer calls it from its own goroutine.
type fakeRemote struct {
	mu      sync.Mutex
	failing bool
	records map[string]*models.DraftRecord
	created int
	saves   int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: make(map[string]*models.DraftRecord)}
}

func (r *fakeRemote) SaveProgress(_ context.Context, record *models.DraftRecord) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failing {
		return "", errors.New("backend down")
	}

	r.saves++

	id := record.AssessmentID
	if id == "" {
		r.created++
		id = fmt.Sprintf("a-%d", r.created)
	}

	clone := *record
	clone.AssessmentID = id
	r.records[id] = &clone

	return id, nil
}

func (r *fakeRemote) LoadProgress(_ context.Context, assessmentID string) (*models.DraftRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failing {
		return nil, errors.New("backend down")
	}

	record, ok := r.records[assessmentID]
	if !ok {
		return nil, errors.New("not found")
	}

	return record, nil
}

func (r *fakeRemote) DeleteProgress(_ context.Context, assessmentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failing {
		return errors.New("backend down")
	}

	delete(r.records, assessmentID)

	return nil
}

func (r *fakeRemote) setFailing(failing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing = failing
}

func (r *fakeRemote) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.saves
}

func (r *fakeRemote) record(id string) *models.DraftRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.records[id]
}

func (r *fakeRemote) draftCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.records)
}

func newTestManager(t *testing.T, remote RemoteStore) *Manager {
	t.Helper()

	local := localstore.NewFileStore(t.TempDir())

	return NewManager("f1", 8, remote, local, log.WithModule("test"))
}

func sampleFields() models.FieldMap {
	return models.FieldMap{
		"company_name":  models.TextValue("Acme"),
		"contact_email": models.TextValue("a@b.test"),
	}
}

func TestSaveDraftPrefersRemote(t *testing.T) {
	remote := newFakeRemote()
	manager := newTestManager(t, remote)

	result := manager.SaveDraft(t.Context(), sampleFields(), 1, "")

	assert.True(t, result.Saved)
	assert.Equal(t, SavedRemote, result.Location)
	assert.Equal(t, "a-1", result.AssessmentID)
}

func TestSaveDraftFallsBackToLocal(t *testing.T) {
	remote := newFakeRemote()
	remote.setFailing(true)
	manager := newTestManager(t, remote)

	result := manager.SaveDraft(t.Context(), sampleFields(), 1, "")

	assert.True(t, result.Saved)
	assert.Equal(t, SavedLocal, result.Location)
	assert.Empty(t, result.AssessmentID)

	// The fallback copy must restore intact.
	record, err := manager.LoadDraft(t.Context(), "")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, sampleFields().Equal(record.Fields))
	assert.Equal(t, 1, record.StepIndex)
}

func TestSaveDraftNeverReturnsHardError(t *testing.T) {
	remote := newFakeRemote()
	remote.setFailing(true)
	manager := newTestManager(t, remote)

	result := manager.SaveDraft(t.Context(), sampleFields(), 1, "")

	// Even a remote failure yields a result value, not a panic or an
	// error-returning path; the form must stay usable.
	assert.True(t, result.Saved)
	assert.NoError(t, result.Err)
}

func TestSaveDraftOfflineMode(t *testing.T) {
	manager := newTestManager(t, nil)

	result := manager.SaveDraft(t.Context(), sampleFields(), 0, "")

	assert.True(t, result.Saved)
	assert.Equal(t, SavedLocal, result.Location)
}

func TestSaveDraftStepOutOfRange(t *testing.T) {
	manager := newTestManager(t, newFakeRemote())

	result := manager.SaveDraft(t.Context(), sampleFields(), 8, "")

	assert.False(t, result.Saved)
	assert.Equal(t, SavedNowhere, result.Location)
	assert.ErrorIs(t, result.Err, ErrStepOutOfRange)

	result = manager.SaveDraft(t.Context(), sampleFields(), -1, "")
	assert.ErrorIs(t, result.Err, ErrStepOutOfRange)
}

func TestLoadDraftFreshForm(t *testing.T) {
	manager := newTestManager(t, newFakeRemote())

	record, err := manager.LoadDraft(t.Context(), "")
	require.NoError(t, err)
	assert.Nil(t, record, "no draft means a fresh form, not an error")
}

func TestLoadDraftRemoteWins(t *testing.T) {
	remote := newFakeRemote()
	manager := newTestManager(t, remote)

	manager.SaveDraft(t.Context(), sampleFields(), 3, "")

	record, err := manager.LoadDraft(t.Context(), "a-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 3, record.StepIndex)
}

func TestLoadDraftFallsBackToLocalWhenRemoteFails(t *testing.T) {
	remote := newFakeRemote()
	manager := newTestManager(t, remote)

	// Save while the backend is down so only a local copy exists.
	remote.setFailing(true)
	manager.SaveDraft(t.Context(), sampleFields(), 2, "a-1")

	record, err := manager.LoadDraft(t.Context(), "a-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 2, record.StepIndex)
}

func TestClearDraftRemovesBothCopies(t *testing.T) {
	remote := newFakeRemote()
	manager := newTestManager(t, remote)

	manager.SaveDraft(t.Context(), sampleFields(), 1, "")

	remote.setFailing(true)
	manager.SaveDraft(t.Context(), sampleFields(), 1, "a-1")
	remote.setFailing(false)

	require.True(t, manager.HasDraft(t.Context()))

	err := manager.ClearDraft(t.Context(), "a-1")
	require.NoError(t, err)

	assert.False(t, manager.HasDraft(t.Context()))
	assert.Empty(t, remote.records)
}

// sharedAssessmentID mimics the session state the autosave accessors read
// and write across goroutines.
type sharedAssessmentID struct {
	mu sync.Mutex
	id string
}

func (s *sharedAssessmentID) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.id
}

func (s *sharedAssessmentID) set(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

func TestAutoSaveWritesLatestState(t *testing.T) {
	remote := newFakeRemote()
	manager := newTestManager(t, remote)

	var step atomic.Int64

	var assessmentID sharedAssessmentID

	cancel := manager.SetupAutoSave(
		t.Context(),
		sampleFields,
		func() int { return int(step.Load()) },
		assessmentID.get,
		assessmentID.set,
		10*time.Millisecond,
	)
	defer cancel()

	require.Eventually(t, func() bool {
		return remote.saveCount() > 0
	}, time.Second, 5*time.Millisecond)

	// Mutate state between ticks; the next tick must pick it up.
	step.Store(4)

	require.Eventually(t, func() bool {
		record := remote.record("a-1")

		return record != nil && record.StepIndex == 4
	}, time.Second, 5*time.Millisecond)
}

func TestAutoSaveUpdatesSingleRemoteDraft(t *testing.T) {
	remote := newFakeRemote()
	manager := newTestManager(t, remote)

	var assessmentID sharedAssessmentID

	cancel := manager.SetupAutoSave(
		t.Context(),
		sampleFields,
		func() int { return 0 },
		assessmentID.get,
		assessmentID.set,
		10*time.Millisecond,
	)
	defer cancel()

	require.Eventually(t, func() bool {
		return remote.saveCount() >= 4
	}, time.Second, 5*time.Millisecond)

	// The first tick creates the draft; every later tick must update it.
	// Losing the returned id would create one remote draft per tick.
	assert.Equal(t, 1, remote.draftCount())
	assert.Equal(t, "a-1", assessmentID.get())
}

func TestAutoSaveCancelIsIdempotent(t *testing.T) {
	manager := newTestManager(t, newFakeRemote())

	cancel := manager.SetupAutoSave(
		t.Context(),
		sampleFields,
		func() int { return 0 },
		func() string { return "" },
		nil,
		time.Hour,
	)

	cancel()
	cancel()
}
