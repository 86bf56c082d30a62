// Package draft owns the lifecycle of an in-progress intake form: at most
// one authoritative draft per session, synchronized between in-memory
// state, local storage, and the backend, with silent autosave.
package draft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/driftlab/assessor/pkg/eventbus"
	"github.com/driftlab/assessor/pkg/events"
	"github.com/driftlab/assessor/pkg/localstore"
	"github.com/driftlab/assessor/pkg/models"
)

// ErrStepOutOfRange indicates a step index outside [0, stepCount-1].
var ErrStepOutOfRange = errors.New("step index out of range")

// RemoteStore is the backend half of draft persistence, implemented by the
// API client. nil disables remote saves entirely (offline mode).
type RemoteStore interface {
	SaveProgress(ctx context.Context, record *models.DraftRecord) (string, error)
	LoadProgress(ctx context.Context, assessmentID string) (*models.DraftRecord, error)
	DeleteProgress(ctx context.Context, assessmentID string) error
}

// SaveLocation records which store accepted a save.
type SaveLocation string

const (
	SavedRemote  SaveLocation = "remote"
	SavedLocal   SaveLocation = "local"
	SavedNowhere SaveLocation = "none"
)

// SaveResult reports a save attempt. Saving never panics or propagates an
// error past this boundary: a failed save must not interrupt data entry,
// so callers get a result value and the form stays usable in a degraded,
// unsynced mode.
type SaveResult struct {
	Saved        bool
	Location     SaveLocation
	AssessmentID string // Server-assigned id, set once a remote draft exists
	Err          error  // Recorded for logging/inspection, never thrown
}

// Manager synchronizes one wizard session's draft.
type Manager struct {
	formID    string
	stepCount int
	remote    RemoteStore
	local     localstore.DraftStore
	bus       eventbus.EventBus
	logger    *slog.Logger
	now       func() time.Time
}

// NewManager creates a manager for one wizard session. formID is the
// client-generated opaque id created once per session.
func NewManager(formID string, stepCount int, remote RemoteStore, local localstore.DraftStore, logger *slog.Logger) *Manager {
	return &Manager{
		formID:    formID,
		stepCount: stepCount,
		remote:    remote,
		local:     local,
		logger:    logger,
		now:       time.Now,
	}
}

// WithBus attaches the notification bus; saves then publish DraftSaved events.
func (m *Manager) WithBus(bus eventbus.EventBus) *Manager {
	m.bus = bus

	return m
}

// WithClock overrides the timestamp source. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now

	return m
}

// FormID returns the session's form id.
func (m *Manager) FormID() string {
	return m.formID
}

// SaveDraft writes a snapshot of the current form state. Remote save is
// tried first (create on first save, update once an assessment id is
// known); any remote failure falls back to a local write so progress is
// never silently lost. Both paths carry the same payload shape so a later
// remote sync can reconcile.
func (m *Manager) SaveDraft(ctx context.Context, fields models.FieldMap, stepIndex int, assessmentID string) SaveResult {
	if stepIndex < 0 || stepIndex >= m.stepCount {
		return SaveResult{
			Location: SavedNowhere,
			Err:      fmt.Errorf("%w: %d not in [0,%d)", ErrStepOutOfRange, stepIndex, m.stepCount),
		}
	}

	record := &models.DraftRecord{
		FormID:       m.formID,
		AssessmentID: assessmentID,
		StepIndex:    stepIndex,
		Fields:       fields.Clone(),
		SavedAt:      m.now().UTC(),
	}

	if m.remote != nil {
		remoteID, err := m.remote.SaveProgress(ctx, record)
		if err == nil {
			record.AssessmentID = remoteID
			m.publishSaved(ctx, record, true)

			return SaveResult{Saved: true, Location: SavedRemote, AssessmentID: remoteID}
		}

		m.logger.Debug("remote draft save failed, falling back to local",
			"form_id", m.formID, "error", err)
	}

	err := m.local.Save(ctx, record)
	if err != nil {
		m.logger.Warn("draft save failed on both stores", "form_id", m.formID, "error", err)

		return SaveResult{Location: SavedNowhere, AssessmentID: assessmentID, Err: err}
	}

	m.publishSaved(ctx, record, false)

	return SaveResult{Saved: true, Location: SavedLocal, AssessmentID: assessmentID}
}

// LoadDraft restores a saved draft. The remote store is consulted when an
// assessment id is known; otherwise the newest local record wins. A nil
// record with nil error means no draft exists and the caller shows a fresh
// form.
func (m *Manager) LoadDraft(ctx context.Context, assessmentID string) (*models.DraftRecord, error) {
	if assessmentID != "" && m.remote != nil {
		record, err := m.remote.LoadProgress(ctx, assessmentID)
		if err == nil {
			return record, nil
		}

		m.logger.Debug("remote draft load failed, falling back to local",
			"assessment_id", assessmentID, "error", err)
	}

	record, err := m.local.Latest(ctx)
	if err != nil {
		if localstore.IsNoDrafts(err) || localstore.IsDraftNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	return record, nil
}

// ClearDraft deletes the remote draft (when one exists) and the local copy.
// Called only after a confirmed successful submission or an explicit
// discard, never speculatively.
func (m *Manager) ClearDraft(ctx context.Context, assessmentID string) error {
	var errs []error

	if assessmentID != "" && m.remote != nil {
		err := m.remote.DeleteProgress(ctx, assessmentID)
		if err != nil {
			errs = append(errs, fmt.Errorf("remote: %w", err))
		}
	}

	err := m.local.Delete(ctx, m.formID)
	if err != nil {
		errs = append(errs, fmt.Errorf("local: %w", err))
	}

	return errors.Join(errs...)
}

// HasDraft is a cheap local-presence check usable for UI gating such as a
// "Restore Session" affordance. It says nothing about remote drafts.
func (m *Manager) HasDraft(ctx context.Context) bool {
	return m.local.Has(ctx)
}

// SetupAutoSave starts a repeating timer that saves the values returned by
// the accessors at each tick, so the latest in-memory state is always what
// gets written, not a snapshot from registration time. A server-assigned
// assessment id is fed back through setAssessmentID so the first remote
// save creates the draft and every following tick updates it; without the
// feedback each tick would create another remote draft. The returned
// cancel must be called on teardown; it is idempotent, and cancellation of
// ctx stops the timer as well. Ticks are not queued: a save still in
// flight when the next tick fires does not block it, which at worst
// produces a last-write-wins race on the remote draft, acceptable for
// idempotent snapshots.
func (m *Manager) SetupAutoSave(
	ctx context.Context,
	getFields func() models.FieldMap,
	getStepIndex func() int,
	getAssessmentID func() string,
	setAssessmentID func(string),
	interval time.Duration,
) func() {
	stopCh := make(chan struct{})

	var once sync.Once

	cancel := func() {
		once.Do(func() {
			close(stopCh)
		})
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				result := m.SaveDraft(ctx, getFields(), getStepIndex(), getAssessmentID())
				if result.Err != nil {
					m.logger.Debug("autosave tick failed", "form_id", m.formID, "error", result.Err)
				}

				if result.AssessmentID != "" && setAssessmentID != nil {
					setAssessmentID(result.AssessmentID)
				}
			}
		}
	}()

	return cancel
}

func (m *Manager) publishSaved(ctx context.Context, record *models.DraftRecord, remote bool) {
	if m.bus == nil {
		return
	}

	event := events.DraftSaved{
		BaseEvent:    events.NewBaseEvent(events.DraftSavedEvent, ""),
		FormID:       record.FormID,
		AssessmentID: record.AssessmentID,
		Remote:       remote,
	}

	err := m.bus.Publish(ctx, record.FormID, event)
	if err != nil {
		m.logger.Debug("failed to publish draft saved event", "error", err)
	}
}
