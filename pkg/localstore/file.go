package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/driftlab/assessor/pkg/models"
)

const (
	draftsDir    = "drafts"
	indexFile    = "index.json"
	draftPrefix  = "form_"
	draftPattern = draftPrefix + "*.json"
)

// FileStore keeps one JSON file per draft under <root>/drafts plus an
// index.json mapping form id to summary metadata.
type FileStore struct {
	root string
}

// NewFileStore creates a file-backed draft store rooted at the given
// directory. A file:// prefix is accepted and stripped.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: strings.Replace(root, "file://", "", 1)}
}

func (s *FileStore) Save(_ context.Context, record *models.DraftRecord) error {
	err := os.MkdirAll(path.Join(s.root, draftsDir), 0o750)
	if err != nil {
		return NewDraftError("Save", record.FormID, fmt.Errorf("failed to create drafts directory: %w", err))
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return NewDraftError("Save", record.FormID, fmt.Errorf("failed to marshal draft: %w", err))
	}

	err = os.WriteFile(s.draftPath(record.FormID), data, 0o600)
	if err != nil {
		return NewDraftError("Save", record.FormID, err)
	}

	index, err := s.readIndex()
	if err != nil {
		index = s.rebuildIndex()
	}

	index[record.FormID] = record.Summary()

	err = s.writeIndex(index)
	if err != nil {
		return NewDraftError("Save", record.FormID, err)
	}

	return nil
}

func (s *FileStore) Get(_ context.Context, formID string) (*models.DraftRecord, error) {
	body, err := os.ReadFile(s.draftPath(formID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewDraftError("Get", formID, ErrDraftNotFound)
		}

		return nil, NewDraftError("Get", formID, err)
	}

	var record models.DraftRecord

	err = json.Unmarshal(body, &record)
	if err != nil {
		return nil, NewDraftError("Get", formID, fmt.Errorf("failed to unmarshal draft: %w", err))
	}

	return &record, nil
}

func (s *FileStore) Latest(ctx context.Context) (*models.DraftRecord, error) {
	summaries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	if len(summaries) == 0 {
		return nil, NewDraftError("Latest", "", ErrNoDrafts)
	}

	return s.Get(ctx, summaries[0].FormID)
}

func (s *FileStore) Delete(_ context.Context, formID string) error {
	err := os.Remove(s.draftPath(formID))
	if err != nil && !os.IsNotExist(err) {
		return NewDraftError("Delete", formID, err)
	}

	index, err := s.readIndex()
	if err != nil {
		index = s.rebuildIndex()
	}

	delete(index, formID)

	err = s.writeIndex(index)
	if err != nil {
		return NewDraftError("Delete", formID, err)
	}

	return nil
}

func (s *FileStore) List(_ context.Context) ([]models.DraftSummary, error) {
	index, err := s.readIndex()
	if err != nil {
		index = s.rebuildIndex()
	}

	summaries := make([]models.DraftSummary, 0, len(index))
	for _, summary := range index {
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].SavedAt.After(summaries[j].SavedAt)
	})

	return summaries, nil
}

func (s *FileStore) Has(_ context.Context) bool {
	index, err := s.readIndex()
	if err != nil {
		return len(s.rebuildIndex()) > 0
	}

	return len(index) > 0
}

func (s *FileStore) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file storage there is nothing
// to clean up.
func (s *FileStore) Close(_ context.Context) error {
	return nil
}

func (s *FileStore) draftPath(formID string) string {
	return filepath.Clean(path.Join(s.root, draftsDir, draftPrefix+formID+".json"))
}

func (s *FileStore) indexPath() string {
	return path.Join(s.root, draftsDir, indexFile)
}

func (s *FileStore) readIndex() (map[string]models.DraftSummary, error) {
	body, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]models.DraftSummary), nil
		}

		return nil, err
	}

	index := make(map[string]models.DraftSummary)

	err = json.Unmarshal(body, &index)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexCorrupt, err)
	}

	return index, nil
}

// rebuildIndex recovers the index by scanning the drafts directory. Only
// used when index.json is missing entries or unparseable; normal reads go
// through the index alone.
func (s *FileStore) rebuildIndex() map[string]models.DraftSummary {
	index := make(map[string]models.DraftSummary)

	root := os.DirFS(path.Join(s.root, draftsDir))

	jsonFiles, err := fs.Glob(root, draftPattern)
	if err != nil {
		return index
	}

	for _, file := range jsonFiles {
		formID := strings.TrimSuffix(strings.TrimPrefix(file, draftPrefix), ".json")

		record, err := s.Get(context.Background(), formID)
		if err != nil {
			continue
		}

		index[formID] = record.Summary()
	}

	_ = s.writeIndex(index)

	return index
}

func (s *FileStore) writeIndex(index map[string]models.DraftSummary) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal draft index: %w", err)
	}

	return os.WriteFile(s.indexPath(), data, 0o600)
}
