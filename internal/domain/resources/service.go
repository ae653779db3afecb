package resources

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agenda/agenda/internal/platform/docstore"
	"github.com/agenda/agenda/pkg/caldate"
)

// ErrFolderNotEmpty is returned when deleting a folder that still holds
// documents without asking for a cascade.
var ErrFolderNotEmpty = errors.New("folder is not empty")

type Service struct {
	folders   docstore.Repository[Folder]
	documents docstore.Repository[Document]
	clock     caldate.Clock
}

func NewService(folders docstore.Repository[Folder], documents docstore.Repository[Document], clock caldate.Clock) *Service {
	return &Service{folders: folders, documents: documents, clock: clock}
}

// -- Folders --

func normalizeFolder(f *Folder) error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if f.Color == "" {
		f.Color = DefaultFolderColor
	}
	return nil
}

func (s *Service) CreateFolder(ctx context.Context, f *Folder) error {
	if err := normalizeFolder(f); err != nil {
		return err
	}
	return s.folders.Create(ctx, f)
}

func (s *Service) GetFolder(ctx context.Context, id string) (*Folder, error) {
	return s.folders.Get(ctx, id)
}

func (s *Service) UpdateFolder(ctx context.Context, f *Folder) error {
	if err := normalizeFolder(f); err != nil {
		return err
	}
	patch := map[string]any{
		"name":        f.Name,
		"description": f.Description,
		"color":       f.Color,
	}
	if err := s.folders.Update(ctx, f.ID, patch); err != nil {
		return err
	}
	stored, err := s.folders.Get(ctx, f.ID)
	if err != nil {
		return err
	}
	*f = *stored
	// Documents carry the folder name for display.
	docs, err := s.DocumentsByFolder(ctx, f.ID)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if d.FolderName == f.Name {
			continue
		}
		if err := s.documents.Update(ctx, d.ID, map[string]any{"folderName": f.Name}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteFolder refuses folders with documents unless cascade is set, in
// which case the documents are deleted first.
func (s *Service) DeleteFolder(ctx context.Context, id string, cascade bool) error {
	if _, err := s.folders.Get(ctx, id); err != nil {
		return err
	}
	docs, err := s.DocumentsByFolder(ctx, id)
	if err != nil {
		return err
	}
	if len(docs) > 0 && !cascade {
		return fmt.Errorf("%w: %d documents", ErrFolderNotEmpty, len(docs))
	}
	for _, d := range docs {
		if err := s.documents.Delete(ctx, d.ID); err != nil {
			return err
		}
	}
	if len(docs) > 0 {
		zerolog.Ctx(ctx).Info().Str("folder_id", id).Int("documents", len(docs)).Msg("folder documents deleted")
	}
	return s.folders.Delete(ctx, id)
}

// ListFolders returns folders by name with their document counts. A search
// term matches name or description.
func (s *Service) ListFolders(ctx context.Context, search string) ([]FolderSummary, error) {
	folders, err := s.folders.List(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.List(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, d := range docs {
		counts[d.FolderID]++
	}

	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]FolderSummary, 0, len(folders))
	for _, f := range folders {
		if term != "" && !strings.Contains(strings.ToLower(f.Name), term) &&
			!strings.Contains(strings.ToLower(f.Description), term) {
			continue
		}
		out = append(out, FolderSummary{Folder: *f, Documents: counts[f.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// -- Documents --

func (s *Service) prepareDocument(ctx context.Context, d *Document) error {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return fmt.Errorf("title is required")
	}
	f, err := s.folders.Get(ctx, d.FolderID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("folder %q does not exist", d.FolderID)
		}
		return err
	}
	d.FolderName = f.Name
	if d.Tags == nil {
		d.Tags = []string{}
	}
	d.LastUpdate = s.clock.Now().UTC()
	return nil
}

func (s *Service) CreateDocument(ctx context.Context, d *Document) error {
	if err := s.prepareDocument(ctx, d); err != nil {
		return err
	}
	return s.documents.Create(ctx, d)
}

func (s *Service) GetDocument(ctx context.Context, id string) (*Document, error) {
	return s.documents.Get(ctx, id)
}

func (s *Service) UpdateDocument(ctx context.Context, d *Document) error {
	if err := s.prepareDocument(ctx, d); err != nil {
		return err
	}
	patch := map[string]any{
		"folderId":   d.FolderID,
		"folderName": d.FolderName,
		"title":      d.Title,
		"content":    d.Content,
		"tags":       d.Tags,
		"lastUpdate": d.LastUpdate,
	}
	if err := s.documents.Update(ctx, d.ID, patch); err != nil {
		return err
	}
	stored, err := s.documents.Get(ctx, d.ID)
	if err != nil {
		return err
	}
	*d = *stored
	return nil
}

func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	return s.documents.Delete(ctx, id)
}

// DocumentsByFolder returns a folder's documents, most recently updated first.
func (s *Service) DocumentsByFolder(ctx context.Context, folderID string) ([]*Document, error) {
	items, err := s.documents.List(ctx, docstore.Where("folderId", folderID))
	if err != nil {
		return nil, err
	}
	sortRecent(items)
	return items, nil
}

// SearchDocuments matches title or content, most recently updated first.
func (s *Service) SearchDocuments(ctx context.Context, term string) ([]*Document, error) {
	items, err := s.documents.List(ctx)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	kept := items[:0]
	for _, d := range items {
		if term == "" || strings.Contains(strings.ToLower(d.Title), term) ||
			strings.Contains(strings.ToLower(d.Content), term) {
			kept = append(kept, d)
		}
	}
	sortRecent(kept)
	return kept, nil
}

func sortRecent(items []*Document) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].LastUpdate.After(items[j].LastUpdate)
	})
}
