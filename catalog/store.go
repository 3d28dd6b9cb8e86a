package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/meowtytyshka/vintagebot/internal/fsstore"
)

const (
	catalogFileVersion = 1
	pendingFileVersion = 1
)

type catalogFile struct {
	Version int   `json:"version"`
	Records []Lot `json:"records"`
}

type pendingFile struct {
	Version int                 `json:"version"`
	Records []PendingSubmission `json:"records"`
}

// Store keeps the published catalog and the moderation queue in two
// JSON files under one data directory. All mutations run behind the
// process mutex plus a file lock, so id assignment never races even
// across processes.
type Store struct {
	root string
	mu   sync.Mutex
	now  func() time.Time
}

func NewStore(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("data dir is required")
	}
	return &Store{root: filepath.Clean(root), now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Ensure(ctx context.Context) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fsstore.EnsureDir(s.root, 0o700)
}

// Lots returns published lots newest first.
func (s *Store) Lots(ctx context.Context) ([]Lot, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lots, err := s.loadLotsLocked()
	if err != nil {
		return nil, err
	}
	out := make([]Lot, 0, len(lots))
	for i := len(lots) - 1; i >= 0; i-- {
		out = append(out, lots[i])
	}
	return out, nil
}

func (s *Store) Lot(ctx context.Context, id int) (Lot, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return Lot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lots, err := s.loadLotsLocked()
	if err != nil {
		return Lot{}, err
	}
	for _, lot := range lots {
		if lot.ID == id {
			return lot, nil
		}
	}
	return Lot{}, fmt.Errorf("%w: %d", ErrLotNotFound, id)
}

// NextLotID reports max(id)+1 over the published catalog. Removed lots
// leave gaps; their ids are never reused.
func (s *Store) NextLotID(ctx context.Context) (int, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lots, err := s.loadLotsLocked()
	if err != nil {
		return 0, err
	}
	return nextLotID(lots), nil
}

// AppendLot validates the draft, assigns max+1 as the lot id and
// persists the grown catalog before returning.
func (s *Store) AppendLot(ctx context.Context, draft Draft) (Lot, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return Lot{}, err
	}
	if err := draft.Validate(); err != nil {
		return Lot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lockPath, err := s.lockPath()
	if err != nil {
		return Lot{}, err
	}

	var published Lot
	err = fsstore.WithLock(ctx, lockPath, func() error {
		lots, loadErr := s.loadLotsLocked()
		if loadErr != nil {
			return loadErr
		}
		published = Lot{
			Draft:       normalizeDraft(draft),
			ID:          nextLotID(lots),
			PublishedAt: s.now(),
		}
		lots = append(lots, published)
		return s.saveLotsLocked(lots)
	})
	if err != nil {
		return Lot{}, err
	}
	return published, nil
}

// RemoveLot deletes a published lot and returns the removed record so
// the caller can notify its owner.
func (s *Store) RemoveLot(ctx context.Context, id int) (Lot, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return Lot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lockPath, err := s.lockPath()
	if err != nil {
		return Lot{}, err
	}

	var removed Lot
	err = fsstore.WithLock(ctx, lockPath, func() error {
		lots, loadErr := s.loadLotsLocked()
		if loadErr != nil {
			return loadErr
		}
		kept := lots[:0]
		found := false
		for _, lot := range lots {
			if lot.ID == id {
				removed = lot
				found = true
				continue
			}
			kept = append(kept, lot)
		}
		if !found {
			return fmt.Errorf("%w: %d", ErrLotNotFound, id)
		}
		return s.saveLotsLocked(kept)
	})
	if err != nil {
		return Lot{}, err
	}
	return removed, nil
}

func (s *Store) Pending(ctx context.Context) ([]PendingSubmission, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadPendingLocked()
}

func (s *Store) PendingByID(ctx context.Context, id int) (PendingSubmission, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return PendingSubmission{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.loadPendingLocked()
	if err != nil {
		return PendingSubmission{}, err
	}
	for _, item := range records {
		if item.PendingID == id {
			return item, nil
		}
	}
	return PendingSubmission{}, fmt.Errorf("%w: %d", ErrPendingNotFound, id)
}

// AppendPending validates the draft and appends it to the moderation
// queue. The pending id is count+1; the count is read and the record
// written inside one critical section, so concurrent submissions
// cannot observe the same count.
func (s *Store) AppendPending(ctx context.Context, draft Draft) (PendingSubmission, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return PendingSubmission{}, err
	}
	if err := draft.Validate(); err != nil {
		return PendingSubmission{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lockPath, err := s.lockPath()
	if err != nil {
		return PendingSubmission{}, err
	}

	var appended PendingSubmission
	err = fsstore.WithLock(ctx, lockPath, func() error {
		records, loadErr := s.loadPendingLocked()
		if loadErr != nil {
			return loadErr
		}
		appended = PendingSubmission{
			Draft:       normalizeDraft(draft),
			PendingID:   nextPendingID(records),
			SubmittedAt: s.now(),
		}
		records = append(records, appended)
		return s.savePendingLocked(records)
	})
	if err != nil {
		return PendingSubmission{}, err
	}
	return appended, nil
}

// RemovePending deletes one queue entry. A second removal of the same
// id reports ErrPendingNotFound, which is how decision idempotency
// surfaces to the moderation gate.
func (s *Store) RemovePending(ctx context.Context, id int) (PendingSubmission, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return PendingSubmission{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lockPath, err := s.lockPath()
	if err != nil {
		return PendingSubmission{}, err
	}

	var removed PendingSubmission
	err = fsstore.WithLock(ctx, lockPath, func() error {
		records, loadErr := s.loadPendingLocked()
		if loadErr != nil {
			return loadErr
		}
		kept := records[:0]
		found := false
		for _, item := range records {
			if item.PendingID == id {
				removed = item
				found = true
				continue
			}
			kept = append(kept, item)
		}
		if !found {
			return fmt.Errorf("%w: %d", ErrPendingNotFound, id)
		}
		return s.savePendingLocked(kept)
	})
	if err != nil {
		return PendingSubmission{}, err
	}
	return removed, nil
}

func (s *Store) loadLotsLocked() ([]Lot, error) {
	var file catalogFile
	ok, err := fsstore.ReadJSON(s.catalogPath(), &file)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Lot{}, nil
	}
	if file.Version != catalogFileVersion {
		return nil, fmt.Errorf("unsupported catalog file version: %d", file.Version)
	}
	for i := range file.Records {
		file.Records[i].Draft = normalizeDraft(file.Records[i].Draft)
	}
	return file.Records, nil
}

func (s *Store) saveLotsLocked(records []Lot) error {
	file := catalogFile{Version: catalogFileVersion, Records: records}
	return fsstore.WriteJSONAtomic(s.catalogPath(), file, fsstore.FileOptions{
		DirPerm:  0o700,
		FilePerm: 0o600,
	})
}

func (s *Store) loadPendingLocked() ([]PendingSubmission, error) {
	var file pendingFile
	ok, err := fsstore.ReadJSON(s.pendingPath(), &file)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []PendingSubmission{}, nil
	}
	if file.Version != pendingFileVersion {
		return nil, fmt.Errorf("unsupported pending file version: %d", file.Version)
	}
	for i := range file.Records {
		file.Records[i].Draft = normalizeDraft(file.Records[i].Draft)
	}
	return file.Records, nil
}

func (s *Store) savePendingLocked(records []PendingSubmission) error {
	file := pendingFile{Version: pendingFileVersion, Records: records}
	return fsstore.WriteJSONAtomic(s.pendingPath(), file, fsstore.FileOptions{
		DirPerm:  0o700,
		FilePerm: 0o600,
	})
}

func (s *Store) catalogPath() string {
	return filepath.Join(s.root, "catalog.json")
}

func (s *Store) pendingPath() string {
	return filepath.Join(s.root, "pending.json")
}

func (s *Store) lockPath() (string, error) {
	return fsstore.BuildLockPath(filepath.Join(s.root, ".fslocks"), "store.main")
}

func nextLotID(lots []Lot) int {
	max := 0
	for _, lot := range lots {
		if lot.ID > max {
			max = lot.ID
		}
	}
	return max + 1
}

// nextPendingID is count+1 in the common case, bumped past any live
// id so an out-of-order removal cannot make the next submission
// collide with a survivor.
func nextPendingID(records []PendingSubmission) int {
	next := len(records) + 1
	for _, item := range records {
		if item.PendingID >= next {
			next = item.PendingID + 1
		}
	}
	return next
}

func normalizeDraft(d Draft) Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Era = strings.TrimSpace(d.Era)
	d.Condition = strings.TrimSpace(d.Condition)
	d.Size = strings.TrimSpace(d.Size)
	d.City = strings.TrimSpace(d.City)
	d.Comment = strings.TrimSpace(d.Comment)
	if normalized, err := NormalizePrice(d.Price); err == nil {
		d.Price = normalized
	} else {
		d.Price = strings.TrimSpace(d.Price)
	}
	photos := make([]string, 0, len(d.Photos))
	for _, ref := range d.Photos {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		photos = append(photos, ref)
	}
	d.Photos = photos
	return d
}

func ensureNotCanceled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
