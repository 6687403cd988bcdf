package notes

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/kuitang/notes-backend/internal/errs"
	"github.com/kuitang/notes-backend/internal/obs"
)

// Error reasons attached to create conflicts.
const (
	ReasonIDAlreadyExists = "id_already_exists"
	ReasonIDTakenByOther  = "id_taken_by_other"
)

// Service implements list/create/update/delete on top of a Store.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	store Store
	clock Clock
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDGenerator overrides server-side id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a notes service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		clock: systemClock{},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the caller's notes, most recently updated first.
func (s *Service) List(ctx context.Context, callerID string) ([]Note, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	found, err := s.store.ListByOwner(ctx, callerID)
	if err != nil {
		return nil, s.storeFailure(ctx, "list", err)
	}

	owned := make([]Note, 0, len(found))
	for _, note := range found {
		if note.OwnerID == callerID {
			owned = append(owned, note)
		}
	}
	sort.SliceStable(owned, func(i, j int) bool {
		if owned[i].UpdatedAt != owned[j].UpdatedAt {
			return owned[i].UpdatedAt > owned[j].UpdatedAt
		}
		return owned[i].ID < owned[j].ID
	})
	return owned, nil
}

// Create stores a new note owned by callerID. A re-supplied id is a conflict
// for its owner and forbidden for everyone else; creation never overwrites.
func (s *Service) Create(ctx context.Context, callerID string, in CreateInput) (Note, error) {
	if err := requireCaller(callerID); err != nil {
		return Note{}, err
	}
	if err := ValidateInput(in.NoteInput); err != nil {
		return Note{}, err
	}
	id := in.ID
	if id == "" {
		id = s.newID()
	} else if err := ValidateID(id); err != nil {
		return Note{}, err
	}

	existing, err := s.fetch(ctx, id)
	if err != nil {
		return Note{}, err
	}
	if err := createDecision(Authorize(callerID, existing)); err != nil {
		return Note{}, err
	}

	ts := FormatTimestamp(s.clock.Now())
	note := Note{
		ID:        id,
		OwnerID:   callerID,
		Title:     in.Title,
		Content:   in.Content,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	creator, ok := s.store.(ConditionalCreator)
	if !ok {
		if err := s.store.Put(ctx, note, PutReplace); err != nil {
			return Note{}, s.storeFailure(ctx, "create", err)
		}
		return note, nil
	}

	err = creator.Create(ctx, note)
	if errors.Is(err, ErrAlreadyExists) {
		// Lost a race with a concurrent create; re-read so the caller sees the
		// same conflict/forbidden split as the sequential path.
		existing, err = s.fetch(ctx, id)
		if err != nil {
			return Note{}, err
		}
		if existing == nil {
			return Note{}, errs.WithReason(errs.Conflict, ReasonIDAlreadyExists, "note id was taken concurrently")
		}
		return Note{}, createDecision(Authorize(callerID, existing))
	}
	if err != nil {
		return Note{}, s.storeFailure(ctx, "create", err)
	}
	return note, nil
}

// Update replaces title and content of a note owned by callerID, preserving
// owner and creation time.
func (s *Service) Update(ctx context.Context, callerID, id string, in NoteInput) (Note, error) {
	if err := requireCaller(callerID); err != nil {
		return Note{}, err
	}
	if err := ValidateInput(in); err != nil {
		return Note{}, err
	}

	existing, err := s.fetchOwned(ctx, callerID, id)
	if err != nil {
		return Note{}, err
	}

	updated := MergeInto(*existing, Note{
		Title:     in.Title,
		Content:   in.Content,
		UpdatedAt: s.nextUpdatedAt(existing.UpdatedAt),
	})
	if err := s.store.Put(ctx, updated, PutMerge); err != nil {
		return Note{}, s.storeFailure(ctx, "update", err)
	}
	return updated, nil
}

// Delete removes a note owned by callerID.
func (s *Service) Delete(ctx context.Context, callerID, id string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if _, err := s.fetchOwned(ctx, callerID, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return s.storeFailure(ctx, "delete", err)
	}
	return nil
}

// fetchOwned loads id and applies the gate for update/delete.
func (s *Service) fetchOwned(ctx context.Context, callerID, id string) (*Note, error) {
	if id == "" {
		return nil, errs.New(errs.NotFound, "note not found")
	}
	existing, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	switch Authorize(callerID, existing) {
	case DecisionNotFound:
		return nil, errs.New(errs.NotFound, "note not found")
	case DecisionForbidden:
		return nil, errs.New(errs.Forbidden, "note belongs to another user")
	}
	return existing, nil
}

func (s *Service) fetch(ctx context.Context, id string) (*Note, error) {
	note, found, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.storeFailure(ctx, "get", err)
	}
	if !found {
		return nil, nil
	}
	return &note, nil
}

// nextUpdatedAt never moves updatedAt backwards, even if the clock does.
func (s *Service) nextUpdatedAt(previous string) string {
	now := FormatTimestamp(s.clock.Now())
	if now < previous {
		return previous
	}
	return now
}

func (s *Service) storeFailure(ctx context.Context, op string, err error) error {
	obs.From(ctx).With("pkg", "notes").Error("store_failure", "op", op, "error", err)
	return &errs.Error{
		Code:    errs.Internal,
		Reason:  errs.ReasonOther,
		Message: "storage unavailable",
		Err:     fmt.Errorf("%s: %w", op, err),
	}
}

// createDecision maps the gate outcome for an id that is about to be created.
func createDecision(d Decision) error {
	switch d {
	case DecisionNotFound:
		return nil
	case DecisionAllow:
		return errs.WithReason(errs.Conflict, ReasonIDAlreadyExists, "a note with this id already exists")
	default:
		return errs.WithReason(errs.Forbidden, ReasonIDTakenByOther, "note id is taken by another user")
	}
}

func requireCaller(callerID string) error {
	if callerID == "" {
		return errs.WithReason(errs.InvalidToken, "missing_subject", "no authenticated caller")
	}
	return nil
}
