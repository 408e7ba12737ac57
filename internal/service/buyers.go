package service

import (
	"context"
	"math"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/authz"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/diff"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/errs"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/model"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/repository"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/validate"
)

// BuyerService is the record-mutation pipeline plus the read side.
// Every method takes the acting identity; uuid.Nil means unauthenticated.
type BuyerService interface {
	// Create validates raw, stores a new record owned by actor and records a created entry.
	Create(ctx context.Context, actor uuid.UUID, raw map[string]any) (*model.Buyer, error)
	// Update applies a partial update guarded by the updatedAt token carried in raw.
	Update(ctx context.Context, actor, id uuid.UUID, raw map[string]any) (*model.Buyer, error)
	// Delete removes a record after recording a deleted entry. A nil token skips the concurrency check.
	Delete(ctx context.Context, actor, id uuid.UUID, token *time.Time) error
	// Get returns a record with its most recent history.
	Get(ctx context.Context, actor, id uuid.UUID) (*model.BuyerDetail, error)
	// List returns one page of matching records, newest first.
	List(ctx context.Context, actor uuid.UUID, f model.BuyerFilter, page int) (*model.BuyerPage, error)
	// History returns every retained entry for id, including after deletion.
	History(ctx context.Context, actor, id uuid.UUID) ([]model.HistoryEntry, error)
	// Export returns every matching record without pagination.
	Export(ctx context.Context, actor uuid.UUID, f model.BuyerFilter) ([]model.Buyer, error)
}

// RuleChecker enforces cross-field rules on a merged record.
type RuleChecker interface {
	Check(b model.Buyer) error
}

// Recorder receives pipeline outcomes. A nil Recorder is allowed.
type Recorder interface {
	Mutation(op, outcome string)
	HistoryEntry(kind string)
}

// BuyerOptions tunes read sizes.
type BuyerOptions struct {
	PageSize      int
	RecentHistory int
}

type BuyerServiceImpl struct {
	repo  repository.BuyerRepository
	authz *authz.Authorizer
	rules RuleChecker
	rec   Recorder
	opts  BuyerOptions
	now   func() time.Time
}

var _ BuyerService = (*BuyerServiceImpl)(nil)

// NewBuyerService wires the pipeline.
func NewBuyerService(
	repo repository.BuyerRepository, az *authz.Authorizer, rules RuleChecker, rec Recorder, opts BuyerOptions,
) *BuyerServiceImpl {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	return &BuyerServiceImpl{repo: repo, authz: az, rules: rules, rec: rec, opts: opts, now: time.Now}
}

// stamp returns the next concurrency token: now at microsecond precision,
// bumped past prev so it strictly increases even under clock skew.
func (s *BuyerServiceImpl) stamp(prev time.Time) time.Time {
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(prev) {
		t = prev.Add(time.Microsecond)
	}
	return t
}

func (s *BuyerServiceImpl) observe(op string, err error, kind model.HistoryKind) {
	if s.rec == nil {
		return
	}
	if err != nil {
		s.rec.Mutation(op, string(errs.KindOf(err)))
		return
	}
	s.rec.Mutation(op, "ok")
	if kind != "" {
		s.rec.HistoryEntry(string(kind))
	}
}

func (s *BuyerServiceImpl) Create(ctx context.Context, actor uuid.UUID, raw map[string]any) (out *model.Buyer, err error) {
	defer func() { s.observe("create", err, model.HistoryCreated) }()

	patch, err := validate.Create(raw)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(actor, actor, authz.ActionCreate); err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := s.stamp(time.Time{})
	b := patch.Apply(model.Buyer{
		ID:        id,
		OwnerID:   actor,
		Status:    model.StatusNew,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err := s.rules.Check(b); err != nil {
		return nil, err
	}
	payload, err := diff.Payload(model.HistoryCreated, b, nil)
	if err != nil {
		return nil, err
	}
	entry, err := newEntry(b.ID, actor, now, model.HistoryCreated, payload)
	if err != nil {
		return nil, err
	}

	err = s.repo.InTx(ctx, func(tx repository.BuyerTx) error {
		if err := tx.Insert(ctx, b); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BuyerServiceImpl) Update(ctx context.Context, actor, id uuid.UUID, raw map[string]any) (out *model.Buyer, err error) {
	var recorded model.HistoryKind
	defer func() { s.observe("update", err, recorded) }()

	patch, token, err := validate.Update(raw)
	if err != nil {
		return nil, err
	}
	if actor == uuid.Nil {
		return nil, errs.ErrUnauthenticated
	}

	var merged model.Buyer
	err = s.repo.InTx(ctx, func(tx repository.BuyerTx) error {
		recorded = ""
		cur, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authz.Authorize(actor, cur.OwnerID, authz.ActionUpdate); err != nil {
			return err
		}
		if !token.Equal(cur.UpdatedAt) {
			return errs.ErrConflict
		}

		merged = patch.Apply(*cur)
		if err := s.rules.Check(merged); err != nil {
			return err
		}
		merged.UpdatedAt = s.stamp(cur.UpdatedAt)
		if err := tx.Update(ctx, merged, cur.UpdatedAt); err != nil {
			return err
		}

		d := diff.Compute(*cur, merged, patch.Fields())
		if len(d) == 0 {
			return nil
		}
		payload, err := diff.Payload(model.HistoryUpdated, merged, d)
		if err != nil {
			return err
		}
		entry, err := newEntry(id, actor, merged.UpdatedAt, model.HistoryUpdated, payload)
		if err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return err
		}
		recorded = model.HistoryUpdated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

func (s *BuyerServiceImpl) Delete(ctx context.Context, actor, id uuid.UUID, token *time.Time) (err error) {
	defer func() { s.observe("delete", err, model.HistoryDeleted) }()

	if actor == uuid.Nil {
		return errs.ErrUnauthenticated
	}
	return s.repo.InTx(ctx, func(tx repository.BuyerTx) error {
		cur, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authz.Authorize(actor, cur.OwnerID, authz.ActionDelete); err != nil {
			return err
		}
		if token != nil && !token.Equal(cur.UpdatedAt) {
			return errs.ErrConflict
		}

		payload, err := diff.Payload(model.HistoryDeleted, *cur, nil)
		if err != nil {
			return err
		}
		entry, err := newEntry(id, actor, s.stamp(cur.UpdatedAt), model.HistoryDeleted, payload)
		if err != nil {
			return err
		}
		// the entry must exist before the row disappears
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return err
		}
		return tx.Delete(ctx, id, cur.UpdatedAt)
	})
}

func (s *BuyerServiceImpl) Get(ctx context.Context, actor, id uuid.UUID) (*model.BuyerDetail, error) {
	if err := s.authz.Authorize(actor, uuid.Nil, authz.ActionRead); err != nil {
		return nil, err
	}
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	hist := []model.HistoryEntry{}
	if s.opts.RecentHistory > 0 {
		if hist, err = s.repo.History(ctx, id, s.opts.RecentHistory); err != nil {
			return nil, err
		}
	}
	return &model.BuyerDetail{Buyer: *b, History: hist}, nil
}

func (s *BuyerServiceImpl) List(ctx context.Context, actor uuid.UUID, f model.BuyerFilter, page int) (*model.BuyerPage, error) {
	if err := s.authz.Authorize(actor, uuid.Nil, authz.ActionRead); err != nil {
		return nil, err
	}
	// pages whose offset does not fit an int are treated like any other invalid page
	if page < 1 || page-1 > math.MaxInt/s.opts.PageSize {
		page = 1
	}
	buyers, total, err := s.repo.List(ctx, f, (page-1)*s.opts.PageSize, s.opts.PageSize)
	if err != nil {
		return nil, err
	}
	return &model.BuyerPage{Buyers: buyers, Total: total, Page: page, PageSize: s.opts.PageSize}, nil
}

func (s *BuyerServiceImpl) History(ctx context.Context, actor, id uuid.UUID) ([]model.HistoryEntry, error) {
	if err := s.authz.Authorize(actor, uuid.Nil, authz.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id, 0)
}

func (s *BuyerServiceImpl) Export(ctx context.Context, actor uuid.UUID, f model.BuyerFilter) ([]model.Buyer, error) {
	if err := s.authz.Authorize(actor, uuid.Nil, authz.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.ListAll(ctx, f)
}

func newEntry(buyerID, actor uuid.UUID, at time.Time, kind model.HistoryKind, payload []byte) (model.HistoryEntry, error) {
	hid, err := uuid.NewV4()
	if err != nil {
		return model.HistoryEntry{}, err
	}
	return model.HistoryEntry{
		ID:        hid,
		BuyerID:   buyerID,
		ChangedBy: actor,
		ChangedAt: at,
		Kind:      kind,
		Diff:      payload,
	}, nil
}
