package stockcount_test

import (
	"context"
	"sort"
	"testing"

	"restock/internal/core/apperror"
	"restock/internal/core/id"
	"restock/internal/domain/ledger/ledgertest"
	"restock/internal/domain/stockcount"
)

// memCounts is an in-memory stock count repository. Codes are unique;
// Insert reports collisions the way the real repository does so the
// service's retry loop is exercised for real.
type memCounts struct {
	Counts map[id.ID]*stockcount.Count

	// FailInserts makes the next N inserts collide.
	FailInserts int
}

func newMemCounts() *memCounts {
	return &memCounts{Counts: make(map[id.ID]*stockcount.Count)}
}

func copyCount(c *stockcount.Count) *stockcount.Count {
	cp := *c
	cp.Lines = append([]stockcount.Line(nil), c.Lines...)
	return &cp
}

func (r *memCounts) Insert(ctx context.Context, count *stockcount.Count) error {
	if r.FailInserts > 0 {
		r.FailInserts--
		return apperror.NewDuplicate("stock count", "number", count.Number)
	}
	for _, existing := range r.Counts {
		if existing.Number == count.Number {
			return apperror.NewDuplicate("stock count", "number", count.Number)
		}
	}
	r.Counts[count.ID] = copyCount(count)
	return nil
}

func (r *memCounts) GetByID(ctx context.Context, orgID, countID id.ID) (*stockcount.Count, error) {
	c, ok := r.Counts[countID]
	if !ok || c.OrganizationID != orgID {
		return nil, apperror.NewNotFound("stock count", countID.String())
	}
	return copyCount(c), nil
}

func (r *memCounts) GetForUpdate(ctx context.Context, orgID, countID id.ID) (*stockcount.Count, error) {
	return r.GetByID(ctx, orgID, countID)
}

func (r *memCounts) UpdateHeader(ctx context.Context, count *stockcount.Count) error {
	stored, ok := r.Counts[count.ID]
	if !ok {
		return apperror.NewNotFound("stock count", count.ID.String())
	}
	cp := copyCount(count)
	cp.Lines = stored.Lines
	r.Counts[count.ID] = cp
	return nil
}

func (r *memCounts) InsertLine(ctx context.Context, line *stockcount.Line) error {
	stored, ok := r.Counts[line.CountID]
	if !ok {
		return apperror.NewNotFound("stock count", line.CountID.String())
	}
	stored.Lines = append(stored.Lines, *line)
	return nil
}

func (r *memCounts) UpdateLine(ctx context.Context, line *stockcount.Line) error {
	stored, ok := r.Counts[line.CountID]
	if !ok {
		return apperror.NewNotFound("stock count", line.CountID.String())
	}
	for i := range stored.Lines {
		if stored.Lines[i].ID == line.ID {
			stored.Lines[i] = *line
			return nil
		}
	}
	return apperror.NewNotFound("stock count line", line.ID.String())
}

func (r *memCounts) DeleteLine(ctx context.Context, countID, lineID id.ID) error {
	stored, ok := r.Counts[countID]
	if !ok {
		return apperror.NewNotFound("stock count", countID.String())
	}
	kept := stored.Lines[:0]
	for i := range stored.Lines {
		if stored.Lines[i].ID != lineID {
			kept = append(kept, stored.Lines[i])
		}
	}
	stored.Lines = kept
	return nil
}

func (r *memCounts) List(ctx context.Context, filter stockcount.ListFilter) ([]stockcount.Count, error) {
	var out []stockcount.Count
	for _, c := range r.Counts {
		if c.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.StoreID != nil && c.StoreID != *filter.StoreID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		out = append(out, *copyCount(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// env wires the stock count service over the ledger fixture's fakes.
type env struct {
	*ledgertest.Fixture
	Counts *memCounts
	Svc    *stockcount.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	f := ledgertest.NewFixture()
	counts := newMemCounts()

	svc := stockcount.NewService(stockcount.Deps{
		Tx:        ledgertest.PassTx{},
		Repo:      counts,
		Stores:    f.Catalog,
		Products:  f.Catalog.ProductRepo(),
		Ledger:    f.Service,
		Guard:     f.Guard,
		Publisher: f.Publisher,
		Audit:     f.Audit,
	})
	return &env{Fixture: f, Counts: counts, Svc: svc}
}
