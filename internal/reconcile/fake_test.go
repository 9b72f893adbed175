package reconcile

import (
	"context"
	"errors"

	"github.com/wadc/flowsync/internal/model"
	"github.com/wadc/flowsync/internal/store"
)

// fakeStore keeps entities in memory and counts calls.
type fakeStore struct {
	entities []model.Entity
	values   []model.PeriodValue
	nextID   int64

	finds, creates, updates, appends int
	archived                         []int

	failCreate  bool
	failUpdate  func(e *model.Entity) bool
	failArchive bool
}

var errInjected = errors.New("injected store failure")

func (f *fakeStore) FindEntities(_ context.Context, q store.KeyQuery) ([]model.Entity, error) {
	f.finds++
	var out []model.Entity
	for _, e := range f.entities {
		serialMatch := q.Serial != nil && e.Serial != nil && *e.Serial == *q.Serial
		if serialMatch || (q.MatchAddress() && e.Address == q.Address) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateEntity(_ context.Context, e *model.Entity) error {
	f.creates++
	if f.failCreate {
		return errInjected
	}
	f.nextID++
	e.ID = f.nextID
	f.entities = append(f.entities, *e)
	return nil
}

func (f *fakeStore) UpdateEntity(_ context.Context, e *model.Entity) error {
	f.updates++
	if f.failUpdate != nil && f.failUpdate(e) {
		return errInjected
	}
	for i := range f.entities {
		if f.entities[i].ID == e.ID {
			f.entities[i] = *e
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeStore) AppendPeriodValue(_ context.Context, v model.PeriodValue) error {
	f.appends++
	f.values = append(f.values, v)
	return nil
}

func (f *fakeStore) ListEntities(context.Context) ([]model.Entity, error) {
	return append([]model.Entity(nil), f.entities...), nil
}

func (f *fakeStore) UpdateStats(ctx context.Context, e *model.Entity) error {
	return f.UpdateEntity(ctx, e)
}

func (f *fakeStore) ListPeriodValues(context.Context, *model.Entity) ([]model.PeriodValue, error) {
	return nil, nil
}

func (f *fakeStore) AppendReadings(_ context.Context, r []model.Reading) (int, error) {
	return len(r), nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) ArchiveYear(_ context.Context, year int) (int, error) {
	if f.failArchive {
		return 0, errInjected
	}
	f.archived = append(f.archived, year)
	return len(f.entities), nil
}

// byID returns the stored entity with id.
func (f *fakeStore) byID(id int64) *model.Entity {
	for i := range f.entities {
		if f.entities[i].ID == id {
			return &f.entities[i]
		}
	}
	return nil
}

// plainStore hides the Archiver method.
type plainStore struct {
	store.Store
}
