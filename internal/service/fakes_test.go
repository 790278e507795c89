package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/tuanvumaihuynh/inventory-count/internal/model"
	"github.com/tuanvumaihuynh/inventory-count/internal/repository"
	"github.com/tuanvumaihuynh/inventory-count/internal/storage/db"
)

var errStorage = errors.New("storage down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDB runs transactions in place. Work done inside a failed transaction
// is not rolled back; the fake repositories stage writes instead.
type fakeDB struct {
	db.DB
	txErr error
	txs   int
}

func (f *fakeDB) WithTx(_ context.Context, txFunc func(db.DB) error) error {
	f.txs++
	if f.txErr != nil {
		return f.txErr
	}
	return txFunc(f)
}

type fakeProductRepo struct {
	byIdentifier map[string]model.Product
	err          error
	replaced     int
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{byIdentifier: map[string]model.Product{}}
}

func (r *fakeProductRepo) WithDB(db.DB) repository.ProductRepository { return r }

func (r *fakeProductRepo) ReplaceAll(_ context.Context, records []model.Product) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.replaced++
	r.byIdentifier = map[string]model.Product{}
	for _, p := range records {
		r.byIdentifier[p.Code] = p
	}
	return int64(len(r.byIdentifier)), nil
}

func (r *fakeProductRepo) FindByIdentifier(_ context.Context, identifier string) (model.Product, bool, error) {
	if r.err != nil {
		return model.Product{}, false, r.err
	}
	p, ok := r.byIdentifier[identifier]
	return p, ok, nil
}

func (r *fakeProductRepo) FindByShortCode(_ context.Context, code string) (model.Product, bool, error) {
	if r.err != nil {
		return model.Product{}, false, r.err
	}
	for _, p := range r.byIdentifier {
		if p.ShortCode != nil && *p.ShortCode == code {
			p.Code = code
			return p, true, nil
		}
	}
	return model.Product{}, false, nil
}

func (r *fakeProductRepo) SearchByFoldedName(_ context.Context, prefix string, limit int) ([]model.Product, error) {
	var out []model.Product
	seen := map[string]bool{}
	for _, p := range r.byIdentifier {
		code := p.SelectCode()
		if seen[code] || !strings.HasPrefix(strings.ToLower(p.Name), prefix) {
			continue
		}
		seen[code] = true
		p.Code = code
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeProductRepo) Count(context.Context) (int64, error) {
	return int64(len(r.byIdentifier)), r.err
}

func (r *fakeProductRepo) CountProducts(context.Context) (int64, error) {
	distinct := make(map[string]struct{})
	for _, p := range r.byIdentifier {
		distinct[strings.Join(p.Barcodes, ",")] = struct{}{}
	}
	return int64(len(distinct)), r.err
}

func (r *fakeProductRepo) DeleteAll(context.Context) error {
	if r.err != nil {
		return r.err
	}
	r.byIdentifier = map[string]model.Product{}
	return nil
}

type fakeMetaRepo struct {
	values map[string]string
	err    error
}

func newFakeMetaRepo() *fakeMetaRepo {
	return &fakeMetaRepo{values: map[string]string{}}
}

func (r *fakeMetaRepo) WithDB(db.DB) repository.MetaRepository { return r }

func (r *fakeMetaRepo) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := r.values[key]
	return v, ok, r.err
}

func (r *fakeMetaRepo) GetMany(_ context.Context, keys ...string) (map[string]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := map[string]string{}
	for _, k := range keys {
		if v, ok := r.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (r *fakeMetaRepo) Set(_ context.Context, values map[string]string) error {
	if r.err != nil {
		return r.err
	}
	for k, v := range values {
		r.values[k] = v
	}
	return nil
}

type fakeLineRepo struct {
	lines  []model.Line
	nextID int64
	clock  time.Time
	err    error
}

func newFakeLineRepo() *fakeLineRepo {
	return &fakeLineRepo{clock: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (r *fakeLineRepo) WithDB(db.DB) repository.LineRepository { return r }

func (r *fakeLineRepo) Append(_ context.Context, nl model.NewLine) (model.Line, error) {
	if r.err != nil {
		return model.Line{}, r.err
	}
	r.nextID++
	r.clock = r.clock.Add(time.Second)
	l := model.Line{ID: r.nextID, Code: nl.Code, Name: nl.Name, Price: nl.Price, Qty: nl.Qty, TS: r.clock}
	r.lines = append(r.lines, l)
	return l, nil
}

func (r *fakeLineRepo) DeleteLast(context.Context) (model.Line, bool, error) {
	if r.err != nil {
		return model.Line{}, false, r.err
	}
	if len(r.lines) == 0 {
		return model.Line{}, false, nil
	}
	l := r.lines[len(r.lines)-1]
	r.lines = r.lines[:len(r.lines)-1]
	return l, true, nil
}

func (r *fakeLineRepo) Delete(_ context.Context, id int64) (model.Line, bool, error) {
	if r.err != nil {
		return model.Line{}, false, r.err
	}
	for i, l := range r.lines {
		if l.ID == id {
			r.lines = append(r.lines[:i:i], r.lines[i+1:]...)
			return l, true, nil
		}
	}
	return model.Line{}, false, nil
}

func (r *fakeLineRepo) List(context.Context) ([]model.Line, error) {
	if r.err != nil {
		return nil, r.err
	}
	return append([]model.Line{}, r.lines...), nil
}

func (r *fakeLineRepo) DeleteAll(context.Context) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	n := int64(len(r.lines))
	r.lines = nil
	return n, nil
}

func (r *fakeLineRepo) Summary(context.Context) (model.LedgerSummary, error) {
	var s model.LedgerSummary
	for _, l := range r.lines {
		s.Lines++
		s.TotalQty += l.Qty
	}
	return s, r.err
}

type fakeOutboxRepo struct {
	msgs []repository.NewOutboxMsg
}

func (r *fakeOutboxRepo) WithDB(db.DB) repository.OutboxMsgRepository { return r }

func (r *fakeOutboxRepo) Create(_ context.Context, msg repository.NewOutboxMsg) error {
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *fakeOutboxRepo) ListPending(context.Context, int) ([]repository.OutboxMsg, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) RecordOutcomes(context.Context, []repository.OutboxMsgOutcome, int) error {
	return nil
}

func (r *fakeOutboxRepo) PurgeProcessed(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeOutboxRepo) topics() []string {
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Topic)
	}
	return out
}
