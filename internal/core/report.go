package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Report lists the rows of a finished batch that were not imported.
type Report struct {
	BatchID string      `json:"batch_id"`
	Status  BatchStatus `json:"status"`
	Columns []string    `json:"columns"`
	Entries []FailedRow `json:"entries"`
}

// FetchErrorReport returns the failed rows of a terminal batch, ordered by
// row number. Before the batch finishes it fails with ErrBatchNotFinished.
// Batches already swept from memory are looked up in the batch history
// when the history store supports it.
func (s *Service) FetchErrorReport(ctx context.Context, batchID string) (*Report, error) {
	snap, err := s.lookupBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if !snap.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: status is %s", ErrBatchNotFinished, snap.Status)
	}

	entries, err := s.deps.Failures.List(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list failed rows: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Row < entries[j].Row
	})

	var columns []string
	if job, _, err := s.jobs.Get(snap.JobID); err == nil {
		columns = job.Columns
	} else {
		columns = columnsFromEntries(entries)
	}

	return &Report{
		BatchID: batchID,
		Status:  snap.Status,
		Columns: columns,
		Entries: entries,
	}, nil
}

// batchArchive is implemented by history stores that can read back a
// recorded batch.
type batchArchive interface {
	LookupBatch(ctx context.Context, batchID string) (BatchSnapshot, error)
}

// lookupBatch returns the tracked batch, or the recorded one once the
// tracker has evicted it.
func (s *Service) lookupBatch(ctx context.Context, batchID string) (BatchSnapshot, error) {
	snap, err := s.tracker.Snapshot(batchID)
	if !errors.Is(err, ErrBatchNotFound) {
		return snap, err
	}
	archive, ok := s.deps.History.(batchArchive)
	if !ok {
		return snap, err
	}

	recorded, lookupErr := archive.LookupBatch(ctx, batchID)
	if errors.Is(lookupErr, ErrBatchNotFound) {
		return BatchSnapshot{}, err
	}
	if lookupErr != nil {
		return BatchSnapshot{}, fmt.Errorf("lookup batch history: %w", lookupErr)
	}
	return recorded, nil
}

// columnsFromEntries rebuilds a column list once the job has expired.
func columnsFromEntries(entries []FailedRow) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, e := range entries {
		for k := range e.Data {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// Header is the CSV header: row number, errors, then the file's columns.
func (r *Report) Header() []string {
	return append([]string{"row", "errors"}, r.Columns...)
}

// Records returns the report as CSV records without the header.
func (r *Report) Records() [][]string {
	out := make([][]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		rec := make([]string, 0, len(r.Columns)+2)
		rec = append(rec, strconv.Itoa(e.Row), strings.Join(e.Errors, "; "))
		for _, c := range r.Columns {
			rec = append(rec, e.Data[c])
		}
		out = append(out, rec)
	}
	return out
}

// WriteCSV writes the report, header included.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Header()); err != nil {
		return err
	}
	if err := cw.WriteAll(r.Records()); err != nil {
		return err
	}
	return cw.Error()
}

// MemoryFailureStore keeps failed rows in process memory.
type MemoryFailureStore struct {
	mu   sync.Mutex
	rows map[string][]FailedRow
}

// NewMemoryFailureStore creates an empty store.
func NewMemoryFailureStore() *MemoryFailureStore {
	return &MemoryFailureStore{rows: make(map[string][]FailedRow)}
}

func (m *MemoryFailureStore) Append(_ context.Context, batchID string, row FailedRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[batchID] = append(m.rows[batchID], row)
	return nil
}

func (m *MemoryFailureStore) List(_ context.Context, batchID string) ([]FailedRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FailedRow, len(m.rows[batchID]))
	copy(out, m.rows[batchID])
	return out, nil
}

// Forget drops the rows of a batch.
func (m *MemoryFailureStore) Forget(batchID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, batchID)
}
