package core

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	services []CatalogService
	staff    map[string]bool
	err      error
}

func (c *fakeCatalog) ActiveServices(_ context.Context, _ string) ([]CatalogService, error) {
	return c.services, c.err
}

func (c *fakeCatalog) StaffBelongsToSalon(_ context.Context, _ string, staffID string) (bool, error) {
	return c.staff[staffID], nil
}

type fakeDirectory struct {
	mu      sync.Mutex
	byEmail map[string]string
	byPhone map[string]string
	guests  map[string]GuestAccount
	lookups int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		byEmail: make(map[string]string),
		byPhone: make(map[string]string),
		guests:  make(map[string]GuestAccount),
	}
}

func (d *fakeDirectory) FindByEmail(_ context.Context, _ string, email string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	return d.byEmail[email], nil
}

func (d *fakeDirectory) FindByPhone(_ context.Context, _ string, phone string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	return d.byPhone[phone], nil
}

func (d *fakeDirectory) EnsureGuest(_ context.Context, _ string, g GuestAccount) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.guests[g.ID] = g
	return nil
}

func (d *fakeDirectory) guestCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.guests)
}

// fakeWriter records appointments. failRows makes the commit of a source
// row fail with the given error; block holds every commit until closed.
type fakeWriter struct {
	mu       sync.Mutex
	created  []Appointment
	failRows map[int]error
	block    chan struct{}
}

func (w *fakeWriter) CreateAppointment(ctx context.Context, a Appointment) error {
	if w.block != nil {
		select {
		case <-w.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err, ok := w.failRows[a.SourceRow]; ok {
		return err
	}
	w.created = append(w.created, a)
	return nil
}

func (w *fakeWriter) appointments() []Appointment {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Appointment, len(w.created))
	copy(out, w.created)
	return out
}

type fakeHistory struct {
	mu    sync.Mutex
	snaps []BatchSnapshot
}

func (h *fakeHistory) RecordBatch(_ context.Context, snap BatchSnapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snaps = append(h.snaps, snap)
	return nil
}

func (h *fakeHistory) LookupBatch(_ context.Context, batchID string) (BatchSnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.snaps) - 1; i >= 0; i-- {
		if h.snaps[i].BatchID == batchID {
			return h.snaps[i], nil
		}
	}
	return BatchSnapshot{}, ErrBatchNotFound
}

// durableFailures hides Forget, like a failure store backed by a database.
type durableFailures struct {
	FailureStore
}

type testEnv struct {
	svc      *Service
	catalog  *fakeCatalog
	dir      *fakeDirectory
	writer   *fakeWriter
	failures *MemoryFailureStore
	history  *fakeHistory
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	env := &testEnv{
		catalog: &fakeCatalog{
			services: salonCatalog(),
			staff:    map[string]bool{"staff-1": true},
		},
		dir:      newFakeDirectory(),
		writer:   &fakeWriter{},
		failures: NewMemoryFailureStore(),
		history:  &fakeHistory{},
	}

	svc, err := NewService(Dependencies{
		Catalog:      env.catalog,
		Clients:      env.dir,
		Appointments: env.writer,
		Failures:     env.failures,
		History:      env.history,
	}, opts)
	require.NoError(t, err)
	env.svc = svc
	return env
}

// ingestCSV ingests a semicolon separated file built from lines.
func (e *testEnv) ingestCSV(t *testing.T, lines ...string) *IngestResult {
	t.Helper()
	res, err := e.svc.Ingest(context.Background(), Upload{
		FileName: "history.csv",
		Body:     strings.NewReader(strings.Join(lines, "\n") + "\n"),
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) wait(t *testing.T, batchID string) BatchSnapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := e.svc.WaitForBatch(ctx, batchID)
	require.NoError(t, err)
	return snap
}
