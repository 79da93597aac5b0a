package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolancloud/ncp/internal/domain"
	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
)

type fakeRuntime struct {
	states  map[string]*domain.RuntimeState
	failAll bool
	failIDs map[string]bool
}

func (f *fakeRuntime) Inspect(_ context.Context, id string) (*domain.RuntimeState, error) {
	if f.failAll || f.failIDs[id] {
		return nil, domainerrors.RuntimeUnavailableError{Err: errors.New("daemon unreachable")}
	}
	state, ok := f.states[id]
	if !ok {
		return nil, domainerrors.NotFoundError{Resource: "container"}
	}
	return state, nil
}

func (f *fakeRuntime) List(context.Context, bool) ([]domain.RuntimeContainer, error) {
	return nil, nil
}

func (f *fakeRuntime) Create(context.Context, domain.CreateSpec) (*domain.CreatedResource, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRuntime) Start(context.Context, string) error   { return nil }
func (f *fakeRuntime) Stop(context.Context, string) error    { return nil }
func (f *fakeRuntime) Restart(context.Context, string) error { return nil }

func (f *fakeRuntime) Remove(context.Context, string, bool) error { return nil }

func (f *fakeRuntime) Stats(context.Context, string) (domain.StatsSnapshot, error) {
	return nil, errors.New("not implemented")
}

type fakeInstanceStore struct {
	byID map[string]*domain.Instance
}

func (f *fakeInstanceStore) Create(_ context.Context, inst *domain.Instance) error {
	cp := *inst
	f.byID[inst.ID] = &cp
	return nil
}

func (f *fakeInstanceStore) Get(_ context.Context, id string) (*domain.Instance, error) {
	inst, ok := f.byID[id]
	if !ok {
		return nil, domainerrors.NotFoundError{Resource: "instance"}
	}
	cp := *inst
	return &cp, nil
}

func (f *fakeInstanceStore) ListByUser(context.Context, string) ([]domain.Instance, error) {
	return nil, nil
}

func (f *fakeInstanceStore) ListActive(context.Context) ([]domain.Instance, error) {
	var out []domain.Instance
	for _, inst := range f.byID {
		if !inst.Status.Terminal() {
			out = append(out, *inst)
		}
	}
	return out, nil
}

func (f *fakeInstanceStore) UpdateStatus(_ context.Context, id string, status domain.InstanceStatus) error {
	inst, ok := f.byID[id]
	if !ok {
		return domainerrors.NotFoundError{Resource: "instance"}
	}
	inst.Status = status
	return nil
}

func (f *fakeInstanceStore) Delete(_ context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

func seed(instances *fakeInstanceStore, id, containerID string, status domain.InstanceStatus) {
	instances.byID[id] = &domain.Instance{
		ID:          id,
		ContainerID: containerID,
		UserID:      "alice",
		Status:      status,
	}
}

func TestSweepMarksMissingContainerTerminated(t *testing.T) {
	runtime := &fakeRuntime{states: map[string]*domain.RuntimeState{}}
	instances := &fakeInstanceStore{byID: map[string]*domain.Instance{}}
	seed(instances, "i1", "gone", domain.StatusRunning)

	r := New(runtime, instances, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	r.Sweep(context.Background())

	got, err := instances.Get(context.Background(), "i1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTerminated, got.Status)
}

func TestSweepRepairsDriftedStatus(t *testing.T) {
	runtime := &fakeRuntime{states: map[string]*domain.RuntimeState{
		"c1": {Status: "exited", Running: false},
	}}
	instances := &fakeInstanceStore{byID: map[string]*domain.Instance{}}
	seed(instances, "i1", "c1", domain.StatusRunning)

	r := New(runtime, instances, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	r.Sweep(context.Background())

	got, err := instances.Get(context.Background(), "i1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExited, got.Status)
}

func TestSweepLeavesMatchingStatusAlone(t *testing.T) {
	runtime := &fakeRuntime{states: map[string]*domain.RuntimeState{
		"c1": {Status: "running", Running: true},
	}}
	instances := &fakeInstanceStore{byID: map[string]*domain.Instance{}}
	seed(instances, "i1", "c1", domain.StatusRunning)

	r := New(runtime, instances, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	r.Sweep(context.Background())

	got, err := instances.Get(context.Background(), "i1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, got.Status)
}

func TestSweepSkipsInstanceWhenRuntimeUnreachable(t *testing.T) {
	// An unreachable daemon must not look like a deleted container.
	runtime := &fakeRuntime{states: map[string]*domain.RuntimeState{}, failAll: true}
	instances := &fakeInstanceStore{byID: map[string]*domain.Instance{}}
	seed(instances, "i1", "c1", domain.StatusRunning)

	r := New(runtime, instances, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	r.Sweep(context.Background())

	got, err := instances.Get(context.Background(), "i1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, got.Status)
}

func TestSweepFailureIsContainedPerInstance(t *testing.T) {
	runtime := &fakeRuntime{
		states:  map[string]*domain.RuntimeState{"c2": {Status: "exited"}},
		failIDs: map[string]bool{"c1": true},
	}
	instances := &fakeInstanceStore{byID: map[string]*domain.Instance{}}
	seed(instances, "i1", "c1", domain.StatusRunning)
	seed(instances, "i2", "c2", domain.StatusRunning)

	r := New(runtime, instances, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	r.Sweep(context.Background())

	skipped, err := instances.Get(context.Background(), "i1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, skipped.Status)

	repaired, err := instances.Get(context.Background(), "i2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExited, repaired.Status)
}

func TestSweepIgnoresTerminatedInstances(t *testing.T) {
	runtime := &fakeRuntime{states: map[string]*domain.RuntimeState{}}
	instances := &fakeInstanceStore{byID: map[string]*domain.Instance{}}
	seed(instances, "i1", "gone", domain.StatusTerminated)

	r := New(runtime, instances, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	r.Sweep(context.Background())

	got, err := instances.Get(context.Background(), "i1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTerminated, got.Status)
}
