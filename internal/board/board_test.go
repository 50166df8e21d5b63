package board_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taskBoard/internal/board"
	"taskBoard/internal/models/task"
	"taskBoard/internal/repository/task/inmemory"
	"taskBoard/internal/service"
	"taskBoard/internal/view"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore - мок хранилища задач
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListTasks(ctx context.Context) ([]*task.Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockStore) CreateTask(ctx context.Context, fields task.Fields) (*task.Task, error) {
	args := m.Called(ctx, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockStore) UpdateTask(ctx context.Context, id string, options ...task.TaskOption) (*task.Task, error) {
	args := m.Called(ctx, id, options)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

func (m *MockStore) DeleteTask(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ board.Store = (*MockStore)(nil)

// recorder собирает уведомления и исходы
type recorder struct {
	mtx      sync.Mutex
	notices  []board.Notice
	outcomes []board.Outcome
}

func (r *recorder) Notify(n board.Notice) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) hook(o board.Outcome) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recorder) noticeCount() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.notices)
}

var due = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func seed() []*task.Task {
	return []*task.Task{
		{ID: "a", Title: "A", Priority: task.PriorityLow, DueDate: due, Version: 1},
		{ID: "b", Title: "B", Priority: task.PriorityHigh, DueDate: due.Add(time.Hour), Version: 4},
		{ID: "c", Title: "C", Priority: task.PriorityMedium, DueDate: due.Add(2 * time.Hour), Version: 2},
	}
}

func loaded(t *testing.T, store *MockStore) (*board.Board, *recorder) {
	t.Helper()
	rec := &recorder{}
	store.On("ListTasks", mock.Anything).Return(seed(), nil).Once()

	b := board.New(store, rec, board.WithOutcomeHook(rec.hook))
	require.NoError(t, b.Load(context.Background()))
	return b, rec
}

func ids(tasks []task.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestBoard_Load(t *testing.T) {
	store := new(MockStore)
	b, _ := loaded(t, store)

	snap := b.Snapshot()
	assert.Equal(t, []string{"a", "b", "c"}, ids(snap.Tasks))
	assert.Equal(t, uint64(1), snap.Revision)

	snap.Tasks[0].Title = "изменено снаружи"
	assert.Equal(t, "A", b.Snapshot().Tasks[0].Title)
}

func TestBoard_LoadFailure(t *testing.T) {
	store := new(MockStore)
	store.On("ListTasks", mock.Anything).Return(nil, errors.New("offline"))

	b := board.New(store, nil)
	err := b.Load(context.Background())

	assert.ErrorContains(t, err, "загрузка задач")
	assert.Empty(t, b.Snapshot().Tasks)
}

func TestBoard_Create(t *testing.T) {
	fields := task.Fields{Title: "D", Priority: task.PriorityLow, DueDate: due}

	t.Run("success - confirmed task appended", func(t *testing.T) {
		store := new(MockStore)
		b, rec := loaded(t, store)
		store.On("CreateTask", mock.Anything, fields).Return(&task.Task{ID: "d", Title: "D", Version: 1}, nil)

		out := b.Create(context.Background(), fields)

		assert.Equal(t, board.StateConfirmed, out.State)
		assert.True(t, out.Ok())
		assert.Equal(t, []string{"a", "b", "c", "d"}, ids(b.Snapshot().Tasks))
		assert.Zero(t, rec.noticeCount())
	})

	t.Run("error - nothing applied and one notice", func(t *testing.T) {
		store := new(MockStore)
		b, rec := loaded(t, store)
		store.On("CreateTask", mock.Anything, fields).Return(nil, service.NewValidationError("title", "пусто"))

		out := b.Create(context.Background(), fields)

		assert.Equal(t, board.StateRejected, out.State)
		assert.True(t, service.HasCode(out.Err, service.CodeValidation))
		assert.Equal(t, []string{"a", "b", "c"}, ids(b.Snapshot().Tasks))
		assert.Equal(t, 1, rec.noticeCount())
	})
}

func TestBoard_Edit(t *testing.T) {
	store := new(MockStore)
	b, rec := loaded(t, store)
	store.On("UpdateTask", mock.Anything, "b", mock.Anything).
		Return(&task.Task{ID: "b", Title: "B2", Priority: task.PriorityHigh, DueDate: due, Version: 5}, nil).Once()
	store.On("UpdateTask", mock.Anything, "c", mock.Anything).
		Return(nil, service.NewVersionConflict("c", 1, 2)).Once()

	out := b.Edit(context.Background(), "b", task.WithTitle("B2"))
	require.Equal(t, board.StateConfirmed, out.State)
	assert.Equal(t, "B2", b.Snapshot().Tasks[1].Title)

	out = b.Edit(context.Background(), "c", task.WithVersion(1), task.WithTitle("C2"))
	assert.Equal(t, board.StateRejected, out.State)
	assert.True(t, service.HasCode(out.Err, service.CodeVersionConflict))
	assert.Equal(t, "C", b.Snapshot().Tasks[2].Title)
	assert.Equal(t, 1, rec.noticeCount())
}

func TestBoard_Toggle(t *testing.T) {
	t.Run("success - confirmed record merged", func(t *testing.T) {
		store := new(MockStore)
		b, rec := loaded(t, store)
		store.On("UpdateTask", mock.Anything, "a", mock.Anything).
			Return(&task.Task{ID: "a", Title: "A", Priority: task.PriorityLow, DueDate: due, Completed: true, Version: 2}, nil)

		out := b.Toggle(context.Background(), "a")

		assert.Equal(t, board.StateConfirmed, out.State)
		got := b.Snapshot().Tasks[0]
		assert.True(t, got.Completed)
		assert.Equal(t, 2, got.Version)
		require.Len(t, rec.outcomes, 2)
		assert.Equal(t, board.StatePending, rec.outcomes[0].State)
		assert.Equal(t, board.StateConfirmed, rec.outcomes[1].State)
	})

	t.Run("error - rollback restores identical record with one notice", func(t *testing.T) {
		store := new(MockStore)
		b, rec := loaded(t, store)
		before := b.Snapshot().Tasks

		release := make(chan time.Time)
		store.On("UpdateTask", mock.Anything, "b", mock.Anything).
			WaitUntil(release).
			Return(nil, service.NewStorageUnavailable(errors.New("offline")))

		done := make(chan board.Outcome)
		go func() { done <- b.Toggle(context.Background(), "b") }()

		assert.Eventually(t, func() bool {
			return b.Snapshot().Tasks[1].Completed
		}, time.Second, 5*time.Millisecond, "предварительное состояние должно быть видно")

		close(release)
		out := <-done

		assert.Equal(t, board.StateRolledBack, out.State)
		assert.True(t, service.HasCode(out.Err, service.CodeStorageUnavailable))
		assert.Equal(t, before, b.Snapshot().Tasks)
		assert.Equal(t, 1, rec.noticeCount())
		assert.Equal(t, board.OpToggle, rec.notices[0].Op)
	})

	t.Run("error - unknown id", func(t *testing.T) {
		store := new(MockStore)
		b, _ := loaded(t, store)

		out := b.Toggle(context.Background(), "zzz")

		assert.Equal(t, board.StateRejected, out.State)
		assert.True(t, service.HasCode(out.Err, service.CodeNotFound))
		store.AssertNotCalled(t, "UpdateTask", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBoard_SecondMutationInFlightRejected(t *testing.T) {
	store := new(MockStore)
	b, _ := loaded(t, store)

	release := make(chan time.Time)
	store.On("UpdateTask", mock.Anything, "a", mock.Anything).
		WaitUntil(release).
		Return(&task.Task{ID: "a", Title: "A", Completed: true, Version: 2}, nil).Once()

	done := make(chan board.Outcome)
	go func() { done <- b.Toggle(context.Background(), "a") }()

	require.Eventually(t, func() bool {
		return b.Snapshot().Tasks[0].Completed
	}, time.Second, 5*time.Millisecond)

	second := b.Toggle(context.Background(), "a")
	assert.Equal(t, board.StateRejected, second.State)
	assert.True(t, service.HasCode(second.Err, board.CodeMutationInFlight))

	del := b.Delete(context.Background(), "a", board.Always)
	assert.True(t, service.HasCode(del.Err, board.CodeMutationInFlight))

	close(release)
	assert.Equal(t, board.StateConfirmed, (<-done).State)
	store.AssertNumberOfCalls(t, "UpdateTask", 1)
}

func TestBoard_Delete(t *testing.T) {
	t.Run("success - removed", func(t *testing.T) {
		store := new(MockStore)
		b, _ := loaded(t, store)
		store.On("DeleteTask", mock.Anything, "b").Return(nil)

		out := b.Delete(context.Background(), "b", board.Always)

		assert.Equal(t, board.StateConfirmed, out.State)
		assert.Equal(t, []string{"a", "c"}, ids(b.Snapshot().Tasks))
	})

	t.Run("error - rollback restores the full list in order", func(t *testing.T) {
		store := new(MockStore)
		b, rec := loaded(t, store)
		before := b.Snapshot().Tasks
		store.On("DeleteTask", mock.Anything, "b").Return(service.NewStorageUnavailable(errors.New("offline")))

		out := b.Delete(context.Background(), "b", board.Always)

		assert.Equal(t, board.StateRolledBack, out.State)
		assert.Equal(t, before, b.Snapshot().Tasks)
		assert.Equal(t, 1, rec.noticeCount())
	})

	t.Run("declined - nothing happens and no notice", func(t *testing.T) {
		store := new(MockStore)
		b, rec := loaded(t, store)

		out := b.Delete(context.Background(), "b", board.ConfirmFunc(func(_ context.Context, t task.Task) (bool, error) {
			return false, nil
		}))

		assert.Equal(t, board.StateRejected, out.State)
		assert.ErrorIs(t, out.Err, board.ErrDeclined)
		assert.Len(t, b.Snapshot().Tasks, 3)
		assert.Zero(t, rec.noticeCount())
		store.AssertNotCalled(t, "DeleteTask", mock.Anything, mock.Anything)
	})

	t.Run("missing gate requires confirmation", func(t *testing.T) {
		store := new(MockStore)
		b, _ := loaded(t, store)

		out := b.Delete(context.Background(), "b", nil)

		assert.True(t, service.HasCode(out.Err, board.CodeConfirmationRequired))
		assert.Len(t, b.Snapshot().Tasks, 3)
	})

	t.Run("gate sees the task being deleted", func(t *testing.T) {
		store := new(MockStore)
		b, _ := loaded(t, store)
		store.On("DeleteTask", mock.Anything, "c").Return(nil)

		var asked string
		b.Delete(context.Background(), "c", board.ConfirmFunc(func(_ context.Context, t task.Task) (bool, error) {
			asked = t.Title
			return true, nil
		}))

		assert.Equal(t, "C", asked)
	})
}

func TestBoard_RefreshKeepsTentativeState(t *testing.T) {
	store := new(MockStore)
	b, _ := loaded(t, store)

	release := make(chan time.Time)
	store.On("DeleteTask", mock.Anything, "a").WaitUntil(release).Return(nil)
	store.On("ListTasks", mock.Anything).Return(seed(), nil).Once()

	done := make(chan board.Outcome)
	go func() { done <- b.Delete(context.Background(), "a", board.Always) }()

	require.Eventually(t, func() bool {
		return len(b.Snapshot().Tasks) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Refresh(context.Background()))
	assert.Equal(t, []string{"b", "c"}, ids(b.Snapshot().Tasks))

	close(release)
	assert.Equal(t, board.StateConfirmed, (<-done).State)
}

func TestBoard_Subscribe(t *testing.T) {
	store := new(MockStore)
	b, _ := loaded(t, store)
	store.On("DeleteTask", mock.Anything, mock.Anything).Return(nil)

	updates, cancel := b.Subscribe()
	defer cancel()

	first := <-updates
	assert.Len(t, first.Tasks, 3)

	b.Delete(context.Background(), "a", board.Always)
	b.Delete(context.Background(), "b", board.Always)

	latest := <-updates
	assert.Equal(t, []string{"c"}, ids(latest.Tasks))
	assert.Greater(t, latest.Revision, first.Revision)

	cancel()
	_, open := <-updates
	assert.False(t, open)
}

func TestBoard_ViewAndSummary(t *testing.T) {
	store := new(MockStore)
	rec := &recorder{}
	store.On("ListTasks", mock.Anything).Return(seed(), nil)

	b := board.New(store, rec, board.WithClock(func() time.Time { return due.Add(90 * time.Minute) }))
	require.NoError(t, b.Load(context.Background()))

	assert.Equal(t, []string{"b", "c", "a"}, ids(b.View(view.Query{Sort: view.SortByPriority})))
	assert.Equal(t, view.Summary{Total: 3, Pending: 3, Overdue: 2}, b.Summary())
}

// Полный цикл поверх настоящего сервиса
func TestBoard_WithTaskService(t *testing.T) {
	ctx := context.Background()
	svc := service.NewTaskService(inmemory.NewTaskStorage())
	b := board.New(svc, nil)
	require.NoError(t, b.Load(ctx))

	created := b.Create(ctx, task.Fields{Title: "Позвонить", Priority: task.PriorityHigh, DueDate: due})
	require.True(t, created.Ok())

	toggled := b.Toggle(ctx, created.TaskID)
	require.True(t, toggled.Ok())
	assert.True(t, toggled.Task.Completed)

	// повторное переключение использует уже подтверждённую версию
	again := b.Toggle(ctx, created.TaskID)
	require.True(t, again.Ok())
	assert.False(t, again.Task.Completed)
	assert.Equal(t, 3, again.Task.Version)

	deleted := b.Delete(ctx, created.TaskID, board.Always)
	require.True(t, deleted.Ok())

	stored, err := svc.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

// listingStore сообщает в started о начале каждой загрузки списка
type listingStore struct {
	*MockStore
	started chan struct{}
}

func (s listingStore) ListTasks(ctx context.Context) ([]*task.Task, error) {
	s.started <- struct{}{}
	return s.MockStore.ListTasks(ctx)
}

func loadedListing(t *testing.T) (*board.Board, *MockStore, listingStore) {
	t.Helper()
	store := new(MockStore)
	ls := listingStore{MockStore: store, started: make(chan struct{}, 8)}
	store.On("ListTasks", mock.Anything).Return(seed(), nil).Once()

	b := board.New(ls, &recorder{})
	require.NoError(t, b.Load(context.Background()))
	<-ls.started
	return b, store, ls
}

func TestBoard_RefreshDoesNotUndoMutationsConfirmedDuringFetch(t *testing.T) {
	ctx := context.Background()
	b, store, ls := loadedListing(t)

	release := make(chan time.Time)
	// хранилище отдаёт список, снятый до удаления и переключения
	store.On("ListTasks", mock.Anything).WaitUntil(release).Return(seed(), nil).Once()
	store.On("DeleteTask", mock.Anything, "b").Return(nil)
	store.On("UpdateTask", mock.Anything, "a", mock.Anything).
		Return(&task.Task{ID: "a", Title: "A", Priority: task.PriorityLow, DueDate: due, Completed: true, Version: 2}, nil)

	done := make(chan error)
	go func() { done <- b.Refresh(ctx) }()
	<-ls.started

	require.Equal(t, board.StateConfirmed, b.Delete(ctx, "b", board.Always).State)
	require.Equal(t, board.StateConfirmed, b.Toggle(ctx, "a").State)

	close(release)
	require.NoError(t, <-done)

	snap := b.Snapshot()
	require.Equal(t, []string{"a", "c"}, ids(snap.Tasks))
	assert.True(t, snap.Tasks[0].Completed)
	assert.Equal(t, 2, snap.Tasks[0].Version)

	// следующая загрузка начата после подтверждений, её данные главнее
	store.On("ListTasks", mock.Anything).Return([]*task.Task{seed()[2]}, nil).Once()
	require.NoError(t, b.Refresh(ctx))
	<-ls.started
	assert.Equal(t, []string{"c"}, ids(b.Snapshot().Tasks))
}

func TestBoard_RefreshCreatedDuringFetchIsKept(t *testing.T) {
	ctx := context.Background()
	b, store, ls := loadedListing(t)

	release := make(chan time.Time)
	store.On("ListTasks", mock.Anything).WaitUntil(release).Return(seed(), nil).Once()
	fields := task.Fields{Title: "D", Priority: task.PriorityHigh, DueDate: due}
	store.On("CreateTask", mock.Anything, fields).
		Return(&task.Task{ID: "d", Title: "D", Priority: task.PriorityHigh, DueDate: due, Version: 1}, nil)

	done := make(chan error)
	go func() { done <- b.Refresh(ctx) }()
	<-ls.started

	require.Equal(t, board.StateConfirmed, b.Create(ctx, fields).State)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(b.Snapshot().Tasks))
}

func TestBoard_RefreshCallerCancelDoesNotFailOthers(t *testing.T) {
	b, store, ls := loadedListing(t)

	release := make(chan time.Time)
	store.On("ListTasks", mock.Anything).WaitUntil(release).Return(seed()[:1], nil)

	cancelled, cancel := context.WithCancel(context.Background())
	first := make(chan error)
	go func() { first <- b.Refresh(cancelled) }()
	<-ls.started

	second := make(chan error)
	go func() { second <- b.Refresh(context.Background()) }()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	require.NoError(t, <-second)
	assert.Equal(t, []string{"a"}, ids(b.Snapshot().Tasks))
}
