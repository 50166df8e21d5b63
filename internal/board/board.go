package board

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/models/task"
	"taskBoard/internal/service"
	"taskBoard/internal/view"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Store interface {
	ListTasks(ctx context.Context) ([]*task.Task, error)
	CreateTask(ctx context.Context, fields task.Fields) (*task.Task, error)
	UpdateTask(ctx context.Context, id string, options ...task.TaskOption) (*task.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Snapshot - неизменяемая копия списка на момент ревизии
type Snapshot struct {
	Revision uint64
	Tasks    []task.Task
}

// Board - единственный владелец списка задач в памяти. Переключение и удаление
// применяются сразу и откатываются, если хранилище их не подтвердило.
type Board struct {
	store    Store
	notifier Notifier
	hooks    []func(Outcome)
	now      func() time.Time

	mtx      sync.Mutex
	tasks    []task.Task
	revision uint64
	inflight map[string]Op
	subs     map[chan Snapshot]struct{}

	// epoch растёт с каждым подтверждённым изменением; settled хранит epoch
	// последнего подтверждения по id, пока его не покроет более свежая загрузка
	epoch   uint64
	settled map[string]uint64

	refresh singleflight.Group
}

type Option func(*Board)

// WithOutcomeHook подписывает fn на все исходы изменений
func WithOutcomeHook(fn func(Outcome)) Option {
	return func(b *Board) {
		b.hooks = append(b.hooks, fn)
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Board) {
		b.now = now
	}
}

func New(store Store, notifier Notifier, options ...Option) *Board {
	if notifier == nil {
		notifier = LogNotifier
	}
	b := &Board{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		inflight: make(map[string]Op),
		settled:  make(map[string]uint64),
		subs:     make(map[chan Snapshot]struct{}),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Load - первичная загрузка списка
func (b *Board) Load(ctx context.Context) error {
	return b.Refresh(ctx)
}

type fetched struct {
	tasks []*task.Task
	since uint64
}

// Refresh заменяет локальный список данными хранилища. Параллельные вызовы
// объединяются в один запрос, отмена ctx одного вызова его не прерывает.
// Записи с незавершёнными изменениями и записи, подтверждённые уже после
// начала загрузки, остаются в локальном состоянии.
func (b *Board) Refresh(ctx context.Context) error {
	ch := b.refresh.DoChan("list", func() (any, error) {
		b.mtx.Lock()
		since := b.epoch
		b.mtx.Unlock()

		tasks, err := b.store.ListTasks(context.WithoutCancel(ctx))
		return fetched{tasks: tasks, since: since}, err
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return fmt.Errorf("загрузка задач: %w", ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		logger.Warn("Board: Не удалось загрузить задачи", zap.Error(res.Err))
		return fmt.Errorf("загрузка задач: %w", res.Err)
	}

	f := res.Val.(fetched)

	b.mtx.Lock()
	defer b.mtx.Unlock()

	next := make([]task.Task, 0, len(f.tasks))
	seen := make(map[string]struct{}, len(f.tasks))
	for _, t := range f.tasks {
		seen[t.ID] = struct{}{}
		if b.inflight[t.ID] == OpDelete {
			continue
		}
		newer := b.settled[t.ID] > f.since
		if newer || b.inflight[t.ID] == OpToggle {
			if local, ok := b.find(t.ID); ok {
				next = append(next, b.tasks[local])
				continue
			}
			if newer {
				// удалена после начала загрузки
				continue
			}
		}
		next = append(next, *t)
	}
	for _, t := range b.tasks {
		if _, ok := seen[t.ID]; !ok && b.settled[t.ID] > f.since {
			next = append(next, t)
		}
	}
	for id, epoch := range b.settled {
		if epoch <= f.since {
			delete(b.settled, id)
		}
	}

	b.tasks = next
	b.publish()

	logger.Debug("Board: Список обновлён", zap.Int("count", len(next)), zap.Bool("shared", res.Shared))
	return nil
}

func (b *Board) Create(ctx context.Context, fields task.Fields) Outcome {
	created, err := b.store.CreateTask(ctx, fields)
	if err != nil {
		return b.fail(Outcome{Op: OpCreate, State: StateRejected, Err: err})
	}

	b.mtx.Lock()
	b.put(*created)
	b.settle(created.ID)
	b.publish()
	b.mtx.Unlock()

	return b.emit(Outcome{Op: OpCreate, State: StateConfirmed, TaskID: created.ID, Task: created})
}

// Edit сохраняет изменения без оптимистичного применения
func (b *Board) Edit(ctx context.Context, id string, options ...task.TaskOption) Outcome {
	b.mtx.Lock()
	if err := b.begin(id, OpEdit); err != nil {
		b.mtx.Unlock()
		return b.fail(Outcome{Op: OpEdit, State: StateRejected, TaskID: id, Err: err})
	}
	b.mtx.Unlock()

	updated, err := b.store.UpdateTask(ctx, id, options...)

	b.mtx.Lock()
	delete(b.inflight, id)
	if err == nil {
		b.put(*updated)
		b.settle(id)
		b.publish()
	}
	b.mtx.Unlock()

	if err != nil {
		return b.fail(Outcome{Op: OpEdit, State: StateRejected, TaskID: id, Err: err})
	}
	return b.emit(Outcome{Op: OpEdit, State: StateConfirmed, TaskID: id, Task: updated})
}

// Toggle меняет статус выполнения сразу, до ответа хранилища
func (b *Board) Toggle(ctx context.Context, id string) Outcome {
	b.mtx.Lock()
	idx, ok := b.find(id)
	if !ok {
		b.mtx.Unlock()
		return b.fail(Outcome{Op: OpToggle, State: StateRejected, TaskID: id, Err: service.NewNotFound(id)})
	}
	if err := b.begin(id, OpToggle); err != nil {
		b.mtx.Unlock()
		return b.fail(Outcome{Op: OpToggle, State: StateRejected, TaskID: id, Err: err})
	}

	prior := b.tasks[idx]
	tentative := prior
	tentative.Completed = !prior.Completed
	b.tasks[idx] = tentative
	b.publish()
	b.mtx.Unlock()

	b.emit(Outcome{Op: OpToggle, State: StatePending, TaskID: id, Task: &tentative})

	updated, err := b.store.UpdateTask(ctx, id,
		task.WithCompleted(tentative.Completed),
		task.WithVersion(prior.Version))

	b.mtx.Lock()
	delete(b.inflight, id)
	if err != nil {
		if i, ok := b.find(id); ok {
			b.tasks[i] = prior
		} else {
			b.tasks = slices.Insert(b.tasks, min(idx, len(b.tasks)), prior)
		}
	} else {
		b.put(*updated)
		b.settle(id)
	}
	b.publish()
	b.mtx.Unlock()

	if err != nil {
		return b.fail(Outcome{Op: OpToggle, State: StateRolledBack, TaskID: id, Task: &prior, Err: err})
	}
	return b.emit(Outcome{Op: OpToggle, State: StateConfirmed, TaskID: id, Task: updated})
}

// Delete удаляет задачу после подтверждения через gate. При ошибке хранилища
// список восстанавливается в исходном порядке.
func (b *Board) Delete(ctx context.Context, id string, gate Confirmer) Outcome {
	b.mtx.Lock()
	idx, ok := b.find(id)
	if !ok {
		b.mtx.Unlock()
		return b.fail(Outcome{Op: OpDelete, State: StateRejected, TaskID: id, Err: service.NewNotFound(id)})
	}
	if _, busy := b.inflight[id]; busy {
		b.mtx.Unlock()
		return b.fail(Outcome{Op: OpDelete, State: StateRejected, TaskID: id, Err: inFlight(id)})
	}
	target := b.tasks[idx]
	b.mtx.Unlock()

	if gate == nil {
		return b.emit(Outcome{Op: OpDelete, State: StateRejected, TaskID: id,
			Err: service.NewBusinessError(CodeConfirmationRequired, "удаление требует подтверждения",
				service.ToDetail("id", id))})
	}

	confirmed, err := gate.Confirm(ctx, target)
	if err != nil {
		return b.fail(Outcome{Op: OpDelete, State: StateRejected, TaskID: id, Err: fmt.Errorf("подтверждение удаления: %w", err)})
	}
	if !confirmed {
		return b.emit(Outcome{Op: OpDelete, State: StateRejected, TaskID: id, Err: ErrDeclined})
	}

	b.mtx.Lock()
	idx, ok = b.find(id)
	if !ok {
		b.mtx.Unlock()
		return b.fail(Outcome{Op: OpDelete, State: StateRejected, TaskID: id, Err: service.NewNotFound(id)})
	}
	if err := b.begin(id, OpDelete); err != nil {
		b.mtx.Unlock()
		return b.fail(Outcome{Op: OpDelete, State: StateRejected, TaskID: id, Err: err})
	}
	before := slices.Clone(b.tasks)
	target = b.tasks[idx]
	b.tasks = slices.Delete(b.tasks, idx, idx+1)
	b.publish()
	b.mtx.Unlock()

	b.emit(Outcome{Op: OpDelete, State: StatePending, TaskID: id, Task: &target})

	err = b.store.DeleteTask(ctx, id)

	b.mtx.Lock()
	delete(b.inflight, id)
	if err != nil {
		b.tasks = restore(before, b.tasks, id)
		b.publish()
	} else {
		b.settle(id)
	}
	b.mtx.Unlock()

	if err != nil {
		return b.fail(Outcome{Op: OpDelete, State: StateRolledBack, TaskID: id, Task: &target, Err: err})
	}
	return b.emit(Outcome{Op: OpDelete, State: StateConfirmed, TaskID: id, Task: &target})
}

func (b *Board) Snapshot() Snapshot {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.snapshot()
}

func (b *Board) View(q view.Query) []task.Task {
	return view.Project(b.Snapshot().Tasks, q)
}

func (b *Board) Summary() view.Summary {
	return view.Summarize(b.Snapshot().Tasks, b.now())
}

// Subscribe возвращает канал со снимками после каждого изменения. Медленный
// подписчик получает только последний снимок.
func (b *Board) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	b.mtx.Lock()
	b.subs[ch] = struct{}{}
	ch <- b.snapshot()
	b.mtx.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mtx.Lock()
			delete(b.subs, ch)
			close(ch)
			b.mtx.Unlock()
		})
	}
}

func (b *Board) snapshot() Snapshot {
	return Snapshot{Revision: b.revision, Tasks: slices.Clone(b.tasks)}
}

func (b *Board) publish() {
	b.revision++
	snap := b.snapshot()
	for ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (b *Board) find(id string) (int, bool) {
	idx := slices.IndexFunc(b.tasks, func(t task.Task) bool { return t.ID == id })
	return idx, idx >= 0
}

// put заменяет запись по id или добавляет её в конец
func (b *Board) put(t task.Task) {
	if idx, ok := b.find(t.ID); ok {
		b.tasks[idx] = t
		return
	}
	b.tasks = append(b.tasks, t)
}

// settle отмечает подтверждённое изменение, чтобы загрузка, начатая раньше, его не затёрла
func (b *Board) settle(id string) {
	b.epoch++
	b.settled[id] = b.epoch
}

func (b *Board) begin(id string, op Op) error {
	if _, busy := b.inflight[id]; busy {
		return inFlight(id)
	}
	b.inflight[id] = op
	return nil
}

func (b *Board) fail(o Outcome) Outcome {
	b.notifier.Notify(Notice{Op: o.Op, TaskID: o.TaskID, Message: noticeText(o.Op), Err: o.Err})
	return b.emit(o)
}

func (b *Board) emit(o Outcome) Outcome {
	for _, hook := range b.hooks {
		hook(o)
	}
	return o
}

func inFlight(id string) error {
	return service.NewBusinessError(CodeMutationInFlight, fmt.Sprintf("задача %s уже изменяется", id),
		service.ToDetail("id", id))
}

// restore возвращает список к порядку before. Записи, изменённые за время
// удаления, берутся из current, созданные за это время идут в конец.
func restore(before, current []task.Task, deletedID string) []task.Task {
	byID := make(map[string]task.Task, len(current))
	for _, t := range current {
		byID[t.ID] = t
	}

	out := make([]task.Task, 0, len(before)+len(current))
	seen := make(map[string]struct{}, len(before))
	for _, t := range before {
		seen[t.ID] = struct{}{}
		if t.ID == deletedID {
			out = append(out, t)
			continue
		}
		if cur, ok := byID[t.ID]; ok {
			out = append(out, cur)
		}
	}
	for _, t := range current {
		if _, ok := seen[t.ID]; !ok {
			out = append(out, t)
		}
	}
	return out
}
