package slot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"taskBoard/internal/models/task"
	repo "taskBoard/internal/repository"
)

// SchemaVersion - текущая версия формата ячейки.
// Версия 0 - исходный формат: голый массив задач, id мог называться "_id".
const SchemaVersion = 1

type document struct {
	SchemaVersion int          `json:"schemaVersion"`
	Tasks         []*task.Task `json:"tasks"`
}

type legacyRecord struct {
	task.Task
	LegacyID string `json:"_id"`
}

func encode(tasks []*task.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []*task.Task{}
	}
	return json.Marshal(document{SchemaVersion: SchemaVersion, Tasks: tasks})
}

func decode(data []byte) ([]*task.Task, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []*task.Task{}, nil
	}

	var tasks []*task.Task
	switch trimmed[0] {
	case '[':
		migrated, err := decodeLegacy(trimmed)
		if err != nil {
			return nil, err
		}
		tasks = migrated
	case '{':
		var doc document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", repo.ErrCorruptState, err)
		}
		if doc.SchemaVersion > SchemaVersion {
			return nil, fmt.Errorf("%w: %d (поддерживается до %d)", repo.ErrUnsupportedSchema, doc.SchemaVersion, SchemaVersion)
		}
		if doc.SchemaVersion < 1 {
			return nil, fmt.Errorf("%w: не указана версия схемы", repo.ErrCorruptState)
		}
		tasks = doc.Tasks
	default:
		return nil, fmt.Errorf("%w: неожиданный формат ячейки", repo.ErrCorruptState)
	}

	if tasks == nil {
		tasks = []*task.Task{}
	}
	if err := validate(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func decodeLegacy(data []byte) ([]*task.Task, error) {
	var records []legacyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", repo.ErrCorruptState, err)
	}

	tasks := make([]*task.Task, 0, len(records))
	for _, rec := range records {
		t := rec.Task
		if t.ID == "" {
			t.ID = rec.LegacyID
		}
		if t.Version == 0 {
			t.Version = 1
		}
		tasks = append(tasks, &t)
	}
	return tasks, nil
}

func validate(tasks []*task.Task) error {
	seen := make(map[string]struct{}, len(tasks))
	for i, t := range tasks {
		if t == nil {
			return fmt.Errorf("%w: запись %d пуста", repo.ErrCorruptState, i)
		}
		if t.ID == "" {
			return fmt.Errorf("%w: запись %d без id", repo.ErrCorruptState, i)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: повторяющийся id %s", repo.ErrCorruptState, t.ID)
		}
		seen[t.ID] = struct{}{}

		if strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("%w: задача %s без названия", repo.ErrCorruptState, t.ID)
		}
		if !t.Priority.Valid() {
			return fmt.Errorf("%w: задача %s с приоритетом %q", repo.ErrCorruptState, t.ID, t.Priority)
		}
		if t.CreatedAt.IsZero() || t.DueDate.IsZero() {
			return fmt.Errorf("%w: задача %s без дат", repo.ErrCorruptState, t.ID)
		}
	}
	return nil
}
