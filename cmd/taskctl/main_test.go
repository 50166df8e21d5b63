package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"taskBoard/internal/app"
	"taskBoard/internal/assist"
	"taskBoard/internal/board"
	"taskBoard/internal/config"
	"taskBoard/internal/models/task"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
storage:
  type: file
  dir: data
  latency: 0s
`

type stubParser struct {
	suggestion *assist.Suggestion
}

func (p stubParser) Parse(context.Context, string) (*assist.Suggestion, error) {
	return p.suggestion, nil
}

type harness struct {
	fs     afero.Fs
	parser assist.Parser
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "config.yml", []byte(testConfig), 0o644))
	return &harness{fs: fs}
}

// run выполняет команду как отдельный запуск taskctl над общей файловой системой
func (h *harness) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	env := &cliEnv{
		in:     strings.NewReader(stdin),
		out:    &out,
		errOut: &errOut,
		fs:     h.fs,
		open: func(ctx context.Context, cfg *config.Config, notifier board.Notifier, fs afero.Fs) (*app.Core, error) {
			core, err := app.NewCore(ctx, cfg, notifier, fs)
			if err != nil {
				return nil, err
			}
			if h.parser != nil {
				core.Parser = h.parser
			}
			return core, nil
		},
	}

	cmd := newRootCmd(env)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func (h *harness) add(t *testing.T, title string, extra ...string) string {
	t.Helper()
	args := append([]string{"add", title, "--due", "2030-01-01"}, extra...)
	out, _, err := h.run(t, "", args...)
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.NotEmpty(t, fields)
	return fields[0]
}

func (h *harness) list(t *testing.T, args ...string) []task.Task {
	t.Helper()
	out, _, err := h.run(t, "", append([]string{"list", "-o", "json"}, args...)...)
	require.NoError(t, err)
	var tasks []task.Task
	require.NoError(t, json.Unmarshal([]byte(out), &tasks))
	return tasks
}

func TestAdd_PersistsBetweenRuns(t *testing.T) {
	h := newHarness(t)

	id := h.add(t, "Купить молоко", "--priority", "high", "-d", "2 литра")

	tasks := h.list(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, id, tasks[0].ID)
	assert.Equal(t, "Купить молоко", tasks[0].Title)
	assert.Equal(t, "2 литра", tasks[0].Description)
	assert.Equal(t, task.PriorityHigh, tasks[0].Priority)
	assert.Equal(t, 1, tasks[0].Version)
}

func TestAdd_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "без срока", args: []string{"add", "Задача"}},
		{name: "неверный приоритет", args: []string{"add", "Задача", "--due", "2030-01-01", "-p", "urgent"}},
		{name: "неверная дата", args: []string{"add", "Задача", "--due", "завтра"}},
		{name: "пустое название", args: []string{"add", "  ", "--due", "2030-01-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, _, err := h.run(t, "", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestList_Formats(t *testing.T) {
	h := newHarness(t)
	h.add(t, "Первая")

	tests := []struct {
		name     string
		output   string
		contains string
		wantErr  bool
	}{
		{name: "таблица", output: "table", contains: "НАЗВАНИЕ"},
		{name: "json", output: "json", contains: `"title": "Первая"`},
		{name: "yaml", output: "yaml", contains: "title: Первая"},
		{name: "неизвестный", output: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := h.run(t, "", "list", "-o", tt.output)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.contains)
		})
	}
}

func TestList_SearchFilterSort(t *testing.T) {
	h := newHarness(t)
	h.add(t, "Отчёт", "-p", "low")
	done := h.add(t, "Звонок", "-p", "high")
	h.add(t, "Отчёт за квартал", "-p", "medium")

	_, _, err := h.run(t, "", "toggle", done)
	require.NoError(t, err)

	found := h.list(t, "--search", "ОТЧЁТ", "--sort", "priority")
	require.Len(t, found, 2)
	assert.Equal(t, "Отчёт за квартал", found[0].Title)
	assert.Equal(t, "Отчёт", found[1].Title)

	completed := h.list(t, "--filter", "completed")
	require.Len(t, completed, 1)
	assert.Equal(t, done, completed[0].ID)

	_, _, err = h.run(t, "", "list", "--filter", "archived")
	assert.Error(t, err)
}

func TestEdit_OnlyChangedFlags(t *testing.T) {
	h := newHarness(t)
	id := h.add(t, "Черновик", "-d", "оставить", "-p", "low")

	_, _, err := h.run(t, "", "edit", id, "--title", "Чистовик", "--version", "1")
	require.NoError(t, err)

	tasks := h.list(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Чистовик", tasks[0].Title)
	assert.Equal(t, "оставить", tasks[0].Description)
	assert.Equal(t, task.PriorityLow, tasks[0].Priority)
	assert.Equal(t, 2, tasks[0].Version)

	_, _, err = h.run(t, "", "edit", id, "--title", "Опоздал", "--version", "1")
	assert.Error(t, err)
	assert.Equal(t, "Чистовик", h.list(t)[0].Title)
}

func TestToggle(t *testing.T) {
	h := newHarness(t)
	id := h.add(t, "Задача")

	_, _, err := h.run(t, "", "toggle", id)
	require.NoError(t, err)
	assert.True(t, h.list(t)[0].Completed)

	_, _, err = h.run(t, "", "toggle", "нет-такой")
	assert.Error(t, err)
}

func TestRm(t *testing.T) {
	tests := []struct {
		name      string
		stdin     string
		args      []string
		wantLeft  int
		wantOut   string
		wantPrompt bool
	}{
		{name: "с флагом yes", args: []string{"--yes"}, wantLeft: 0, wantOut: "Удалено"},
		{name: "подтверждение y", stdin: "y\n", wantLeft: 0, wantOut: "Удалено", wantPrompt: true},
		{name: "отказ", stdin: "n\n", wantLeft: 1, wantOut: "Отменено", wantPrompt: true},
		{name: "пустой ответ", stdin: "", wantLeft: 1, wantOut: "Отменено", wantPrompt: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			id := h.add(t, "Удаляемая")

			out, _, err := h.run(t, tt.stdin, append([]string{"rm", id}, tt.args...)...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.wantOut)
			if tt.wantPrompt {
				assert.Contains(t, out, `"Удаляемая"? [y/N]`)
			}
			assert.Len(t, h.list(t), tt.wantLeft)
		})
	}
}

func TestSuggest(t *testing.T) {
	due := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("без парсера", func(t *testing.T) {
		h := newHarness(t)
		_, _, err := h.run(t, "", "suggest", "купить", "хлеб")
		assert.Error(t, err)
	})

	t.Run("только показ", func(t *testing.T) {
		h := newHarness(t)
		h.parser = stubParser{suggestion: &assist.Suggestion{Title: "Купить хлеб", Priority: task.PriorityLow, DueDate: due}}

		out, _, err := h.run(t, "", "suggest", "купить", "хлеб")
		require.NoError(t, err)
		assert.Contains(t, out, "Купить хлеб")
		assert.Contains(t, out, "2030-03-01")
		assert.Empty(t, h.list(t))
	})

	t.Run("с созданием", func(t *testing.T) {
		h := newHarness(t)
		h.parser = stubParser{suggestion: &assist.Suggestion{Title: "Купить хлеб", Priority: task.PriorityLow, DueDate: due}}

		_, _, err := h.run(t, "", "suggest", "--create", "купить хлеб")
		require.NoError(t, err)

		tasks := h.list(t)
		require.Len(t, tasks, 1)
		assert.Equal(t, "Купить хлеб", tasks[0].Title)
		assert.Equal(t, task.PriorityLow, tasks[0].Priority)
		assert.True(t, due.Equal(tasks[0].DueDate))
	})
}

func TestSummary(t *testing.T) {
	h := newHarness(t)
	h.add(t, "Будущая")
	_, _, err := h.run(t, "", "add", "Прошедшая", "--due", "2000-01-01")
	require.NoError(t, err)

	out, _, err := h.run(t, "", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Всего: 2")
	assert.Contains(t, out, "В работе: 2")
	assert.Contains(t, out, "Просрочено: 1")
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run(t, "", "migrate")
	assert.Error(t, err)
}
