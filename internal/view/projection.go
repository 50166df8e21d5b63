package view

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"taskBoard/internal/models/task"

	"golang.org/x/text/cases"
)

type Filter string

const (
	FilterAll       Filter = "all"
	FilterPending   Filter = "pending"
	FilterCompleted Filter = "completed"
)

type SortKey string

const (
	SortByPriority SortKey = "priority"
	SortByDueDate  SortKey = "dueDate"
)

// Query - параметры отображения списка; нулевое значение показывает все задачи по сроку
type Query struct {
	Search string
	Filter Filter
	Sort   SortKey
}

func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterPending:
		return FilterPending, nil
	case FilterCompleted:
		return FilterCompleted, nil
	}
	return "", fmt.Errorf("неизвестный фильтр %q", s)
}

func ParseSort(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", strings.ToLower(string(SortByDueDate)), "due", "due_date":
		return SortByDueDate, nil
	case string(SortByPriority):
		return SortByPriority, nil
	}
	return "", fmt.Errorf("неизвестная сортировка %q", s)
}

// Project строит отображаемый список: поиск, затем фильтр, затем сортировка.
// Входной срез не изменяется.
func Project(tasks []task.Task, q Query) []task.Task {
	out := make([]task.Task, 0, len(tasks))

	// пробелы отсекаются только при проверке на пустоту, искомая строка берётся как есть
	fold := cases.Fold()
	var needle string
	if strings.TrimSpace(q.Search) != "" {
		needle = fold.String(q.Search)
	}

	for _, t := range tasks {
		if needle != "" && !matches(fold, t, needle) {
			continue
		}
		if !keep(q.Filter, t) {
			continue
		}
		out = append(out, t)
	}

	switch q.Sort {
	case SortByPriority:
		slices.SortStableFunc(out, func(a, b task.Task) int {
			return b.Priority.Rank() - a.Priority.Rank()
		})
	default:
		slices.SortStableFunc(out, func(a, b task.Task) int {
			return a.DueDate.Compare(b.DueDate)
		})
	}

	return out
}

func matches(fold cases.Caser, t task.Task, needle string) bool {
	return strings.Contains(fold.String(t.Title), needle) ||
		strings.Contains(fold.String(t.Description), needle)
}

func keep(f Filter, t task.Task) bool {
	switch f {
	case FilterPending:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

type Summary struct {
	Total   int `json:"total" yaml:"total"`
	Pending int `json:"pending" yaml:"pending"`
	Overdue int `json:"overdue" yaml:"overdue"`
}

// Summarize считает счётчики заголовка по полному списку, без учёта фильтров
func Summarize(tasks []task.Task, now time.Time) Summary {
	s := Summary{Total: len(tasks)}
	for _, t := range tasks {
		if !t.Completed {
			s.Pending++
		}
		if t.IsOverdue(now) {
			s.Overdue++
		}
	}
	return s
}
