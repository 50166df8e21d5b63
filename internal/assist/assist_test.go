package assist_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskBoard/internal/assist"
	"taskBoard/internal/models/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parserFunc func(ctx context.Context, text string) (*assist.Suggestion, error)

func (f parserFunc) Parse(ctx context.Context, text string) (*assist.Suggestion, error) {
	return f(ctx, text)
}

func TestForm_Fill(t *testing.T) {
	form := assist.Form{Title: "старое", Priority: "low", DueDate: "2025-01-01"}

	t.Run("failed suggestion leaves the form untouched", func(t *testing.T) {
		s, ok := assist.Suggest(context.Background(), parserFunc(func(context.Context, string) (*assist.Suggestion, error) {
			return nil, errors.New("quota exceeded")
		}), "купить хлеб")

		assert.False(t, ok)
		assert.False(t, form.Fill(s))
		assert.Equal(t, "старое", form.Title)
	})

	t.Run("suggestion fills every field", func(t *testing.T) {
		filled := form
		ok := filled.Fill(&assist.Suggestion{
			Title:       "Купить хлеб",
			Description: "бородинский",
			Priority:    task.PriorityMedium,
			DueDate:     time.Date(2025, 3, 4, 15, 30, 0, 0, time.UTC),
		})

		require.True(t, ok)
		assert.Equal(t, assist.Form{Title: "Купить хлеб", Description: "бородинский", Priority: "medium", DueDate: "2025-03-04"}, filled)

		fields, err := filled.Fields()
		require.NoError(t, err)
		assert.Equal(t, task.PriorityMedium, fields.Priority)
		assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), fields.DueDate)
	})
}

func TestForm_Fields(t *testing.T) {
	tests := []struct {
		name    string
		form    assist.Form
		wantErr bool
	}{
		{name: "priority defaults to medium", form: assist.Form{Title: "x", DueDate: "2025-03-04"}},
		{name: "unknown priority", form: assist.Form{Title: "x", Priority: "asap", DueDate: "2025-03-04"}, wantErr: true},
		{name: "missing due date", form: assist.Form{Title: "x", Priority: "low"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.form.Fields()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSuggest_NilParser(t *testing.T) {
	s, ok := assist.Suggest(context.Background(), nil, "text")
	assert.False(t, ok)
	assert.Nil(t, s)
}
