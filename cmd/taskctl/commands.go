package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"taskBoard/internal/app"
	"taskBoard/internal/assist"
	"taskBoard/internal/board"
	"taskBoard/internal/config"
	"taskBoard/internal/models/task"
	"taskBoard/internal/repository/task/postgres"
	"taskBoard/internal/view"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func listCmd(env *cliEnv) *cobra.Command {
	var search, filter, sortKey, output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Показать задачи",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := view.ParseFilter(filter)
			if err != nil {
				return err
			}
			s, err := view.ParseSort(sortKey)
			if err != nil {
				return err
			}

			return env.withBoard(cmd.Context(), func(core *app.Core) error {
				tasks := core.Board.View(view.Query{Search: search, Filter: f, Sort: s})
				return render(cmd.OutOrStdout(), output, tasks)
			})
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "поиск по названию и описанию")
	cmd.Flags().StringVarP(&filter, "filter", "f", "all", "all, pending или completed")
	cmd.Flags().StringVar(&sortKey, "sort", "dueDate", "dueDate или priority")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "table, json или yaml")

	return cmd
}

func addCmd(env *cliEnv) *cobra.Command {
	var form assist.Form

	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Создать задачу",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form.Title = args[0]
			fields, err := form.Fields()
			if err != nil {
				return err
			}

			return env.withBoard(cmd.Context(), func(core *app.Core) error {
				return printOutcome(cmd.OutOrStdout(), core.Board.Create(cmd.Context(), fields))
			})
		},
	}

	cmd.Flags().StringVarP(&form.Description, "description", "d", "", "описание")
	cmd.Flags().StringVarP(&form.Priority, "priority", "p", "medium", "low, medium или high")
	cmd.Flags().StringVar(&form.DueDate, "due", "", "срок: 2006-01-02, 2006-01-02T15:04 или RFC 3339")
	_ = cmd.MarkFlagRequired("due")

	return cmd
}

func editCmd(env *cliEnv) *cobra.Command {
	var (
		title, description, priority, due string
		completed                         bool
		version                           int
	)

	cmd := &cobra.Command{
		Use:   "edit [id]",
		Short: "Изменить задачу; меняются только переданные поля",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var options []task.TaskOption

			if flags.Changed("version") {
				options = append(options, task.WithVersion(version))
			}
			if flags.Changed("title") {
				options = append(options, task.WithTitle(title))
			}
			if flags.Changed("description") {
				options = append(options, task.WithDescription(description))
			}
			if flags.Changed("priority") {
				p, err := task.ParsePriority(priority)
				if err != nil {
					return err
				}
				options = append(options, task.WithPriority(p))
			}
			if flags.Changed("due") {
				d, err := task.ParseDueDate(due)
				if err != nil {
					return err
				}
				options = append(options, task.WithDueDate(d))
			}
			if flags.Changed("completed") {
				options = append(options, task.WithCompleted(completed))
			}

			return env.withBoard(cmd.Context(), func(core *app.Core) error {
				return printOutcome(cmd.OutOrStdout(), core.Board.Edit(cmd.Context(), args[0], options...))
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "название")
	cmd.Flags().StringVarP(&description, "description", "d", "", "описание")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low, medium или high")
	cmd.Flags().StringVar(&due, "due", "", "срок")
	cmd.Flags().BoolVar(&completed, "completed", false, "выполнена")
	cmd.Flags().IntVar(&version, "version", 0, "ожидаемая версия задачи")

	return cmd
}

func toggleCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [id]",
		Short: "Переключить статус выполнения",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withBoard(cmd.Context(), func(core *app.Core) error {
				return printOutcome(cmd.OutOrStdout(), core.Board.Toggle(cmd.Context(), args[0]))
			})
		},
	}
}

func rmCmd(env *cliEnv) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Удалить задачу",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var gate board.Confirmer = board.Always
			if !yes {
				gate = prompt(cmd.InOrStdin(), cmd.OutOrStdout())
			}

			return env.withBoard(cmd.Context(), func(core *app.Core) error {
				outcome := core.Board.Delete(cmd.Context(), args[0], gate)
				if errors.Is(outcome.Err, board.ErrDeclined) {
					fmt.Fprintln(cmd.OutOrStdout(), "Отменено")
					return nil
				}
				return printOutcome(cmd.OutOrStdout(), outcome)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "не спрашивать подтверждение")

	return cmd
}

// prompt спрашивает подтверждение; согласие только y или yes
func prompt(in io.Reader, out io.Writer) board.Confirmer {
	reader := bufio.NewReader(in)
	return board.ConfirmFunc(func(_ context.Context, t task.Task) (bool, error) {
		fmt.Fprintf(out, "Удалить задачу %q? [y/N]: ", t.Title)
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	})
}

func suggestCmd(env *cliEnv) *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "suggest [text...]",
		Short: "Заполнить задачу по описанию на естественном языке",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")

			return env.withBoard(cmd.Context(), func(core *app.Core) error {
				suggestion, ok := assist.Suggest(cmd.Context(), core.Parser, text)
				if !ok {
					return errors.New("подсказку получить не удалось")
				}

				var form assist.Form
				form.Fill(suggestion)
				fmt.Fprintf(cmd.OutOrStdout(), "Название:  %s\nОписание:  %s\nПриоритет: %s\nСрок:      %s\n",
					form.Title, form.Description, form.Priority, form.DueDate)

				if !create {
					return nil
				}
				fields, err := form.Fields()
				if err != nil {
					return err
				}
				return printOutcome(cmd.OutOrStdout(), core.Board.Create(cmd.Context(), fields))
			})
		},
	}

	cmd.Flags().BoolVar(&create, "create", false, "сразу создать задачу")

	return cmd
}

func summaryCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Счётчики: всего, в работе, просрочено",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withBoard(cmd.Context(), func(core *app.Core) error {
				s := core.Board.Summary()
				fmt.Fprintf(cmd.OutOrStdout(), "Всего: %d  В работе: %d  Просрочено: %d\n", s.Total, s.Pending, s.Overdue)
				return nil
			})
		},
	}
}

func migrateCmd(env *cliEnv) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFs(env.fs, env.configPath)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("database.url не задан")
			}

			if down {
				if err := postgres.Down(cfg.Database.URL); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Миграции откачены")
				return nil
			}

			if err := postgres.Migrate(cfg.Database.URL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Миграции применены")
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "откатить все миграции")

	return cmd
}

func printOutcome(w io.Writer, o board.Outcome) error {
	if !o.Ok() {
		return o.Err
	}
	switch o.Op {
	case board.OpDelete:
		fmt.Fprintf(w, "Удалено: %s\n", o.TaskID)
	default:
		fmt.Fprintf(w, "%s v%d  %s\n", o.Task.ID, o.Task.Version, o.Task.Title)
	}
	return nil
}

func render(w io.Writer, format string, tasks []task.Task) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(toYAML(tasks))
	case "table", "":
		return renderTable(w, tasks)
	}
	return fmt.Errorf("неизвестный формат вывода %q", format)
}

type yamlTask struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Priority    string `yaml:"priority"`
	DueDate     string `yaml:"dueDate"`
	Completed   bool   `yaml:"completed"`
	Version     int    `yaml:"version"`
}

func toYAML(tasks []task.Task) []yamlTask {
	out := make([]yamlTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, yamlTask{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Priority:    string(t.Priority),
			DueDate:     t.DueDate.Format(time.RFC3339),
			Completed:   t.Completed,
			Version:     t.Version,
		})
	}
	return out
}

func renderTable(w io.Writer, tasks []task.Task) error {
	now := time.Now()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tСТАТУС\tПРИОРИТЕТ\tСРОК\tНАЗВАНИЕ")
	for _, t := range tasks {
		status := "в работе"
		switch {
		case t.Completed:
			status = "готово"
		case t.IsOverdue(now):
			status = "просрочено"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, status, t.Priority, t.DueDate.Format("2006-01-02 15:04"), t.Title)
	}
	return tw.Flush()
}
