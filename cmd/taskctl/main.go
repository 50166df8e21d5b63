package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"taskBoard/internal/app"
	"taskBoard/internal/board"
	"taskBoard/internal/config"
	"taskBoard/internal/logger"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var Version = "dev"

// cliEnv - ввод-вывод, файловая система и способ открыть ядро; в тестах подменяются
type cliEnv struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	fs     afero.Fs

	configPath string
	open       func(ctx context.Context, cfg *config.Config, notifier board.Notifier, fs afero.Fs) (*app.Core, error)
}

func main() {
	env := &cliEnv{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		fs:     afero.NewOsFs(),
		open:   app.NewCore,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(env).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(env *cliEnv) *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "taskctl",
		Short:         "taskctl - управление задачами из терминала",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				return logger.Init(true)
			}
			return nil
		},
	}

	rootCmd.SetIn(env.in)
	rootCmd.SetOut(env.out)
	rootCmd.SetErr(env.errOut)

	rootCmd.PersistentFlags().StringVarP(&env.configPath, "config", "c", "config.yml", "путь к config.yml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "подробный лог")

	rootCmd.AddCommand(listCmd(env))
	rootCmd.AddCommand(addCmd(env))
	rootCmd.AddCommand(editCmd(env))
	rootCmd.AddCommand(toggleCmd(env))
	rootCmd.AddCommand(rmCmd(env))
	rootCmd.AddCommand(suggestCmd(env))
	rootCmd.AddCommand(summaryCmd(env))
	rootCmd.AddCommand(migrateCmd(env))

	return rootCmd
}

// withBoard открывает ядро, загружает список и закрывает всё после fn
func (env *cliEnv) withBoard(ctx context.Context, fn func(core *app.Core) error) error {
	cfg, err := config.LoadFs(env.fs, env.configPath)
	if err != nil {
		return err
	}

	core, err := env.open(ctx, cfg, env.notifier(), env.fs)
	if err != nil {
		return err
	}
	defer core.Close()

	if err := core.Board.Load(ctx); err != nil {
		return err
	}
	return fn(core)
}

func (env *cliEnv) notifier() board.Notifier {
	return board.NotifierFunc(func(n board.Notice) {
		fmt.Fprintf(env.errOut, "%s: %v\n", n.Message, n.Err)
	})
}
