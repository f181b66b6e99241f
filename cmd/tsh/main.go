package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"tsh/internal/builtins"
	"tsh/internal/config"
	"tsh/internal/executor"
	"tsh/internal/jobs"
	"tsh/internal/log"
	"tsh/internal/repl"
	"tsh/internal/signals"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var errUsage = errors.New("usage error")

var (
	flagVerbose    bool
	flagNoPrompt   bool
	flagConfigPath string

	helpShown bool
)

func main() {
	rootCmd := newRootCmd()
	err := rootCmd.Execute()
	switch {
	case errors.Is(err, errUsage):
		usage(os.Stdout)
		os.Exit(1)
	case err != nil:
		fmt.Fprintf(os.Stdout, "tsh: %v\n", err)
		os.Exit(1)
	case helpShown:
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tsh [-hvp]",
		Short:         "A tiny shell with job control",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: unexpected arguments %q", errUsage, args)
			}
			return nil
		},
		RunE: run,
	}

	cmd.Flags().BoolP("help", "h", false, "print this message")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "print additional diagnostic information")
	cmd.Flags().BoolVarP(&flagNoPrompt, "no-prompt", "p", false, "do not emit a command prompt")
	cmd.Flags().StringVar(&flagConfigPath, "config", "", "config file to load - default is tsh.yaml in the current directory or the user config directory")

	cmd.SetHelpFunc(func(c *cobra.Command, _ []string) {
		usage(c.OutOrStdout())
		helpShown = true
	})
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})
	return cmd
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tsh [-hvp]")
	fmt.Fprintln(w, "   -h   print this message")
	fmt.Fprintln(w, "   -v   print additional diagnostic information")
	fmt.Fprintln(w, "   -p   do not emit a command prompt")
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFile(config.Path(flagConfigPath))
	if err != nil {
		return err
	}
	if flagVerbose {
		cfg.Verbose = true
	}
	if flagNoPrompt {
		cfg.NoPrompt = true
	}

	logger, err := log.New(os.Stderr, cfg.Level(), cfg.Log.Format)
	if err != nil {
		return err
	}
	logger = logger.With(slog.String("session", uuid.NewString()))
	slog.SetDefault(logger)
	slog.Debug("tsh starting", "pid", os.Getpid(), "config", cfg)

	reg := jobs.NewRegistry(log.WithComponent(logger, "jobs"))
	handler := signals.New(reg, os.Stdout, signals.WithLogger(log.WithComponent(logger, "signals")))
	// child stderr goes to stdout as well
	ex := executor.New(reg, os.Stdout,
		executor.WithStdio(os.Stdin, os.Stdout, os.Stdout),
		executor.WithLogger(log.WithComponent(logger, "executor")),
	)
	sh := repl.New(builtins.New(reg, os.Stdout), ex, os.Stdout, cfg.Prompt, !cfg.NoPrompt)

	// subscribe before the first prompt so no signal hits its default action
	sigs := signals.Subscribe()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return handler.Run(ctx, sigs)
	})
	g.Go(func() error {
		defer cancel()
		return sh.Run(ctx, os.Stdin)
	})
	return g.Wait()
}
