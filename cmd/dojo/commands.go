package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/dojo-manager/internal/config"
	"github.com/kingrea/dojo-manager/internal/dojo"
	"github.com/kingrea/dojo-manager/internal/logbook"
	"github.com/kingrea/dojo-manager/internal/logging"
	"github.com/kingrea/dojo-manager/internal/manifest"
	"github.com/kingrea/dojo-manager/internal/tui"
	"github.com/kingrea/dojo-manager/internal/vcs"
	"github.com/kingrea/dojo-manager/internal/watch"
)

// errStepsFailed makes the process exit non-zero after the failed steps have
// already been printed.
var errStepsFailed = errors.New("one or more steps failed")

// session is everything a command needs, built once per invocation.
type session struct {
	root    string
	cfg     *config.Config
	logger  *logging.Logger
	journal *logbook.Logbook
	manager *dojo.Manager
}

func (s *session) open(cmd *cobra.Command) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	cfg, err := config.Load(wd)
	if err != nil {
		return err
	}
	if s.root != "" {
		root, err := filepath.Abs(s.root)
		if err != nil {
			return fmt.Errorf("resolve --root: %w", err)
		}
		cfg.Root = root
	}
	if err := cfg.EnsureStateDir(); err != nil {
		return err
	}
	logger, err := logging.New(cfg.StateDir, cfg.Level())
	if err != nil {
		return err
	}
	journal, err := logbook.New(cfg.JournalPath())
	if err != nil {
		logger.Close()
		return fmt.Errorf("open journal: %w", err)
	}

	log := logger.With().Str("root", cfg.Root).Logger()
	git := vcs.New(cfg.Root,
		vcs.WithBinary(cfg.GitBinary),
		vcs.WithConfig(cfg.GitConfig...),
		vcs.WithLogger(log),
	)
	s.cfg = cfg
	s.logger = logger
	s.journal = journal
	s.manager = dojo.New(cfg.Root, git,
		dojo.WithLogger(log),
		dojo.WithStore(manifest.NewStore(manifest.WithLogger(log))),
		dojo.WithRecorder(journal),
	)
	return nil
}

func (s *session) close() {
	if s.logger != nil {
		s.logger.Close()
		s.logger = nil
	}
}

func newRootCmd() *cobra.Command {
	return newSessionCmd(&session{})
}

func newSessionCmd(s *session) *cobra.Command {
	root := &cobra.Command{
		Use:           "dojo",
		Short:         "Manage the modules, challenges and submodules of a dojo repository",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.open(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(s)
		},
	}
	root.PersistentFlags().StringVar(&s.root, "root", "", "Dojo repository root (defaults to DOJO_ROOT or the working directory)")

	root.AddCommand(
		newInitCmd(s),
		newModuleCmd(s),
		newChallengeCmd(s),
		newSubmoduleCmd(s),
		newStatusCmd(s),
	)
	closeAfterRun(root, s)
	return root
}

// closeAfterRun wraps every RunE in the tree so the session is closed on
// error returns too; cobra skips post-run hooks when RunE fails.
func closeAfterRun(cmd *cobra.Command, s *session) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			defer s.close()
			return run(cmd, args)
		}
	}
	for _, child := range cmd.Commands() {
		closeAfterRun(child, s)
	}
}

func runMenu(s *session) error {
	opts := []tui.AppOption{
		tui.WithLogbook(s.journal),
		tui.WithLogger(s.logger.Logger),
	}
	if w, err := watch.New(s.cfg.Root, watch.WithLogger(s.logger.Logger)); err == nil {
		defer w.Close()
		opts = append(opts, tui.WithWatcher(w))
	} else {
		s.logger.Warn().Err(err).Msg("file watcher unavailable; the board refreshes after each action only")
	}
	app, err := tui.NewApp(s.manager, opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run menu: %w", err)
	}
	return nil
}

func newInitCmd(s *session) *cobra.Command {
	var req dojo.DojoRequest
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create dojo.yml in the repository root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.ID == "" {
				req.ID = dojo.Slugify(req.Name)
			}
			return printed(cmd.OutOrStdout())(s.manager.Initialize(req))
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Dojo name")
	cmd.Flags().StringVar(&req.ID, "id", "", "Dojo ID (defaults to the name, lower-cased with dashes)")
	cmd.Flags().StringVar(&req.Type, "type", "", "Dojo type: "+strings.Join(dojo.DojoTypes, ", ")+" or a custom value")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newModuleCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "module",
		Short: "Create or delete modules",
	}

	var create dojo.ModuleRequest
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a module directory and register it in dojo.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if create.ID == "" {
				create.ID = dojo.Slugify(create.Name)
			}
			d, err := s.manager.LoadDojo()
			if err != nil {
				return err
			}
			return printed(cmd.OutOrStdout())(s.manager.CreateModule(d, create))
		},
	}
	createCmd.Flags().StringVar(&create.Name, "name", "", "Module name")
	createCmd.Flags().StringVar(&create.ID, "id", "", "Module ID (defaults to the name, lower-cased with dashes)")
	_ = createCmd.MarkFlagRequired("name")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a module directory and its dojo.yml entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := s.manager.LoadDojo()
			if err != nil {
				return err
			}
			return printed(cmd.OutOrStdout())(s.manager.DeleteModule(d, args[0]))
		},
	}

	cmd.AddCommand(createCmd, deleteCmd)
	return cmd
}

func newChallengeCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Create or delete challenges",
	}

	var (
		create dojo.ChallengeRequest
		fields []string
	)
	createCmd := &cobra.Command{
		Use:   "create <module>",
		Short: "Create a challenge directory and register it in module.yml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if create.ID == "" {
				create.ID = dojo.Slugify(create.Name)
			}
			extra, err := parseFields(fields)
			if err != nil {
				return err
			}
			create.Extra = extra
			mod, err := s.manager.LoadModule(args[0])
			if err != nil {
				return err
			}
			return printed(cmd.OutOrStdout())(s.manager.CreateChallenge(mod, create))
		},
	}
	createCmd.Flags().StringVar(&create.Name, "name", "", "Challenge name")
	createCmd.Flags().StringVar(&create.ID, "id", "", "Challenge ID (defaults to the name, lower-cased with dashes)")
	createCmd.Flags().BoolVar(&create.AllowPrivileged, "allow-privileged", false, "Allow privileged mode in the challenge environment")
	createCmd.Flags().StringArrayVar(&fields, "field", nil, "Extra module.yml key for the challenge as key=value (repeat flag; value is YAML)")
	_ = createCmd.MarkFlagRequired("name")

	deleteCmd := &cobra.Command{
		Use:   "delete <module> <id>",
		Short: "Delete a challenge, its submodules and its module.yml entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := s.manager.LoadModule(args[0])
			if err != nil {
				return err
			}
			return printed(cmd.OutOrStdout())(s.manager.DeleteChallenge(mod, args[1]))
		},
	}

	cmd.AddCommand(createCmd, deleteCmd)
	return cmd
}

func newSubmoduleCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submodule",
		Short: "Add, delete or list the git submodules of a challenge",
	}

	var name string
	addCmd := &cobra.Command{
		Use:   "add <module> <challenge> <url>",
		Short: "Add a git submodule under a challenge",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printed(cmd.OutOrStdout())(s.manager.AddSubmodule(dojo.SubmoduleRequest{
				ModuleID:    args[0],
				ChallengeID: args[1],
				URL:         args[2],
				Name:        name,
			}))
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "Directory name (defaults to the last segment of the URL)")

	var all bool
	deleteCmd := &cobra.Command{
		Use:   "delete <module> <challenge> [name]",
		Short: "Remove one or all submodules of a challenge",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sel dojo.Selector
			switch {
			case all && len(args) == 3:
				return errors.New("pass either a submodule name or --all, not both")
			case all:
				sel = dojo.AllSubmodules()
			case len(args) == 3:
				sel = dojo.NamedSubmodule(args[2])
			default:
				return errors.New("a submodule name or --all is required")
			}
			return printed(cmd.OutOrStdout())(s.manager.DeleteSubmodules(args[0], args[1], sel))
		},
	}
	deleteCmd.Flags().BoolVar(&all, "all", false, "Remove every submodule registered under the challenge")

	listCmd := &cobra.Command{
		Use:   "list <module> <challenge>",
		Short: "List the submodules registered under a challenge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := s.manager.Submodules(args[0], args[1])
			if err != nil && !errors.Is(err, vcs.ErrRegistryUnavailable) {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}

	cmd.AddCommand(addCmd, deleteCmd, listCmd)
	return cmd
}

func newStatusCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the dojo, its modules, challenges and submodules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ov, err := s.manager.Overview()
			if err != nil {
				return err
			}
			printOverview(cmd.OutOrStdout(), ov)
			return nil
		},
	}
}

// printed returns a function that prints a report and turns failed steps
// into errStepsFailed.
func printed(w io.Writer) func(dojo.Report, error) error {
	return func(report dojo.Report, err error) error {
		printReport(w, report)
		if err != nil {
			return err
		}
		if report.Failed() {
			return errStepsFailed
		}
		return nil
	}
}

// parseFields turns key=value flags into extra challenge fields. Values are
// decoded as YAML so numbers and booleans keep their type.
func parseFields(pairs []string) ([]manifest.Field, error) {
	fields := make([]manifest.Field, 0, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--field %q must be key=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("--field %s: %w", key, err)
		}
		if value == nil && strings.TrimSpace(raw) == "" {
			value = ""
		}
		fields = append(fields, manifest.Field{Key: key, Value: value})
	}
	return fields, nil
}
