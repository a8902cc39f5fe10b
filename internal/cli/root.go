// Package cli implements the storytree command-line interface. It stands in
// for the presentation layer: every mutation goes through the tree service.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storytree/internal/config"
	"github.com/mesh-intelligence/storytree/internal/generate"
	"github.com/mesh-intelligence/storytree/internal/local"
	"github.com/mesh-intelligence/storytree/internal/paths"
	"github.com/mesh-intelligence/storytree/internal/repository"
	"github.com/mesh-intelligence/storytree/internal/tree"
	"github.com/mesh-intelligence/storytree/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values.
type rootFlags struct {
	configDir string
	dataDir   string
	treeID    string
	jsonMode  bool
	verbose   bool
}

// app is the state shared by one command invocation.
type app struct {
	flags rootFlags

	configDir string
	dataDir   string
	cfg       config.File
	logger    *slog.Logger

	factory *repository.Factory
	store   types.Store
	svc     *tree.Service

	// local always holds the session pointer and the cleanup target, even
	// when trees live remotely. ownLocal is set when it was opened apart
	// from the factory store.
	local    *local.Store
	ownLocal bool
}

// NewRootCmd creates the top-level "storytree" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root, _ := newRoot()
	return root
}

// newRoot builds the command tree and returns the shared app state so the
// caller can release storage when a command fails before its post-run hook.
func newRoot() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "storytree",
		Short: "Grow branching question and answer story trees",
		Long: "storytree keeps branching trees of questions and answers, extends them\n" +
			"with generated continuations, and stores them locally or in a remote\n" +
			"document store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipSetup(cmd) {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	pf.StringVar(&a.flags.treeID, "tree", "", "tree ID (default: the current tree)")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newTreeCmd(a),
		newNodeCmd(a),
		newPathCmd(a),
		newContextCmd(a),
		newThreadCmd(a),
		newDedupCmd(a),
		newValidateCmd(a),
		newExtendCmd(a),
		newCleanupCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newImportTextCmd(a),
	)
	return root, a
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root, a := newRoot()
	err := root.Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// exitCode separates caller mistakes from system failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrInvalidConfig),
		errors.Is(err, errNoTree):
		return exitUserError
	default:
		return exitSysError
	}
}

// skipSetup reports commands that must not open storage.
func skipSetup(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "init", "help", "completion":
			return true
		}
	}
	return false
}

// resolveDirs resolves the directories and loads configuration.
func (a *app) resolveDirs() error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	a.configDir, a.dataDir, a.cfg = configDir, dataDir, cfg
	return nil
}

func (a *app) newLogger(w io.Writer) *slog.Logger {
	level := a.cfg.SlogLevel()
	if a.flags.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// setup loads configuration and opens the store, the local session store,
// and the tree service.
func (a *app) setup(cmd *cobra.Command) error {
	if err := a.resolveDirs(); err != nil {
		return err
	}
	a.logger = a.newLogger(cmd.ErrOrStderr())
	slog.SetDefault(a.logger)

	ctx := cmd.Context()
	storeCfg := a.cfg.Store(a.dataDir)

	a.factory = repository.New(a.logger)
	store, err := a.factory.Store(ctx, storeCfg)
	if err != nil {
		return err
	}
	a.store = store

	if ls, ok := store.(*local.Store); ok {
		a.local = ls
	} else {
		localCfg := storeCfg
		localCfg.Backend = types.BackendLocal
		ls, err := local.Open(localCfg, a.logger)
		if err != nil {
			return fmt.Errorf("open local session store: %w", err)
		}
		a.local, a.ownLocal = ls, true
	}

	var gen generate.Generator
	if a.cfg.Generator.APIKey != "" {
		g, err := generate.NewOpenAI(a.cfg.Generator.OpenAIConfig, a.logger)
		if err != nil {
			return err
		}
		gen = g
	}
	a.svc = tree.New(store, gen, a.logger)

	a.logger.Debug("storage ready", "backend", store.Kind(), "data_dir", a.dataDir)
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.ownLocal && a.local != nil {
		errs = append(errs, a.local.Close())
	}
	if a.factory != nil {
		errs = append(errs, a.factory.Close())
	}
	a.local, a.ownLocal, a.factory, a.store, a.svc = nil, false, nil, nil, nil
	return errors.Join(errs...)
}

var errNoTree = errors.New("no tree selected; pass --tree or run 'storytree tree use <id>'")

// currentTree returns the tree named by --tree, or the session's current
// tree.
func (a *app) currentTree(ctx context.Context) (string, error) {
	if a.flags.treeID != "" {
		return a.flags.treeID, nil
	}
	id, ok, err := a.local.CurrentTree(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errNoTree
	}
	return id, nil
}

// emit writes v as indented JSON in JSON mode, otherwise calls text.
func (a *app) emit(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if a.flags.jsonMode {
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fmt.Fprintln(w, string(out))
		return nil
	}
	text(w)
	return nil
}
