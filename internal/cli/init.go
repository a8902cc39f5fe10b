package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/storytree/internal/config"
	"github.com/mesh-intelligence/storytree/internal/local"
	"github.com/mesh-intelligence/storytree/internal/paths"
)

func newInitCmd(a *app) *cobra.Command {
	var engine string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize storytree configuration and local storage",
		Long: "Create the configuration directory with a default config.yaml, then\n" +
			"create the local data directory and storage engine. Running init again\n" +
			"keeps an existing config.yaml.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ResolveConfigDir(a.flags.configDir)
			if err != nil {
				return fmt.Errorf("resolve config dir: %w", err)
			}

			defaults := config.Default()
			if engine != "" {
				defaults.Engine = engine
			}
			if err := defaults.Validate(); err != nil {
				return err
			}
			written, err := config.WriteIfMissing(configDir, defaults)
			if err != nil {
				return err
			}

			if err := a.resolveDirs(); err != nil {
				return err
			}
			a.logger = a.newLogger(cmd.ErrOrStderr())

			// Open and close the local engine to create its files.
			store, err := local.Open(a.cfg.Store(a.dataDir), a.logger)
			if err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}
			if err := store.Close(); err != nil {
				return fmt.Errorf("finalize storage: %w", err)
			}

			out := cmd.OutOrStdout()
			if written {
				fmt.Fprintf(out, "Wrote %s\n", paths.ConfigFile(configDir))
			}
			fmt.Fprintf(out, "Storytree initialized (engine %s, data %s)\n", a.cfg.Store(a.dataDir).LocalEngine(), a.dataDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "", "local engine for a new config: sqlite or badger")
	return cmd
}
