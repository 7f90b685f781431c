package cli

import (
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Create or update the database schema.

Opening the database applies the schema idempotently; migrate exists so
deployments can do it as an explicit step before serving traffic.

Example:
  docstore migrate --driver sqlite --db ./docstore.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rootOpts.openStore(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "opening database", err)
			}
			defer st.Close()

			return rootOpts.formatter(cmd).Success("", map[string]string{
				"driver": st.Dialect().Name(),
				"status": "schema applied",
			})
		},
	}
}
