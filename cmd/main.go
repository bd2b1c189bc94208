package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ngld/assetsys/pkg/buildsys/cmd"
	"github.com/ngld/assetsys/pkg/posix"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "assetsys",
		Short: "Static asset build tool",
		Long: `This command bundles the task runner used to build a site's scripts, stylesheets and fonts
together with a few cross-platform file helpers.`,
	}

	rootCmd.AddCommand(cmd.NewTaskCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(posix.NewCommands()...)
	return rootCmd
}

func Execute() {
	cobra.CheckErr(newRootCmd().Execute())
}
