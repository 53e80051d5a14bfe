// kfile run [path]
package cmd

import (
	"github.com/qobs-build/kfile/internal/msg"
	"github.com/spf13/cobra"
)

func doRun(cmd *cobra.Command, args []string) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
		args = args[1:] // other arguments will be passed to program
	}
	snap := loadSnapshot(dir)
	if err := newResolver(dir).Run(cmd.Context(), snap, args); err != nil {
		msg.Fail(err)
	}
}

var runCmd = &cobra.Command{
	Use:   "run [project path] [args...]",
	Short: "Build and run the project",
	Long:  `Build and run the project from its debug directory. If no project path is given, uses "."`,
	Args:  cobra.ArbitraryArgs,
	Run:   doRun,
}

func init() {
	// kfile run subcommand
	rootCmd.AddCommand(runCmd)
	addProjectFlags(runCmd)
	addBuildFlags(runCmd)
}
