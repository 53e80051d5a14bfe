// kfile show [path]
package cmd

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/qobs-build/kfile/internal/msg"
	"github.com/qobs-build/kfile/internal/project"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var flagFormat EnumValue = NewEnumValue("toml", map[string]string{
	"toml": "TOML, in Kfile [project] layout (default)",
	"yaml": "YAML",
})

// renderManifest serializes a frozen project for display
func renderManifest(snap project.Snapshot, format string) (string, error) {
	m := snap.Manifest()
	switch format {
	case "toml":
		b, err := toml.Marshal(struct {
			Project project.Manifest `toml:"project"`
		}{m})
		return string(b), err
	case "yaml":
		b, err := yaml.Marshal(m)
		return string(b), err
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}

var showCmd = &cobra.Command{
	Use:   "show [project path]",
	Short: "Print the project as configured for the selected platform",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		snap := loadSnapshot(projectDir(args))
		out, err := renderManifest(snap, flagFormat.Value())
		if err != nil {
			msg.Fail(err)
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
	},
}

func init() {
	// kfile show subcommand
	rootCmd.AddCommand(showCmd)
	addProjectFlags(showCmd)
	showCmd.Flags().VarP(&flagFormat, "format", "f", "Output format, one of "+flagFormat.HelpString())
	showCmd.RegisterFlagCompletionFunc("format", flagFormat.CompletionFunc())
}
