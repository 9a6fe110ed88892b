package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riftlens/riftlens/internal/server/handlers"
)

var (
	extended    bool
	versionJSON bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for full details including Crucible and Go versions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := handlers.Build()
		w := cmd.OutOrStdout()

		if versionJSON {
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, string(data))
			return err
		}

		fmt.Fprintf(w, "%s %s\n", info.App.Name, info.App.Version)
		if extended {
			fmt.Fprintf(w, "Commit: %s\n", info.App.Commit)
			fmt.Fprintf(w, "Built: %s\n", info.App.BuildDate)
			fmt.Fprintf(w, "Go: %s (%s)\n", info.App.GoVersion, info.Runtime.Platform)
			fmt.Fprintf(w, "\n")
			fmt.Fprintf(w, "Gofulmen: %s\n", info.Dependencies.Gofulmen)
			fmt.Fprintf(w, "Crucible: %s\n", info.Dependencies.Crucible)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print the /version document")
}
