package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillsite/pkg/presenter"
	"github.com/jingkaihe/skillsite/pkg/version"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(_ *cobra.Command, _ []string) error {
		info := version.Get()

		if versionJSON {
			out, err := info.JSON()
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		}

		presenter.Info(info.String())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output version information as JSON")
}
