package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ralt/pkgbuilder/internal/catalog"
	"github.com/ralt/pkgbuilder/internal/models"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	var flags configFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the packages a build would produce",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			packages, err := catalog.Build(cfg)
			if err != nil {
				return err
			}
			return printCatalog(cmd.OutOrStdout(), packages)
		},
	}
	flags.register(cmd)
	return cmd
}

func printCatalog(out io.Writer, packages []*models.Package) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPLATFORM\tARCH\tLICENSE\tKIND\tBUILD SERVER\tPACKAGE DIR")
	for _, pkg := range packages {
		arch := pkg.Arch.String()
		if arch == "" {
			arch = "-"
		}
		server := pkg.BuildServer
		if server == "" {
			server = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			pkg.Name(), pkg.Platform, arch, pkg.License, pkg.Kind(), server, pkg.PackageDir)
	}
	return tw.Flush()
}
