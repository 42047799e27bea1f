// Package cli builds the vibranium command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bogdansurdu/vibranium-waccanda/internal/client"
	"github.com/bogdansurdu/vibranium-waccanda/internal/project"
)

// Installer is the part of the server client the commands need.
// *client.Client satisfies it.
type Installer interface {
	Install(ctx context.Context, name, version string) ([]byte, error)
	Publish(ctx context.Context, path string) error
}

// Config configures the command tree.
type Config struct {
	// API is the server install API, e.g. client.DefaultAPI.
	API string

	// Dir is the project directory. Empty means the working directory.
	Dir string

	// Client overrides the client built from API. Used by tests.
	Client Installer
}

// NewCommand returns the vibranium root command.
//
// Commands provided:
//   - vibranium init
//   - vibranium install [<package>[==<version>]...] [--save]
//   - vibranium remove <package>... [--save]
//   - vibranium publish <file.wacc>
func NewCommand(cfg Config) *cobra.Command {
	var api Installer
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	proj := project.Open(dir)

	cmd := &cobra.Command{
		Use:   "vibranium",
		Short: "The Vibranium package manager for the WACC language",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "init" {
				return nil
			}
			if cfg.Client != nil {
				api = cfg.Client
				return nil
			}
			c, err := client.New(cfg.API)
			if err != nil {
				return err
			}
			api = c
			return nil
		},
		SilenceUsage: true,
	}

	cmd.AddCommand(initCmd(proj))
	cmd.AddCommand(installCmd(&api, proj))
	cmd.AddCommand(removeCmd(proj))
	cmd.AddCommand(publishCmd(&api))

	return cmd
}

func initCmd(proj *project.Project) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Set up a Vibranium project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reinit, err := proj.Init()
			if err != nil {
				return err
			}
			if reinit {
				fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: It seems that the package directory has already been initialised!")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Initialisation successful!")
			return nil
		},
	}
}

func installCmd(api *Installer, proj *project.Project) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "install [<package>[==<version>]...]",
		Short: "Install packages",
		Long:  "Install the named packages, or every dependency in vibranium.toml when none are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			refs := args
			if len(refs) == 0 {
				m, err := proj.LoadManifest()
				if err != nil {
					return err
				}
				refs = manifestRefs(m)
				if len(refs) == 0 {
					fmt.Fprintln(out, "No dependencies to install.")
					return nil
				}
			}

			for _, ref := range refs {
				name, version, err := project.ParseRef(ref)
				if err != nil {
					return err
				}

				installed, ok, err := proj.Installed(name)
				if err != nil {
					return err
				}
				if ok && installed.Version == version {
					fmt.Fprintf(out, "Package %s==%s already present!\n", name, version)
					continue
				}

				fmt.Fprintf(out, "Installing %s==%s\n", name, version)
				data, err := (*api).Install(ctx, name, version)
				if err != nil {
					return installError(name, version, err)
				}

				rel, err := proj.WriteArchive(name, data)
				if err != nil {
					return err
				}
				if err := proj.Record(name, version, rel); err != nil {
					return err
				}
				if save {
					if err := proj.SaveDependency(name, version); err != nil {
						return err
					}
				}
				fmt.Fprintln(out, "INSTALL SUCCESS!")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&save, "save", "s", false, "Save the package to the vibranium.toml dependencies")
	return cmd
}

func installError(name, version string, err error) error {
	switch {
	case errors.Is(err, client.ErrPackageMissing):
		return fmt.Errorf("package %q has gone missing on the server: %w", name, err)
	case errors.Is(err, client.ErrPackageNotFound):
		return fmt.Errorf("package \"%s==%s\" couldn't be found: %w", name, version, err)
	}
	return err
}

// manifestRefs turns the manifest dependencies into name==version refs in
// a stable order.
func manifestRefs(m *project.Manifest) []string {
	refs := make([]string, 0, len(m.Dependencies))
	for name, version := range m.Dependencies {
		refs = append(refs, name+"=="+version)
	}
	sort.Strings(refs)
	return refs
}

func removeCmd(proj *project.Project) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "remove <package>...",
		Short: "Remove installed packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range args {
				if err := project.ValidateName(name); err != nil {
					return err
				}
				removed, err := proj.Forget(name)
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintf(out, "Removed %s\n", name)
				} else {
					fmt.Fprintf(out, "Package %s is not installed\n", name)
				}
				if save {
					if err := proj.DropDependency(name); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&save, "save", "s", false, "Also remove the package from the vibranium.toml dependencies")
	return cmd
}

func publishCmd(api *Installer) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <file.wacc>",
		Short: "Upload a package archive to the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := (*api).Publish(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s\n", args[0])
			return nil
		},
	}
}
