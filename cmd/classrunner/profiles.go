package main

import (
	"fmt"

	"github.com/reglet-dev/classrunner/internal/application/dto"
	"github.com/reglet-dev/classrunner/internal/domain/values"
	"github.com/spf13/cobra"
)

func newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect and import classloader profiles",
	}

	cmd.AddCommand(newProfilesListCmd())
	cmd.AddCommand(newProfilesPackagesCmd())
	cmd.AddCommand(newProfilesImportCmd())

	return cmd
}

func newProfilesListCmd() *cobra.Command {
	opts := DefaultCommonOptions()
	var baseURL string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every profile with its collected packages",
		Args:  cobra.NoArgs,
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, _ []string) error {
			if err := opts.ValidateFlags(); err != nil {
				return err
			}
			ctx, cancel := opts.ApplyToContext(cc.Context)
			defer cancel()

			profiles, err := cc.Container.ProfileQueries().List(ctx, baseURL)
			if err != nil {
				return err
			}

			formatter, err := opts.Formatter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return formatter.FormatProfiles(profiles)
		}),
	}

	opts.RegisterFlags(cmd)
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Repository base URL (default from profiles.base_url)")
	return cmd
}

func newProfilesPackagesCmd() *cobra.Command {
	opts := DefaultCommonOptions()
	var baseURL string

	cmd := &cobra.Command{
		Use:   "packages <profile>",
		Short: "Show the packages one profile resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			if err := opts.ValidateFlags(); err != nil {
				return err
			}
			ctx, cancel := opts.ApplyToContext(cc.Context)
			defer cancel()

			set, err := cc.Container.ProfileQueries().Packages(ctx, dto.PackagesRequest{
				Profile: args[0],
				BaseURL: baseURL,
			})
			if err != nil {
				return err
			}

			formatter, err := opts.Formatter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return formatter.FormatProfiles([]dto.ProfileSummary{{
				Ref:      values.ParseProfileRef(args[0]),
				Packages: set,
			}})
		}),
	}

	opts.RegisterFlags(cmd)
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Repository base URL (default from profiles.base_url)")
	return cmd
}

func newProfilesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Copy YAML profile documents into the configured SQL store",
		Args:  cobra.ExactArgs(1),
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			n, err := cc.Container.ImportProfiles(cc.Context, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d profile(s) from %s\n", n, args[0])
			return nil
		}),
	}
}
