package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/reglet-dev/classrunner/internal/application/dto"
	apperrors "github.com/reglet-dev/classrunner/internal/application/errors"
	"github.com/reglet-dev/classrunner/internal/application/ports"
	"github.com/reglet-dev/classrunner/internal/domain/units"
	"github.com/reglet-dev/classrunner/internal/infrastructure/selection"
	"github.com/reglet-dev/classrunner/internal/infrastructure/web"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runOptions holds the flags of the run command.
type runOptions struct {
	CommonOptions

	document       string
	profile        string
	identity       string
	parser         string
	baseURL        string
	defaultProfile string
	args           []string

	pick      bool
	admin     bool
	noOutput  bool
	ephemeral bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{CommonOptions: DefaultCommonOptions()}

	cmd := &cobra.Command{
		Use:   "run [unit]",
		Short: "Run a unit with the packages of the resolved profile",
		Long: `Run resolves the profile for the requester, collects its packages and runs
the named unit. Without a unit argument the unit is derived from --document.

The profile is chosen from --profile, then the persisted selection, then a
profile named after the requester, then the default profile. A --profile
value is remembered for later runs; --profile "" forgets it.`,
		Example: `  classrunner run classrunner.Echo --arg name=world
  classrunner run Tools.Report --profile Alice --parser markdown/1.0
  classrunner run --document Sandbox.Report --pick`,
		Args: cobra.MaximumNArgs(1),
		RunE: withContainer(func(cc *CommandContext, cmd *cobra.Command, args []string) error {
			return runUnit(cc, cmd, args, opts)
		}),
	}

	opts.RegisterFlags(cmd)
	cmd.Flags().StringVarP(&opts.document, "document", "d", "", "Document the unit runs for ([wiki:]Space.Name)")
	cmd.Flags().StringVarP(&opts.profile, "profile", "p", "", "Profile to use; empty clears the remembered selection")
	cmd.Flags().BoolVar(&opts.pick, "pick", false, "Choose the profile interactively")
	cmd.Flags().StringVar(&opts.identity, "identity", "", "Requester identity (env CLASSRUNNER_IDENTITY)")
	cmd.Flags().BoolVar(&opts.admin, "admin", false, "Run with elevated rights (detailed errors)")
	cmd.Flags().StringVar(&opts.parser, "parser", "", "Parser id for the output")
	cmd.Flags().BoolVar(&opts.noOutput, "no-output", false, "Run the unit but discard its output")
	cmd.Flags().StringArrayVarP(&opts.args, "arg", "a", nil, "Unit argument name=value (repeatable)")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "Repository base URL (elevated only)")
	cmd.Flags().StringVar(&opts.defaultProfile, "default-profile", "", "Caller default profile (elevated only)")
	cmd.Flags().BoolVar(&opts.ephemeral, "ephemeral", false, "Neither read nor remember the profile selection")
	cmd.MarkFlagsMutuallyExclusive("profile", "pick")

	_ = viper.BindPFlag("identity", cmd.Flags().Lookup("identity"))

	return cmd
}

func runUnit(cc *CommandContext, cmd *cobra.Command, args []string, opts *runOptions) error {
	if err := opts.ValidateFlags(); err != nil {
		return err
	}

	ctx, cancel := opts.ApplyToContext(cc.Context)
	defer cancel()

	cfg := cc.Container.SystemConfig()
	identity := viper.GetString("identity")
	elevated := opts.admin || cfg.Auth.IsAdmin(identity)

	unitArgs, err := parseUnitArgs(opts.args)
	if err != nil {
		return err
	}

	requestID := uuid.NewString()
	req := dto.RunRequest{
		Document:      web.ParseDocument(opts.document, cfg.Profiles.Wiki),
		Parser:        opts.parser,
		DiscardOutput: opts.noOutput,
		Requester:     dto.Requester{Identity: identity, Elevated: elevated},
		Args:          unitArgs,
		Context:       units.Context{"user": identity, "request_id": requestID},
		Metadata:      dto.RequestMetadata{RequestID: requestID},
	}
	if len(args) > 0 {
		req.Unit = args[0]
	}
	if req.Unit == "" && req.Document.Name == "" {
		return apperrors.NewValidationError("unit", "either a unit argument or --document is required")
	}

	if opts.baseURL != "" || opts.defaultProfile != "" {
		if !elevated {
			return apperrors.NewValidationError("base-url", "--base-url and --default-profile require elevated rights")
		}
		req.BaseURL = opts.baseURL
		req.DefaultProfile = opts.defaultProfile
	}

	store := selectionStore(opts.ephemeral)

	switch {
	case opts.pick:
		choice, err := pickProfile(ctx, cc, store, cfg.Profiles.Key)
		if err != nil {
			return err
		}
		req.Profile = &choice
	case cmd.Flags().Changed("profile"):
		v := opts.profile
		req.Profile = &v
	}

	resp, err := cc.Container.RunUnitUseCase().Execute(ctx, store, req)
	if fs, ok := store.(*selection.FileStore); ok && fs.Err() != nil {
		cc.Logger.Warn("profile selection not persisted", "file", fs.Path(), "error", fs.Err())
	}
	if err != nil {
		return err
	}

	formatter, err := opts.Formatter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := formatter.FormatRun(resp); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if resp.Masked {
		return fmt.Errorf("unit %s failed (invocation %s)", resp.Unit, resp.Metadata.InvocationID)
	}
	return nil
}

// selectionStore returns where the profile override is remembered.
func selectionStore(ephemeral bool) ports.SelectionStore {
	if ephemeral {
		return selection.NewMemoryStore()
	}
	return selection.NewFileStore(viper.GetString("selection-file"))
}

func pickProfile(ctx context.Context, cc *CommandContext, store ports.SelectionStore, key string) (string, error) {
	profiles, err := cc.Container.ProfileQueries().List(ctx, "")
	if err != nil {
		return "", err
	}
	current, _ := store.Get(key)
	return selection.NewTerminalPrompter().Pick(profiles, current)
}

// parseUnitArgs turns name=value pairs into unit arguments. A repeated
// name collects its values into a list.
func parseUnitArgs(pairs []string) (units.Args, error) {
	args := units.Args{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, apperrors.NewValidationError("arg", fmt.Sprintf("expected name=value, got %q", pair))
		}
		args.Add(name, value)
	}
	return args, nil
}
