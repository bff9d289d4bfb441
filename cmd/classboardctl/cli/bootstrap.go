package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/app"
	"github.com/classboard/classboard/internal/audit"
	"github.com/classboard/classboard/internal/auth"
	"github.com/classboard/classboard/internal/classes"
	"github.com/classboard/classboard/internal/platform/db"
	"github.com/classboard/classboard/internal/roles"
	"github.com/classboard/classboard/internal/users"
)

// systemActor performs provisioning before any administrator exists.
var systemActor = access.Identity{
	ID:          "system",
	DisplayName: "system",
	Roles: []access.RoleAssignment{
		{Role: access.RoleStudent},
		{Role: access.RoleAdmin, Scope: access.SchoolWide()},
	},
}

type identityCreator interface {
	Create(ctx context.Context, actor access.Identity, in users.CreateInput) (users.Identity, error)
}

type roleGranter interface {
	Add(ctx context.Context, actor access.Identity, identityID string, role access.Role) (roles.Change, error)
}

type tokenIssuer interface {
	Issue(ctx context.Context, actor access.Identity, identityID string, in auth.IssueInput) (auth.IssuedToken, error)
}

type bootstrapResult struct {
	IdentityID string `json:"identity_id"`
	TokenID    string `json:"token_id"`
	Token      string `json:"token"`
}

func bootstrapAdmin(ctx context.Context, creator identityCreator, granter roleGranter, issuer tokenIssuer, in users.CreateInput) (bootstrapResult, error) {
	ident, err := creator.Create(ctx, systemActor, in)
	if err != nil {
		return bootstrapResult{}, fmt.Errorf("create identity: %w", err)
	}
	if _, err := granter.Add(ctx, systemActor, ident.ID, access.RoleAdmin); err != nil {
		return bootstrapResult{}, fmt.Errorf("grant admin: %w", err)
	}
	token, err := issuer.Issue(ctx, systemActor, ident.ID, auth.IssueInput{Label: "bootstrap"})
	if err != nil {
		return bootstrapResult{}, fmt.Errorf("issue token: %w", err)
	}
	return bootstrapResult{IdentityID: ident.ID, TokenID: token.ID, Token: token.Plaintext}, nil
}

func newBootstrapCmd() *cobra.Command {
	var in users.CreateInput
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the first administrator and print its API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg)
			pool, err := db.New(cmd.Context(), cfg.PGDSN, db.Options{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()

			directory := classes.NewDirectory(classes.NewRepository(pool))
			gate := access.NewGate(
				access.WithPolicies(cfg.Policies()),
				access.WithClassDirectory(directory),
				access.WithAuditSink(audit.MultiSink{audit.NewLogSink(logger), audit.NewStoreSink(audit.NewStore(pool), logger)}),
			)
			userRepo := users.NewRepository(pool)
			loader := users.NewLoader(userRepo, nil, logger)
			userService := users.NewService(userRepo, loader, directory, gate)
			roleService := roles.NewService(roles.NewRepository(pool), directory, loader, gate)
			authService := auth.NewService(auth.NewRepository(pool), loader,
				auth.WithHashCost(cfg.TokenHashCost),
				auth.WithGate(gate),
				auth.WithLogger(logger),
			)

			res, err := bootstrapAdmin(cmd.Context(), userService, roleService, authService, in)
			if err != nil {
				return err
			}
			logger.Info("bootstrap admin created", slog.String("identity_id", res.IdentityID))
			if outputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), res)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "identity %s\ntoken %s\n", res.IdentityID, res.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.DisplayName, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "contact email")
	return cmd
}
