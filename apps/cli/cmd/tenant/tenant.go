package tenantcmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	membershipsrepo "github.com/caretrack-hq/caretrack/domains/memberships/be/repo"
	membershipsservice "github.com/caretrack-hq/caretrack/domains/memberships/be/service"
	"github.com/caretrack-hq/caretrack/domains/tenants/be/repo"
	"github.com/caretrack-hq/caretrack/domains/tenants/be/service"
	"github.com/caretrack-hq/caretrack/platform/go/persistence"
	"github.com/caretrack-hq/caretrack/platform/go/requesttrace"
)

// Command groups tenant-related helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant utilities (create/bootstrap)",
	}

	cmd.AddCommand(createCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var (
		databaseURL   string
		tenantName    string
		tenantSlug    string
		tenantTier    string
		ownerEmail    string
		ownerName     string
		credentialRef string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant and bootstrap its primary membership",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.ApplyCoreSchema(ctx, pool); err != nil {
				return fmt.Errorf("apply core schema: %w", err)
			}

			tenantStore, err := persistence.NewTenantStore(pool)
			if err != nil {
				return fmt.Errorf("init tenant store: %w", err)
			}
			userStore, err := persistence.NewUserStore(pool)
			if err != nil {
				return fmt.Errorf("init user store: %w", err)
			}
			scopedDB, err := persistence.NewScopedDB(pool, persistence.MembershipsTable, persistence.InvitationsTable)
			if err != nil {
				return fmt.Errorf("init scoped db: %w", err)
			}
			membershipStore, err := persistence.NewMembershipStore(scopedDB)
			if err != nil {
				return fmt.Errorf("init membership store: %w", err)
			}
			invitationStore, err := persistence.NewInvitationStore(scopedDB, pool)
			if err != nil {
				return fmt.Errorf("init invitation store: %w", err)
			}
			settingsValidator, err := persistence.NewSettingsValidator()
			if err != nil {
				return fmt.Errorf("init settings validator: %w", err)
			}

			membershipRepo := membershipsrepo.NewPostgresRepository(tenantStore, membershipStore, invitationStore, userStore)
			membershipService := membershipsservice.New(membershipRepo)

			tenantRepo := repo.NewPostgresRepository(tenantStore)
			tenantService := service.New(tenantRepo, settingsValidator, membershipService)

			owner, err := userStore.GetByEmail(ctx, ownerEmail)
			switch {
			case errors.Is(err, persistence.ErrNotFound):
				owner, err = userStore.Create(ctx, persistence.CreateUserParams{
					UserID:        uuid.New(),
					Email:         ownerEmail,
					FullName:      ownerName,
					CredentialRef: credentialRef,
				})
				if err != nil {
					return fmt.Errorf("create owner user: %w", err)
				}
			case err != nil:
				return fmt.Errorf("resolve owner user: %w", err)
			}

			actor := requesttrace.System(uuid.NewString())
			created, err := tenantService.Create(ctx, actor, service.CreateInput{
				Name:        tenantName,
				Slug:        tenantSlug,
				Tier:        tenantTier,
				OwnerUserID: &owner.UserID,
			})
			if err != nil {
				if errors.Is(err, service.ErrConflict) {
					return fmt.Errorf("tenant slug %q already exists", tenantSlug)
				}
				return fmt.Errorf("create tenant: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "tenant %s (%s) created; primary member %s\n",
				created.ID, created.Slug, owner.Email)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "Postgres connection string")
	c.Flags().StringVar(&tenantName, "name", "", "tenant display name")
	c.Flags().StringVar(&tenantSlug, "slug", "", "tenant slug (lowercase, dash-separated)")
	c.Flags().StringVar(&tenantTier, "tier", "", "subscription tier (defaults to standard)")
	c.Flags().StringVar(&ownerEmail, "owner-email", "", "email of the founding primary member")
	c.Flags().StringVar(&ownerName, "owner-name", "", "display name for the founding member")
	c.Flags().StringVar(&credentialRef, "owner-credential-ref", "", "identity provider reference for the founding member")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("slug")
	_ = c.MarkFlagRequired("owner-email")

	return c
}
