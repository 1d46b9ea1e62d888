package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"landadmin/internal/app"
	identitymodels "landadmin/internal/identity/models"
	landmodels "landadmin/internal/landrecord/models"
	id "landadmin/pkg/domain"
	"landadmin/pkg/platform/sentinel"
	"landadmin/pkg/requestcontext"
)

const seedDistrict = "Gasabo"

type seedUser struct {
	email     string
	firstName string
	lastName  string
	role      identitymodels.Role
	district  string
}

var seedUsers = []seedUser{
	{"admin@land.local", "System", "Admin", identitymodels.RoleSystemAdmin, ""},
	{"officer@land.local", "Land", "Officer", identitymodels.RoleLandOfficer, seedDistrict},
	{"seller@land.local", "Alice", "Uwase", identitymodels.RoleCitizen, seedDistrict},
	{"buyer@land.local", "Eric", "Mugisha", identitymodels.RoleCitizen, "Kicukiro"},
}

func newSeedCmd() *cobra.Command {
	var lands int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo users and approved land records",
		Long: `Seed creates a system admin, a land officer and two citizens when they do not
exist yet, then registers and approves land records owned by the first citizen.
Running it twice reuses the users and adds more land records.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			return seed(cmd.Context(), a, lands, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&lands, "lands", 3, "Number of approved land records to create for the seller")
	return cmd
}

func seed(ctx context.Context, a *app.App, lands int, out io.Writer) error {
	users := make(map[identitymodels.Role][]*identitymodels.User)
	for _, su := range seedUsers {
		user, err := ensureUser(ctx, a, su)
		if err != nil {
			return err
		}
		users[user.Role] = append(users[user.Role], user)
		fmt.Fprintf(out, "user %-8s %-20s %s\n", user.Role, user.Email, user.ID)
	}
	officer := users[identitymodels.RoleLandOfficer][0]
	seller := users[identitymodels.RoleCitizen][0]

	sellerCtx := requestcontext.WithActor(ctx, requestcontext.Actor{
		UserID: seller.ID, Role: seller.Role.String(), District: seller.District,
	})
	officerCtx := requestcontext.WithActor(ctx, requestcontext.Actor{
		UserID: officer.ID, Role: officer.Role.String(), District: officer.District,
	})
	stamp := time.Now().UTC().Format("20060102150405")
	for i := range lands {
		req := &landmodels.RegisterRequest{
			ParcelNumber: fmt.Sprintf("PCL-%s-%02d", stamp, i+1),
			UPINumber:    fmt.Sprintf("1/02/03/04/%s%02d", stamp, i+1),
			Area:         decimal.NewFromInt(int64(500 + 100*i)),
			District:     seedDistrict,
			Sector:       "Kimironko",
			Cell:         "Bibare",
			Village:      "Inshuti",
			LandUseType:  landmodels.LandUseResidential,
		}
		if err := req.Validate(); err != nil {
			return err
		}
		land, err := a.Lands.Register(sellerCtx, req)
		if err != nil {
			return fmt.Errorf("register land %s: %w", req.ParcelNumber, err)
		}
		if _, err := a.Lands.Approve(officerCtx, land.ID); err != nil {
			return fmt.Errorf("approve land %s: %w", land.ParcelNumber, err)
		}
		fmt.Fprintf(out, "land %s %s\n", land.ParcelNumber, land.ID)
	}
	return nil
}

func ensureUser(ctx context.Context, a *app.App, su seedUser) (*identitymodels.User, error) {
	existing, err := a.Users.FindByEmail(ctx, su.email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("look up %s: %w", su.email, err)
	}
	now := time.Now().UTC()
	user := &identitymodels.User{
		ID:        id.NewUserID(),
		Email:     su.email,
		FirstName: su.firstName,
		LastName:  su.lastName,
		Role:      su.role,
		District:  su.district,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create %s: %w", su.email, err)
	}
	return user, nil
}
