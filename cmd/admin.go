package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQLite migrations or ensure Mongo indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), c.cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()
			if s, ok := store.(*db.SQLiteStore); ok {
				version, err := db.Migrate(s.DB)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "mongo indexes ensured")
			return nil
		},
	}
}

// seededActor is one entry of the actors file written by seed.
type seededActor struct {
	Username string      `json:"username"`
	ID       string      `json:"id"`
	Role     models.Role `json:"role"`
	Token    string      `json:"token"`
}

type actorsFile struct {
	Actors []seededActor `json:"actors"`
}

var demoUsers = []struct {
	username, first, last string
	role                  models.Role
	specialty             string
}{
	{"rita", "Rita", "Ortega", models.RoleOperator, ""},
	{"omar", "Omar", "Haddad", models.RoleOperator, ""},
	{"maya", "Maya", "Lindqvist", models.RoleManager, ""},
	{"max", "Max", "Becker", models.RoleManager, ""},
	{"ada", "Ada", "Nwosu", models.RoleAdmin, ""},
	{"alex", "Alex", "Moreau", models.RoleMechanic, "brakes"},
	{"bea", "Bea", "Santos", models.RoleMechanic, "electrical"},
	{"vic", "Vic", "Tanaka", models.RoleViewer, ""},
}

func (c *cli) seedCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo users and mechanics and write their tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			authService, err := auth.NewService(c.cfg.Auth.JWTSecret, c.cfg.Auth.JWTExpiry)
			if err != nil {
				return err
			}

			file := actorsFile{}
			now := time.Now().UTC()
			for _, d := range demoUsers {
				user := &models.User{
					Username:  d.username,
					Email:     d.username + "@fleet.example",
					Role:      d.role,
					FirstName: d.first,
					LastName:  d.last,
					IsActive:  true,
					CreatedAt: now,
					UpdatedAt: now,
				}
				if err := a.store.InsertUser(ctx, user); err != nil {
					return fmt.Errorf("seed user %s: %w", d.username, err)
				}
				if d.role == models.RoleMechanic {
					m := models.Mechanic{ID: user.ID.Hex(), Specialty: d.specialty}
					if _, err := a.svc.RegisterMechanic(ctx, systemActor, m); err != nil {
						return err
					}
				}
				token, err := authService.GenerateToken(user)
				if err != nil {
					return err
				}
				file.Actors = append(file.Actors, seededActor{
					Username: user.Username,
					ID:       user.ID.Hex(),
					Role:     user.Role,
					Token:    token,
				})
			}

			if err := writeJSONFile(out, file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, actors written to %s\n", len(file.Actors), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "actors.json", "actors file to write")
	return cmd
}

func writeJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

// findUser resolves a user by id or username.
func findUser(ctx context.Context, store db.Store, ref string) (*models.User, error) {
	user, err := store.FindUserByID(ctx, ref)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	users, err := store.FindUsers(ctx, db.UserFilter{})
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Username == ref {
			return &users[i], nil
		}
	}
	return nil, fmt.Errorf("user %q not found", ref)
}

func (c *cli) tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id|username>",
		Short: "Issue a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), c.cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()
			user, err := findUser(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			authService, err := auth.NewService(c.cfg.Auth.JWTSecret, c.cfg.Auth.JWTExpiry)
			if err != nil {
				return err
			}
			token, err := authService.GenerateToken(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	var proposalID string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history <request-id>",
		Short: "Print the negotiation history of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := a.svc.GetRequest(ctx, systemActor, args[0])
			if err != nil {
				return err
			}
			entries, err := a.svc.History(ctx, systemActor, args[0], proposalID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			snap, err := a.svc.Deliberation(ctx, systemActor, args[0])
			if err != nil {
				return err
			}
			final := "-"
			if snap.FinalCost != nil {
				final = fmt.Sprintf("%.2f", *snap.FinalCost)
			}
			fmt.Fprintf(out, "Request %s  vehicle %s  stage %s  status %s\n", req.ID, req.VehicleID, req.CurrentStage, req.Status)
			fmt.Fprintf(out, "Deliberation %s  final cost %s\n", snap.Status, final)

			tw := table.NewWriter()
			tw.SetOutputMirror(out)
			tw.AppendHeader(table.Row{"Seq", "Date", "Mechanic", "Type", "By", "Amount", "Comments"})
			for _, e := range entries {
				tw.AppendRow(table.Row{
					e.SequenceNumber,
					e.NegotiatedDate.Format(time.RFC3339),
					e.MechanicName,
					e.NegotiationType,
					e.NegotiatedBy,
					fmt.Sprintf("%.2f", e.NegotiatedAmount),
					strings.TrimSpace(e.Comments),
				})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&proposalID, "proposal", "", "limit to one proposal")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}
