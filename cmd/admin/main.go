// Command admin is the RideGuard operations CLI.
//
// Usage:
//
//	rideguard-admin facilities import --file hospitals.json
//	rideguard-admin facilities add --name "RSUD Tarakan" --lat -6.16 --long 106.81
//	rideguard-admin facilities list
//	rideguard-admin devices bind --id rg-0042 --username budi
//	rideguard-admin accounts set-token --username budi --token <fcm-token>
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rideguard/rideguard-backend/internal/config"
	"github.com/rideguard/rideguard-backend/internal/db"
	"github.com/rideguard/rideguard-backend/internal/facility"
	"github.com/rideguard/rideguard-backend/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "rideguard-admin",
		Short: "RideGuard operations CLI",
	}

	root.AddCommand(facilitiesCmd())
	root.AddCommand(devicesCmd())
	root.AddCommand(accountsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// runStore connects to the database and hands a Store to fn.
func runStore(fn func(ctx context.Context, st store.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, store.NewPostgres(pool.Pool))
}

// --------------------------------------------------------------------------
// facilities command
// --------------------------------------------------------------------------

func facilitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facilities",
		Short: "Manage the emergency-services collection",
	}
	cmd.AddCommand(facilitiesImportCmd())
	cmd.AddCommand(facilitiesAddCmd())
	cmd.AddCommand(facilitiesListCmd())
	return cmd
}

// importRecord mirrors the JSON export shape of the facility collection.
type importRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
}

func facilitiesImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import facilities from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var records []importRecord
			if err := json.Unmarshal(data, &records); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}

			return runStore(func(ctx context.Context, st store.Store) error {
				for _, rec := range records {
					id, err := st.AddFacility(ctx, rec.ID, facilityDoc(rec.Name, rec.Location.Latitude, rec.Location.Longitude))
					if err != nil {
						return err
					}
					logger.Info("facility imported", "id", id, "name", rec.Name)
				}
				logger.Info("import finished", "count", len(records))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file with an array of facilities")
	cmd.MarkFlagRequired("file")
	return cmd
}

func facilitiesAddCmd() *cobra.Command {
	var id, name string
	var lat, long float64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a single facility",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(func(ctx context.Context, st store.Store) error {
				assigned, err := st.AddFacility(ctx, id, facilityDoc(name, lat, long))
				if err != nil {
					return err
				}
				logger.Info("facility added", "id", assigned, "name", name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Facility id (assigned by the store when empty)")
	cmd.Flags().StringVar(&name, "name", "", "Facility name")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude in degrees")
	cmd.Flags().Float64Var(&long, "long", 0, "Longitude in degrees")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("long")
	return cmd
}

func facilitiesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the facility collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(func(ctx context.Context, st store.Store) error {
				records, err := st.Facilities(ctx)
				if err != nil {
					return err
				}
				for _, f := range facility.Decode(records, logger) {
					fmt.Printf("%s\t%s\t(%.6f, %.6f)\n", f.ID, f.Name, f.Location.Lat, f.Location.Lng)
				}
				return nil
			})
		},
	}
}

func facilityDoc(name string, lat, long float64) store.Document {
	return store.Document{
		"name": name,
		"location": map[string]any{
			"latitude":  lat,
			"longitude": long,
		},
	}
}

// --------------------------------------------------------------------------
// devices command
// --------------------------------------------------------------------------

func devicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Manage device-to-owner bindings",
	}

	var id, username string
	bind := &cobra.Command{
		Use:   "bind",
		Short: "Bind a RideGuard device to an owning account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(func(ctx context.Context, st store.Store) error {
				err := st.BindDevice(ctx, id, store.Document{"username": username})
				if err != nil {
					return err
				}
				logger.Info("device bound", "rideguard_id", id, "username", username)
				return nil
			})
		},
	}
	bind.Flags().StringVar(&id, "id", "", "RideGuard device id")
	bind.Flags().StringVar(&username, "username", "", "Owning account username")
	bind.MarkFlagRequired("id")
	bind.MarkFlagRequired("username")

	cmd.AddCommand(bind)
	return cmd
}

// --------------------------------------------------------------------------
// accounts command
// --------------------------------------------------------------------------

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage account records",
	}

	var username, token string
	setToken := &cobra.Command{
		Use:   "set-token",
		Short: "Set the notification token on an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStore(func(ctx context.Context, st store.Store) error {
				if err := st.SetAccountToken(ctx, username, token); err != nil {
					return err
				}
				logger.Info("token updated", "username", username)
				return nil
			})
		},
	}
	setToken.Flags().StringVar(&username, "username", "", "Account username")
	setToken.Flags().StringVar(&token, "token", "", "FCM device token")
	setToken.MarkFlagRequired("username")
	setToken.MarkFlagRequired("token")

	cmd.AddCommand(setToken)
	return cmd
}
