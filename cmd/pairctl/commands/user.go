package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pairchat/internal/model"
	"pairchat/internal/repository/user"
)

func userCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the user directory",
	}
	cmd.AddCommand(userAddCmd(opts))
	return cmd
}

// user add <party-id> <name>: register a party so others can open threads with it.
func userAddCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <party-id> <name>",
		Short: "Register a party in the user directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid party id %q", args[0])
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.cfg.MongoURI))
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())

			repo := user.NewUserRepo(client.Database(opts.cfg.MongoDB))
			exists, err := repo.Exists(ctx, model.PartyID(id))
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("party %d already registered", id)
			}

			if _, err := repo.Create(ctx, &model.User{PartyID: model.PartyID(id), Name: args[1]}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered party %d as %s\n", id, args[1])
			return nil
		},
	}
	return cmd
}
