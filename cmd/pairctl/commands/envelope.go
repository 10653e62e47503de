package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pairchat/internal/model"
	"pairchat/internal/protocol/envelope"
	"pairchat/internal/repository/blob"
)

// open <a> <b>: decrypt the envelope of the pair's thread.
func openCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <a> <b>",
		Short: "Decrypt a thread envelope and print its history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, id, err := parsePair(args[0], args[1])
			if err != nil {
				return err
			}
			store, err := blob.NewFileStore(opts.dataDir)
			if err != nil {
				return err
			}

			raw, err := store.Read(cmd.Context(), id)
			if err != nil {
				return err
			}
			env, err := envelope.Unmarshal(raw)
			if err != nil {
				return err
			}
			pt, err := envelope.OpenPair(pair, env)
			if err != nil {
				return err
			}

			var out bytes.Buffer
			if err := json.Indent(&out, pt, "", "  "); err != nil {
				// not JSON, print as is
				out.Reset()
				out.Write(pt)
			}
			out.WriteByte('\n')
			_, err = out.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
	return cmd
}

// seal <a> <b>: replace the pair's envelope with the history on stdin.
func sealCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seal <a> <b>",
		Short: "Seal a JSON history read from stdin into a thread envelope",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, id, err := parsePair(args[0], args[1])
			if err != nil {
				return err
			}
			pt, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			var msgs []model.Message
			if err := json.Unmarshal(pt, &msgs); err != nil {
				return fmt.Errorf("stdin must be a JSON array of messages: %w", err)
			}

			store, err := blob.NewFileStore(opts.dataDir)
			if err != nil {
				return err
			}
			return seal(cmd.Context(), store, pair, id, pt, force, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing envelope")
	return cmd
}

func seal(ctx context.Context, store *blob.FileStore, pair model.NormalizedPair, id model.ThreadID, pt []byte, force bool, out io.Writer) error {
	exists, err := store.Exists(ctx, id)
	if err != nil {
		return err
	}
	if exists && !force {
		return fmt.Errorf("envelope for %s already exists, use --force to overwrite", id)
	}

	env, err := envelope.SealPair(pair, pt)
	if err != nil {
		return err
	}
	raw, err := envelope.Marshal(env)
	if err != nil {
		return err
	}
	if err := store.Write(ctx, id, raw); err != nil {
		return err
	}
	fmt.Fprintf(out, "sealed %s\n", id)
	return nil
}
