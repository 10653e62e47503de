package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"pairchat/internal/model"
	"pairchat/internal/protocol/pairing"
	"pairchat/internal/protocol/pairkey"
)

func threadIDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threadid <a> <b>",
		Short: "Print the thread id and key salt of a pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, id, err := parsePair(args[0], args[1])
			if err != nil {
				return err
			}
			printPair(cmd, pair, id)
			return nil
		},
	}
	return cmd
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <thread-id>",
		Short: "Print the pair a thread id was derived from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := model.ThreadID(args[0])
			pair, err := pairing.Parse(id)
			if err != nil {
				return err
			}
			printPair(cmd, pair, id)
			return nil
		},
	}
	return cmd
}

func printPair(cmd *cobra.Command, pair model.NormalizedPair, id model.ThreadID) {
	salt := pairkey.Salt(pair)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "thread:  %s\n", id)
	fmt.Fprintf(out, "pair:    %s\n", pair)
	fmt.Fprintf(out, "pairing: %d\n", pairing.Pair(pair))
	fmt.Fprintf(out, "salt:    %s\n", hex.EncodeToString(salt[:]))
}
