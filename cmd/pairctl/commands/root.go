package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pairchat/internal/config"
	"pairchat/internal/model"
	"pairchat/internal/protocol/pairing"
)

type rootOptions struct {
	cfg     config.Config
	dataDir string
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{cfg: config.Load()}

	root := &cobra.Command{
		Use:          "pairctl",
		Short:        "Inspect pairwise conversation threads",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", opts.cfg.DataDir, "directory holding thread envelopes")

	root.AddCommand(threadIDCmd(), parseCmd(), openCmd(opts), sealCmd(opts), userCmd(opts))
	return root
}

func parsePair(a, b string) (model.NormalizedPair, model.ThreadID, error) {
	x, err := strconv.ParseInt(a, 10, 64)
	if err != nil {
		return model.NormalizedPair{}, "", fmt.Errorf("invalid party id %q", a)
	}
	y, err := strconv.ParseInt(b, 10, 64)
	if err != nil {
		return model.NormalizedPair{}, "", fmt.Errorf("invalid party id %q", b)
	}
	return pairing.Derive(model.PartyID(x), model.PartyID(y))
}
