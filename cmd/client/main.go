package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"pairchat/internal/config"
	"pairchat/internal/model"
	"pairchat/internal/service/app"
	"pairchat/internal/utils/log"

	"go.uber.org/zap"
)

func main() {
	// os.Args[0] is the program name, os.Args[1:] are arguments
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: client <your party id> <recipient party id>")
		os.Exit(2)
	}

	self, err := parseParty(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	other, err := parseParty(os.Args[2])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := config.Load()
	// the TUI owns the terminal, keep the log quiet
	if err := log.Init("error", false); err != nil {
		panic(err)
	}
	defer log.Sync()

	client := app.NewApp(app.NewAPIClient(cfg.Addr, self), self)
	if err := client.Run(context.Background(), other); err != nil {
		log.Fatal("chat client failed", zap.Error(err))
	}
}

func parseParty(s string) (model.PartyID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid party id %q", s)
	}
	return model.PartyID(n), nil
}
