package main

import (
	"context"

	"github.com/urfave/cli/v2"
)

var balance = cli.Command{
	Name:   "balance",
	Usage:  "show the main account balance of each currency",
	Action: balanceAction,
}

func balanceAction(ctx *cli.Context) error {
	partySvc, _, cleanup, err := setup(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	balances, err := partySvc.Balances(context.Background())
	if err != nil {
		return err
	}

	printJSON(balances)
	return nil
}
