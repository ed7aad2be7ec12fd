package main

import (
	"context"

	"github.com/urfave/cli/v2"
)

var orders = cli.Command{
	Name:   "orders",
	Usage:  "list the open orders on the matching server",
	Action: ordersAction,
}

func ordersAction(ctx *cli.Context) error {
	partySvc, _, cleanup, err := setup(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := partySvc.ListOpenOrders(context.Background())
	if err != nil {
		return err
	}

	printJSON(list)
	return nil
}
