package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

var address = cli.Command{
	Name:      "address",
	Usage:     "show the main account funding address of a currency",
	ArgsUsage: "<currency>",
	Action:    addressAction,
}

func addressAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: address <currency>")
	}

	partySvc, _, cleanup, err := setup(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	addr, err := partySvc.DepositAddress(context.Background(), ctx.Args().First())
	if err != nil {
		return err
	}

	fmt.Println(addr)
	return nil
}
