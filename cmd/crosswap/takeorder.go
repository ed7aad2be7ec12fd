package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/crosswap-network/crosswap-daemon/pkg/matchclient"
)

var takeorder = cli.Command{
	Name:      "take",
	Usage:     "take an open order and run the swap until settled",
	ArgsUsage: "<orderId>",
	Action:    takeOrderAction,
}

func takeOrderAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: take <orderId>")
	}
	orderID := ctx.Args().First()

	partySvc, serverURL, cleanup, err := setup(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	// The maker's first message is pushed right after the take, so the
	// stream must be listening before the order is taken.
	stream, err := matchclient.OpenStream(
		context.Background(), serverURL, partySvc.MasterKeyID(),
	)
	if err != nil {
		return err
	}
	defer stream.Close()

	streamErr := make(chan error, 1)
	go func() {
		streamErr <- stream.Listen(partySvc.HandleMessage)
	}()

	if err := partySvc.TakeOrder(context.Background(), orderID); err != nil {
		return err
	}
	fmt.Printf("order taken: %s\nrunning the release exchange...\n", orderID)

	return waitForSettlement(partySvc, streamErr, orderID)
}
