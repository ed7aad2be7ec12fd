package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/crosswap-network/crosswap-daemon/internal/core/application"
	"github.com/crosswap-network/crosswap-daemon/pkg/matchclient"
)

var makeorder = cli.Command{
	Name:  "make",
	Usage: "register a new order and run the swap until settled",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "source",
			Usage:    "currency to sell",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "source-amount",
			Usage:    "amount to sell, in base units",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "destination",
			Usage:    "currency to buy",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "destination-amount",
			Usage:    "amount to buy, in base units",
			Required: true,
		},
	},
	Action: makeOrderAction,
}

func makeOrderAction(ctx *cli.Context) error {
	partySvc, serverURL, cleanup, err := setup(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	// Connect the push stream before registering, so the match notification
	// cannot slip by.
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

	orderID, err := partySvc.MakeOrder(
		context.Background(), application.OrderRequest{
			SourceCurrency:      ctx.String("source"),
			SourceAmount:        ctx.String("source-amount"),
			DestinationCurrency: ctx.String("destination"),
			DestinationAmount:   ctx.String("destination-amount"),
		},
	)
	if err != nil {
		return err
	}
	fmt.Printf("order registered: %s\nwaiting for a taker...\n", orderID)

	return waitForSettlement(partySvc, streamErr, orderID)
}
