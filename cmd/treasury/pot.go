package main

import (
	"fmt"

	"github.com/axiomesh/treasury/core"
	"github.com/urfave/cli/v2"
)

var potCMD = &cli.Command{
	Name:  "pot",
	Usage: "Treasury pot commands, run while the daemon is stopped",
	Subcommands: []*cli.Command{
		{
			Name:   "show",
			Usage:  "Show the pot and the ledger totals",
			Action: showPot,
		},
		{
			Name:  "fund",
			Usage: "Move value from an account into the pot",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "from", Usage: "Funding account", Required: true},
				&cli.Uint64Flag{Name: "value", Usage: "Value to move", Required: true},
			},
			Action: fundPot,
		},
	},
}

func showPot(ctx *cli.Context) error {
	return withRuntime(ctx, func(rt *core.Runtime) error {
		s := rt.Treasury.Snapshot()
		var issuance, minimum uint64
		rt.Store.View(func() {
			issuance = rt.Ledger.TotalIssuance()
			minimum = rt.Ledger.MinimumBalance()
		})

		fmt.Printf("Account: %s\n", s.Account.Hex())
		fmt.Printf("Pot: %d\n", s.Pot)
		fmt.Printf("Minimum balance: %d\n", minimum)
		fmt.Printf("Total issuance: %d\n", issuance)
		fmt.Printf("Last block: %d\n", s.BlockNumber)
		fmt.Printf("Proposals: %d active, %d waiting, %d approved\n", len(s.Proposals), len(s.WaitingProposals), len(s.Approvals))
		return nil
	})
}

func fundPot(ctx *cli.Context) error {
	from, err := parseAddress("from", ctx.String("from"))
	if err != nil {
		return err
	}

	return withRuntime(ctx, func(rt *core.Runtime) error {
		value := ctx.Uint64("value")
		if err := rt.Treasury.Fund(from, value); err != nil {
			return fmt.Errorf("fund pot: %w", err)
		}
		fmt.Printf("pot funded with %d from %s\n", value, from.Hex())
		return nil
	})
}
