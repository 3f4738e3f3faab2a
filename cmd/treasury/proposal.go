package main

import (
	"fmt"
	"math"
	"sort"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/treasury/core"
	"github.com/axiomesh/treasury/repo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	indexFlag = &cli.UintFlag{
		Name:     "index",
		Usage:    "Proposal index",
		Required: true,
	}
	asFlag = &cli.StringFlag{
		Name:  "as",
		Usage: "Signed account dispatching the call, root when empty",
	}
)

var proposalCMD = &cli.Command{
	Name:  "proposal",
	Usage: "Spending proposal commands, run while the daemon is stopped",
	Subcommands: []*cli.Command{
		{
			Name:   "list",
			Usage:  "List active and waiting proposals and the approval queue",
			Action: listProposals,
		},
		{
			Name:  "propose",
			Usage: "File a spending proposal, reserving the bond from the proposer",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "from", Usage: "Proposer account", Required: true},
				&cli.StringFlag{Name: "beneficiary", Usage: "Account paid when approved", Required: true},
				&cli.Uint64Flag{Name: "value", Usage: "Requested value", Required: true},
				&cli.UintFlag{Name: "occurs", Usage: "Split the value into that many payments, 0 for one"},
			},
			Action: propose,
		},
		{
			Name:   "approve",
			Usage:  "Queue an active proposal for payment",
			Flags:  []cli.Flag{indexFlag, asFlag},
			Action: approve,
		},
		{
			Name:   "reject",
			Usage:  "Reject an active proposal and slash its bond",
			Flags:  []cli.Flag{indexFlag, asFlag},
			Action: reject,
		},
	},
}

func openRuntime(config *repo.Config, logger logrus.FieldLogger, reg prometheus.Registerer) (*core.Runtime, error) {
	rt, err := core.OpenRuntime(config, logger, reg)
	if err != nil {
		return nil, fmt.Errorf("open treasury at %s: %w", config.RepoRoot, err)
	}
	return rt, nil
}

func withRuntime(ctx *cli.Context, fn func(rt *core.Runtime) error) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	r, err := repo.Load(p)
	if err != nil {
		return err
	}

	logger := log.New()
	logger.SetLevel(log.ParseLevel(r.Config.Log.Level))

	rt, err := openRuntime(r.Config, logger, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	return fn(rt)
}

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func parseOccurs(v uint) (uint32, error) {
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("occurs %d exceeds %d", v, uint32(math.MaxUint32))
	}
	return uint32(v), nil
}

func originFromFlag(ctx *cli.Context) (core.Origin, error) {
	as := ctx.String(asFlag.Name)
	if as == "" {
		return core.RootOrigin(), nil
	}
	who, err := parseAddress(asFlag.Name, as)
	if err != nil {
		return core.Origin{}, err
	}
	return core.SignedOrigin(who), nil
}

func printProposals(title string, proposals map[core.ProposalIndex]*core.Proposal) {
	fmt.Printf("%s (%d):\n", title, len(proposals))
	indices := lo.Keys(proposals)
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	for _, i := range indices {
		p := proposals[i]
		fmt.Printf("  #%d proposer=%s beneficiary=%s value=%d bond=%d occurs=%d remaining=%d\n",
			i, p.Proposer.Hex(), p.Beneficiary.Hex(), p.Value, p.Bond, p.Occurs, p.RemainingOccurs)
	}
}

func listProposals(ctx *cli.Context) error {
	return withRuntime(ctx, func(rt *core.Runtime) error {
		s := rt.Treasury.Snapshot()
		printProposals("Active proposals", s.Proposals)
		printProposals("Waiting proposals", s.WaitingProposals)
		fmt.Printf("Approvals: %v\n", s.Approvals)
		return nil
	})
}

func propose(ctx *cli.Context) error {
	from, err := parseAddress("from", ctx.String("from"))
	if err != nil {
		return err
	}
	beneficiary, err := parseAddress("beneficiary", ctx.String("beneficiary"))
	if err != nil {
		return err
	}

	occurs, err := parseOccurs(ctx.Uint("occurs"))
	if err != nil {
		return err
	}

	return withRuntime(ctx, func(rt *core.Runtime) error {
		index, err := rt.Treasury.ProposeSpend(core.SignedOrigin(from), ctx.Uint64("value"), beneficiary, occurs)
		if err != nil {
			return fmt.Errorf("propose spend: %w", err)
		}
		fmt.Printf("proposal %d filed\n", index)
		return nil
	})
}

func approve(ctx *cli.Context) error {
	origin, err := originFromFlag(ctx)
	if err != nil {
		return err
	}

	return withRuntime(ctx, func(rt *core.Runtime) error {
		index := core.ProposalIndex(ctx.Uint(indexFlag.Name))
		if err := rt.Treasury.ApproveProposal(origin, index); err != nil {
			return fmt.Errorf("approve proposal %d: %w", index, err)
		}
		fmt.Printf("proposal %d approved\n", index)
		return nil
	})
}

func reject(ctx *cli.Context) error {
	origin, err := originFromFlag(ctx)
	if err != nil {
		return err
	}

	return withRuntime(ctx, func(rt *core.Runtime) error {
		index := core.ProposalIndex(ctx.Uint(indexFlag.Name))
		if err := rt.Treasury.RejectProposal(origin, index); err != nil {
			return fmt.Errorf("reject proposal %d: %w", index, err)
		}
		fmt.Printf("proposal %d rejected\n", index)
		return nil
	})
}
