package core

import (
	"github.com/axiomesh/treasury/types"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type spendAction uint8

const (
	// the proposal is gone, drop the index
	spendDrop spendAction = iota
	spendPay
	// not enough budget, keep the index queued
	spendDefer
)

type spendDecision struct {
	index    ProposalIndex
	action   spendAction
	proposal Proposal
}

// planSpend walks the approval queue in order and decides, for every index,
// whether it is paid, deferred or dropped. Paid proposals are charged
// against budget. Proposals are tracked locally so an index queued twice
// sees the effect of its earlier payment.
func (t *Treasury) planSpend(queue []ProposalIndex, budget *types.Balance) ([]spendDecision, map[ProposalIndex]*Proposal, bool) {
	var missedAny bool
	decisions := make([]spendDecision, 0, len(queue))
	// nil marks a proposal that was fully paid out
	touched := make(map[ProposalIndex]*Proposal)

	for _, index := range queue {
		p, seen := touched[index]
		if !seen {
			stored, ok := t.registry.Proposal(index)
			if ok {
				p = stored
			}
		}
		if p == nil {
			decisions = append(decisions, spendDecision{index: index, action: spendDrop})
			continue
		}
		if p.Value > *budget {
			missedAny = true
			decisions = append(decisions, spendDecision{index: index, action: spendDefer})
			continue
		}

		*budget -= p.Value
		paid := *p
		if paid.RemainingOccurs > 0 {
			paid.RemainingOccurs--
		}
		if paid.RemainingOccurs == 0 {
			touched[index] = nil
		} else {
			next := paid
			touched[index] = &next
		}
		decisions = append(decisions, spendDecision{index: index, action: spendPay, proposal: paid})
	}
	return decisions, touched, missedAny
}

// spend runs one spend cycle: pay approved proposals the budget allows, let
// the spend extensions use the rest, burn part of the surplus when nothing
// was missed, settle the pot account, promote waiting proposals and report
// the rollover.
func (t *Treasury) spend() Weight {
	var totalWeight Weight

	budgetRemaining := t.pot()
	t.deposit(Spending{BudgetRemaining: budgetRemaining})

	queue := t.approvals.List()
	decisions, touched, missedAny := t.planSpend(queue, &budgetRemaining)

	for index, p := range touched {
		if p == nil {
			t.registry.removeProposal(index)
		} else {
			t.registry.putProposal(index, p)
		}
	}

	var imbalance types.PositiveImbalance
	for _, d := range decisions {
		if d.action != spendPay {
			continue
		}
		p := d.proposal
		if rest := t.currency.Unreserve(p.Proposer, p.Bond); rest != 0 {
			t.logger.WithFields(logrus.Fields{"index": d.index, "bond": p.Bond, "missing": rest}).Warn("Bond was not fully reserved")
		}
		imbalance.Subsume(t.currency.DepositCreating(p.Beneficiary, p.Value))
		t.deposit(Awarded{Index: d.index, Award: p.Value, Beneficiary: p.Beneficiary})
	}

	t.approvals.Replace(lo.FilterMap(decisions, func(d spendDecision, _ int) (ProposalIndex, bool) {
		return d.index, d.action == spendDefer
	}))

	totalWeight += Weight(len(queue))

	t.spendFunds.SpendFunds(&budgetRemaining, &imbalance, &totalWeight, &missedAny)

	if !missedAny {
		burn := types.MinBalance(t.config.Burn.Mul(budgetRemaining), budgetRemaining)
		budgetRemaining -= burn

		debit, credit := t.currency.Pair(burn)
		imbalance.Subsume(debit)
		t.burnDestination.OnUnbalanced(credit)
		t.deposit(Burnt{Burn: burn})
	}

	// The budget never exceeds the free balance minus the minimum balance,
	// so the pot account stays alive.
	if problem, err := t.currency.Settle(t.account, imbalance, types.WithdrawTransfer, types.KeepAlive); err != nil {
		t.logger.WithFields(logrus.Fields{"imbalance": problem.Peek(), "err": err}).Error("Inconsistent state - couldn't settle imbalance for funds spent by treasury")
		t.currency.DropPositive(problem)
	}

	t.promoteWaiting()

	t.deposit(Rollover{BudgetRemaining: budgetRemaining})

	t.logger.WithFields(logrus.Fields{
		"approvals": len(queue),
		"paid":      lo.CountBy(decisions, func(d spendDecision) bool { return d.action == spendPay }),
		"missed":    missedAny,
		"rollover":  budgetRemaining,
	}).Info("Spend period finished")

	return totalWeight
}

// promoteWaiting moves the waiting set into the active set. It walks the
// slots below the waiting counter read at the start; the counter ends up one
// below that value, not at zero.
// TODO: the walk emits Proposed for empty slots and leaves the waiting
// counter at w-1 so later waiting indices restart below the old range;
// settle the intended counter semantics before changing it.
func (t *Treasury) promoteWaiting() {
	w := t.registry.WaitingProposalCount()
	for i := ProposalIndex(0); i < w; i++ {
		c := t.registry.ProposalCount()
		if p, ok := t.registry.WaitingProposal(i); ok {
			t.registry.setProposalCount(c + 1)
			t.registry.putProposal(c, p)
		}

		t.registry.setWaitingProposalCount(w - 1)
		t.registry.removeWaitingProposal(i)

		t.deposit(WaitingProposalTransfered{WaitingCount: w})
		t.deposit(Proposed{Index: c})
	}
}
