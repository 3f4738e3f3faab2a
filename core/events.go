package core

import (
	"github.com/axiomesh/treasury/event"
	"github.com/axiomesh/treasury/types"
	"github.com/ethereum/go-ethereum/common"
)

const (
	ProposedEventType                  = event.EventType("treasury.proposed")
	WaitingProposedEventType           = event.EventType("treasury.waiting_proposed")
	WaitingProposalTransferedEventType = event.EventType("treasury.waiting_proposal_transfered")
	SpendingEventType                  = event.EventType("treasury.spending")
	AwardedEventType                   = event.EventType("treasury.awarded")
	RejectedEventType                  = event.EventType("treasury.rejected")
	BurntEventType                     = event.EventType("treasury.burnt")
	RolloverEventType                  = event.EventType("treasury.rollover")
	DepositEventType                   = event.EventType("treasury.deposit")
)

// EventTypes lists every event type the treasury publishes.
var EventTypes = []event.EventType{
	ProposedEventType,
	WaitingProposedEventType,
	WaitingProposalTransferedEventType,
	SpendingEventType,
	AwardedEventType,
	RejectedEventType,
	BurntEventType,
	RolloverEventType,
	DepositEventType,
}

// Proposed is emitted when a proposal enters the active set.
type Proposed struct {
	Index ProposalIndex
}

// WaitingProposed is emitted when a proposal enters the waiting set.
type WaitingProposed struct {
	Index ProposalIndex
}

// WaitingProposalTransfered is emitted for every slot walked while promoting
// the waiting set. WaitingCount is the waiting counter read when the
// promotion started.
type WaitingProposalTransfered struct {
	WaitingCount ProposalIndex
}

// Spending is emitted when a spend period ends and funds are about to be
// allocated.
type Spending struct {
	BudgetRemaining types.Balance
}

type Awarded struct {
	Index       ProposalIndex
	Award       types.Balance
	Beneficiary common.Address
}

type Rejected struct {
	Index   ProposalIndex
	Slashed types.Balance
}

type Burnt struct {
	Burn types.Balance
}

// Rollover carries the budget left over to the next spend period.
type Rollover struct {
	BudgetRemaining types.Balance
}

// Deposit is emitted when funds are paid into the pot.
type Deposit struct {
	Value types.Balance
}

// Publisher receives treasury events once the operation that produced them
// is committed.
type Publisher interface {
	Publish(eventType event.EventType, evt event.Event)
}

func eventTypeOf(data any) event.EventType {
	switch data.(type) {
	case Proposed:
		return ProposedEventType
	case WaitingProposed:
		return WaitingProposedEventType
	case WaitingProposalTransfered:
		return WaitingProposalTransferedEventType
	case Spending:
		return SpendingEventType
	case Awarded:
		return AwardedEventType
	case Rejected:
		return RejectedEventType
	case Burnt:
		return BurntEventType
	case Rollover:
		return RolloverEventType
	case Deposit:
		return DepositEventType
	default:
		return event.EventType("treasury.unknown")
	}
}
