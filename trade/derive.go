package trade

import (
	"fmt"

	"fxledger.dev/ledger/codec"
	"fxledger.dev/ledger/ident"
)

// Phase is the derived workflow state. It is never stored; it is a pure
// function of a trade's witness chain.
type Phase uint8

const (
	PhaseDraft Phase = iota // pre-submission, only valid off-chain
	PhasePendingApproval
	PhaseNeedsReApproval
	PhaseApproved
	PhaseSentToCounterParty
	PhaseExecuted
	PhaseBooked
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseDraft:
		return "draft"
	case PhasePendingApproval:
		return "pending_approval"
	case PhaseNeedsReApproval:
		return "needs_reapproval"
	case PhaseApproved:
		return "approved"
	case PhaseSentToCounterParty:
		return "sent_to_counterparty"
	case PhaseExecuted:
		return "executed"
	case PhaseBooked:
		return "booked"
	case PhaseCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Terminal reports whether no further witness may be appended.
func (p Phase) Terminal() bool {
	return p == PhaseBooked || p == PhaseCancelled
}

// Action is a workflow operation a caller may attempt.
type Action uint8

const (
	ActionSubmit Action = iota + 1
	ActionUpdate
	ActionApprove
	ActionCancel
	ActionSend
	ActionExecute
	ActionBook
)

func (a Action) String() string {
	switch a {
	case ActionSubmit:
		return "submit"
	case ActionUpdate:
		return "update"
	case ActionApprove:
		return "approve"
	case ActionCancel:
		return "cancel"
	case ActionSend:
		return "send"
	case ActionExecute:
		return "execute"
	case ActionBook:
		return "book"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// kindAction maps a stored witness kind to the action it attests.
func kindAction(k WitnessKind) Action {
	switch k {
	case KindSubmit:
		return ActionSubmit
	case KindUpdate:
		return ActionUpdate
	case KindApprove:
		return ActionApprove
	case KindCancel:
		return ActionCancel
	case KindSend:
		return ActionSend
	case KindExecute:
		return ActionExecute
	case KindBook:
		return ActionBook
	default:
		return 0
	}
}

// Resolver answers whether a details content hash is present in the
// object store. Derivation performs no I/O itself; the resolver is the
// only window onto storage and must be pure for a given store state.
type Resolver interface {
	HasDetails(h codec.Hash) bool
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(h codec.Hash) bool

func (f ResolverFunc) HasDetails(h codec.Hash) bool { return f(h) }

// Derivation is the output of Derive.
type Derivation struct {
	Phase       Phase
	DetailsHash codec.Hash // currently referenced details record
	Requester   ident.UserID
	Approver    ident.UserID
	Strike      *Strike // set once executed
	Length      int
}

// Legal returns the actions permitted from the derived phase, in a fixed
// order. It ignores actor identity; the coordinator layers that check on
// top.
func (d *Derivation) Legal() []Action {
	switch d.Phase {
	case PhasePendingApproval, PhaseNeedsReApproval:
		return []Action{ActionUpdate, ActionApprove, ActionCancel}
	case PhaseApproved:
		return []Action{ActionUpdate, ActionSend, ActionCancel}
	case PhaseSentToCounterParty:
		return []Action{ActionExecute, ActionCancel}
	case PhaseExecuted:
		return []Action{ActionBook, ActionCancel}
	default:
		return nil
	}
}

// Permits reports whether a is legal from the derived phase.
func (d *Derivation) Permits(a Action) bool {
	for _, l := range d.Legal() {
		if l == a {
			return true
		}
	}
	return false
}

// Derive computes the workflow state of one trade from its full witness
// chain. It is deterministic and performs no I/O.
//
// The integrity pass checks structural consistency: non-empty, Submit
// first, contiguous sequence numbers, prev-hash linkage, one trade id
// throughout, and every referenced details hash resolvable. Failures are
// ChainInvalid with the offending index.
//
// The fold pass then replays the workflow transition rules. A stored
// witness that violates a rule yields IllegalTransition at its index;
// with a correct coordinator this indicates tampering, since illegal
// witnesses are refused before commit.
func Derive(ws []*Witness, r Resolver) (*Derivation, error) {
	if err := verifyIntegrity(ws, r); err != nil {
		return nil, err
	}
	return fold(ws)
}

func verifyIntegrity(ws []*Witness, r Resolver) error {
	if len(ws) == 0 {
		return chainerr(CHAIN_ERR_EMPTY, 0, "")
	}
	if ws[0] == nil {
		return chainerr(CHAIN_ERR_PAYLOAD, 0, "nil witness")
	}
	if ws[0].Kind != KindSubmit {
		return chainerr(CHAIN_ERR_FIRST_KIND, 0, ws[0].Kind.String())
	}
	tradeID := ws[0].TradeID

	var prevHash codec.Hash
	for i, w := range ws {
		if w == nil {
			return chainerr(CHAIN_ERR_PAYLOAD, i, "nil witness")
		}
		if err := w.ValidatePayload(); err != nil {
			return chainerr(CHAIN_ERR_PAYLOAD, i, err.Error())
		}
		if w.TradeID != tradeID {
			return chainerr(CHAIN_ERR_TRADE_ID, i, "trade id differs from chain head")
		}
		if w.Seq != uint64(i) {
			return chainerr(CHAIN_ERR_SEQ, i, fmt.Sprintf("seq %d", w.Seq))
		}
		if i > 0 && w.Prev != prevHash {
			return chainerr(CHAIN_ERR_LINKAGE, i, "prev hash mismatch")
		}
		if (w.Kind == KindSubmit || w.Kind == KindUpdate) && r != nil && !r.HasDetails(w.DetailsHash) {
			return chainerr(CHAIN_ERR_DETAILS_HASH, i, w.DetailsHash.String())
		}

		h, err := HashWitness(w)
		if err != nil {
			return chainerr(CHAIN_ERR_PAYLOAD, i, err.Error())
		}
		prevHash = h
	}
	return nil
}

func fold(ws []*Witness) (*Derivation, error) {
	d := &Derivation{Length: len(ws)}

	for i, w := range ws {
		action := kindAction(w.Kind)
		if i > 0 && d.Phase.Terminal() {
			return nil, &IllegalTransition{From: d.Phase, Action: action, Index: i}
		}

		switch w.Kind {
		case KindSubmit:
			if i != 0 {
				return nil, &IllegalTransition{From: d.Phase, Action: action, Index: i}
			}
			d.Phase = PhasePendingApproval
			d.DetailsHash = w.DetailsHash
			d.Requester = w.Requester
			d.Approver = w.Approver

		case KindUpdate:
			switch d.Phase {
			case PhasePendingApproval, PhaseNeedsReApproval, PhaseApproved:
			default:
				return nil, &IllegalTransition{From: d.Phase, Action: action, Index: i}
			}
			if w.Actor != d.Requester {
				return nil, &IllegalTransition{From: d.Phase, Action: action, Index: i}
			}
			// An update after approval invalidates the approval.
			d.Phase = PhaseNeedsReApproval
			d.DetailsHash = w.DetailsHash

		case KindApprove:
			switch d.Phase {
			case PhasePendingApproval, PhaseNeedsReApproval:
			default:
				return nil, &IllegalTransition{From: d.Phase, Action: action, Index: i}
			}
			if w.Actor != d.Approver {
				return nil, &IllegalTransition{From: d.Phase, Action: action, Index: i}
			}
			d.Phase = PhaseApproved

		case KindSend:
			if d.Phase != PhaseApproved {
				return nil, &IllegalTransition{From: d.Phase, Action: action, Index: i}
			}
			d.Phase = PhaseSentToCounterParty

		case KindExecute:
			if d.Phase != PhaseSentToCounterParty {
				return nil, &IllegalTransition{From: d.Phase, Action: action, Index: i}
			}
			if w.Strike == nil || !w.Strike.Positive() {
				return nil, &IllegalTransition{From: d.Phase, Action: action, Index: i}
			}
			s := *w.Strike
			d.Strike = &s
			d.Phase = PhaseExecuted

		case KindBook:
			if d.Phase != PhaseExecuted {
				return nil, &IllegalTransition{From: d.Phase, Action: action, Index: i}
			}
			d.Phase = PhaseBooked

		case KindCancel:
			// Legal from any non-terminal phase; terminal was checked above.
			d.Phase = PhaseCancelled

		default:
			return nil, chainerr(CHAIN_ERR_PAYLOAD, i, fmt.Sprintf("unknown kind %d", w.Kind))
		}
	}
	return d, nil
}
