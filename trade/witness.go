package trade

import (
	"fmt"

	"fxledger.dev/ledger/codec"
	"fxledger.dev/ledger/ident"
)

// WitnessKind tags the action a witness attests to. The set is closed:
// the derivation fold is exhaustive over exactly these seven kinds.
type WitnessKind uint8

const (
	KindSubmit WitnessKind = iota + 1
	KindUpdate
	KindApprove
	KindCancel
	KindSend
	KindExecute
	KindBook
)

func (k WitnessKind) String() string {
	switch k {
	case KindSubmit:
		return "submit"
	case KindUpdate:
		return "update"
	case KindApprove:
		return "approve"
	case KindCancel:
		return "cancel"
	case KindSend:
		return "send"
	case KindExecute:
		return "execute"
	case KindBook:
		return "book"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Witness is one immutable link in a trade's chain. Payload fields are
// populated according to Kind:
//
//	Submit  -> DetailsHash, Requester, Approver, Address
//	Update  -> DetailsHash (the replacement details)
//	Approve -> (actor is the approver)
//	Execute -> Strike
//	Cancel, Send, Book -> no payload
//
// Prev is the content hash of the preceding witness and zero at Seq 0.
type Witness struct {
	TradeID   ident.TradeID
	Seq       uint64
	Prev      codec.Hash
	Timestamp TimeStamp
	Kind      WitnessKind
	Actor     ident.UserID

	DetailsHash codec.Hash
	Requester   ident.UserID
	Approver    ident.UserID
	Address     string
	Strike      *Strike
}

// ValidatePayload checks the kind-specific payload shape. It does not
// look at chain context; that is derivation's job.
func (w *Witness) ValidatePayload() error {
	if w == nil {
		return fmt.Errorf("trade: nil witness")
	}
	if w.TradeID.IsZero() {
		return fmt.Errorf("trade: witness trade_id required")
	}
	if w.Actor.IsZero() {
		return fmt.Errorf("trade: witness actor required")
	}
	if w.Seq == 0 && !w.Prev.IsZero() {
		return fmt.Errorf("trade: first witness must have zero prev hash")
	}
	if w.Seq > 0 && w.Prev.IsZero() {
		return fmt.Errorf("trade: non-first witness requires prev hash")
	}

	switch w.Kind {
	case KindSubmit:
		if w.DetailsHash.IsZero() {
			return fmt.Errorf("trade: submit requires details hash")
		}
		if w.Requester.IsZero() || w.Approver.IsZero() {
			return fmt.Errorf("trade: submit requires requester and approver")
		}
	case KindUpdate:
		if w.DetailsHash.IsZero() {
			return fmt.Errorf("trade: update requires details hash")
		}
	case KindExecute:
		if w.Strike == nil {
			return fmt.Errorf("trade: execute requires strike")
		}
	case KindApprove, KindCancel, KindSend, KindBook:
	default:
		return fmt.Errorf("trade: unknown witness kind %d", w.Kind)
	}
	return nil
}
