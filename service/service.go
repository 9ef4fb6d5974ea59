// Package service coordinates the trade workflow: it validates proposed
// actions against derived chain state, constructs witnesses, and commits
// them atomically. The coordinator is stateless beyond its store handle;
// two coordinators over the same store are interchangeable.
package service

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"fxledger.dev/ledger/codec"
	"fxledger.dev/ledger/ident"
	"fxledger.dev/ledger/store"
	"fxledger.dev/ledger/trade"
)

// Service is the public coordinator.
type Service struct {
	store    *store.Store
	ownStore bool
	log      *logrus.Logger
	retryCap int
	now      func() time.Time
}

// New wraps an already-open store. Logging is discarded until SetLogger
// is called.
func New(st *store.Store, cfg Config) *Service {
	cfg = cfg.withDefaults()
	lg := logrus.New()
	lg.SetOutput(io.Discard)
	return &Service{
		store:    st,
		log:      lg,
		retryCap: cfg.RetryCap,
		now:      time.Now,
	}
}

// Open builds a service from config: bbolt store at cfg.StorePath plus a
// configured logger. Close releases the store.
func Open(cfg Config) (*Service, error) {
	cfg = cfg.withDefaults()
	lg, err := cfg.newLogger()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	s := New(st, cfg)
	s.ownStore = true
	s.log = lg
	return s, nil
}

// SetLogger replaces the service logger.
func (s *Service) SetLogger(lg *logrus.Logger) {
	if lg != nil {
		s.log = lg
	}
}

func (s *Service) Close() error {
	if s == nil || !s.ownStore {
		return nil
	}
	return s.store.Close()
}

// TradeView is the read model: derived phase, the currently referenced
// details, and the chain length.
type TradeView struct {
	TradeID     ident.TradeID
	Phase       trade.Phase
	Details     *trade.TradeDetails
	DetailsHash codec.Hash
	Strike      *trade.Strike
	ChainLength int
	Legal       []trade.Action
}

// Submit opens a new chain: builds and stores the details record, then
// the seq-0 Submit witness, in one batch. The trade id is generated here
// and returned.
func (s *Service) Submit(b *trade.DetailsBuilder, requester, approver ident.UserID, address string) (ident.TradeID, error) {
	details, err := b.Build()
	if err != nil {
		return ident.TradeID{}, err
	}
	if requester.IsZero() || approver.IsZero() {
		return ident.TradeID{}, fmt.Errorf("service: requester and approver required")
	}

	detailsBytes, detailsHash, err := trade.EncodeDetails(details)
	if err != nil {
		return ident.TradeID{}, err
	}

	for attempt := 0; ; attempt++ {
		id, err := ident.NewTradeID()
		if err != nil {
			return ident.TradeID{}, err
		}
		w := &trade.Witness{
			TradeID:     id,
			Seq:         0,
			Timestamp:   trade.TimeStampOf(s.now()),
			Kind:        trade.KindSubmit,
			Actor:       requester,
			DetailsHash: detailsHash,
			Requester:   requester,
			Approver:    approver,
			Address:     address,
		}
		wb, wh, err := trade.EncodeWitness(w)
		if err != nil {
			return ident.TradeID{}, err
		}
		err = s.store.AppendWitness(id, 0, wh,
			store.Object{Hash: detailsHash, Bytes: detailsBytes},
			store.Object{Hash: wh, Bytes: wb},
		)
		if err == nil {
			s.log.WithFields(logrus.Fields{
				"trade_id": id.String(),
				"action":   trade.ActionSubmit.String(),
				"seq":      0,
			}).Info("witness committed")
			return id, nil
		}
		// A v7 id colliding with an existing chain means the id was not
		// fresh; regenerate rather than surface the conflict.
		if errors.Is(err, store.ErrConcurrentAppend) && attempt < s.retryCap {
			s.log.WithField("trade_id", id.String()).Warn("trade id not fresh, regenerating")
			continue
		}
		return ident.TradeID{}, err
	}
}

// Update replaces the current details. Only the original requester may
// update, and only before dispatch; an update after approval sends the
// trade back for re-approval.
func (s *Service) Update(id ident.TradeID, b *trade.DetailsBuilder, editor ident.UserID) error {
	details, err := b.Build()
	if err != nil {
		return err
	}
	detailsBytes, detailsHash, err := trade.EncodeDetails(details)
	if err != nil {
		return err
	}
	return s.append(id, trade.ActionUpdate, editor, func(d *trade.Derivation, w *trade.Witness) ([]store.Object, error) {
		if editor != d.Requester {
			return nil, &trade.AuthorisationFailed{Expected: d.Requester, Actual: editor, Action: trade.ActionUpdate}
		}
		w.Kind = trade.KindUpdate
		w.DetailsHash = detailsHash
		return []store.Object{{Hash: detailsHash, Bytes: detailsBytes}}, nil
	})
}

// Approve records the designated approver's sign-off on the current
// details.
func (s *Service) Approve(id ident.TradeID, approver ident.UserID) error {
	return s.append(id, trade.ActionApprove, approver, func(d *trade.Derivation, w *trade.Witness) ([]store.Object, error) {
		if approver != d.Approver {
			return nil, &trade.AuthorisationFailed{Expected: d.Approver, Actual: approver, Action: trade.ActionApprove}
		}
		w.Kind = trade.KindApprove
		return nil, nil
	})
}

// Cancel terminates the trade from any non-terminal phase.
func (s *Service) Cancel(id ident.TradeID, actor ident.UserID) error {
	return s.append(id, trade.ActionCancel, actor, func(d *trade.Derivation, w *trade.Witness) ([]store.Object, error) {
		w.Kind = trade.KindCancel
		return nil, nil
	})
}

// Send dispatches an approved trade to the counter-party.
func (s *Service) Send(id ident.TradeID, actor ident.UserID) error {
	return s.append(id, trade.ActionSend, actor, func(d *trade.Derivation, w *trade.Witness) ([]store.Object, error) {
		w.Kind = trade.KindSend
		return nil, nil
	})
}

// Execute records the realised strike. The date invariant is re-verified
// against the currently referenced details before the witness is built.
func (s *Service) Execute(id ident.TradeID, actor ident.UserID, strike trade.Strike) error {
	if !strike.Positive() {
		return &trade.InvalidDetails{Code: trade.DETAILS_ERR_STRIKE, Msg: "strike must be positive"}
	}
	return s.append(id, trade.ActionExecute, actor, func(d *trade.Derivation, w *trade.Witness) ([]store.Object, error) {
		current, err := s.loadDetails(d.DetailsHash)
		if err != nil {
			return nil, err
		}
		if err := current.ValidateDates(); err != nil {
			return nil, err
		}
		w.Kind = trade.KindExecute
		w.Strike = &strike
		return nil, nil
	})
}

// Book finalises an executed trade.
func (s *Service) Book(id ident.TradeID, actor ident.UserID) error {
	return s.append(id, trade.ActionBook, actor, func(d *trade.Derivation, w *trade.Witness) ([]store.Object, error) {
		w.Kind = trade.KindBook
		return nil, nil
	})
}

// Read derives the current state and decodes the referenced details.
func (s *Service) Read(id ident.TradeID) (*TradeView, error) {
	_, d, _, err := s.loadChain(id)
	if err != nil {
		return nil, err
	}
	details, err := s.loadDetails(d.DetailsHash)
	if err != nil {
		return nil, err
	}
	return &TradeView{
		TradeID:     id,
		Phase:       d.Phase,
		Details:     details,
		DetailsHash: d.DetailsHash,
		Strike:      d.Strike,
		ChainLength: d.Length,
		Legal:       d.Legal(),
	}, nil
}

// Derive exposes the pure derivation for a stored chain.
func (s *Service) Derive(id ident.TradeID) (*trade.Derivation, error) {
	_, d, _, err := s.loadChain(id)
	return d, err
}

// append implements the shared optimistic-append loop: load, derive,
// check the phase precondition, let build fill in kind and payload, then
// commit witness plus any new objects in one batch. Lost races retry up
// to the cap.
func (s *Service) append(
	id ident.TradeID,
	action trade.Action,
	actor ident.UserID,
	build func(d *trade.Derivation, w *trade.Witness) ([]store.Object, error),
) error {
	if actor.IsZero() {
		return fmt.Errorf("service: actor required")
	}
	for attempt := 0; ; attempt++ {
		ws, d, tipHash, err := s.loadChain(id)
		if err != nil {
			return err
		}
		if !d.Permits(action) {
			return &trade.IllegalTransition{From: d.Phase, Action: action, Index: -1}
		}

		w := &trade.Witness{
			TradeID:   id,
			Seq:       uint64(len(ws)),
			Prev:      tipHash,
			Timestamp: trade.TimeStampOf(s.now()),
			Actor:     actor,
		}
		objs, err := build(d, w)
		if err != nil {
			return err
		}
		wb, wh, err := trade.EncodeWitness(w)
		if err != nil {
			return err
		}
		objs = append(objs, store.Object{Hash: wh, Bytes: wb})

		err = s.store.AppendWitness(id, len(ws), wh, objs...)
		if err == nil {
			s.log.WithFields(logrus.Fields{
				"trade_id": id.String(),
				"action":   action.String(),
				"seq":      w.Seq,
			}).Info("witness committed")
			return nil
		}
		if errors.Is(err, store.ErrConcurrentAppend) && attempt < s.retryCap {
			s.log.WithFields(logrus.Fields{
				"trade_id": id.String(),
				"action":   action.String(),
				"attempt":  attempt + 1,
			}).Warn("concurrent append, retrying")
			continue
		}
		return err
	}
}

// loadChain loads and decodes the full chain, derives state, and returns
// the tip witness hash for prev-linkage of the next append.
func (s *Service) loadChain(id ident.TradeID) ([]*trade.Witness, *trade.Derivation, codec.Hash, error) {
	hashes, err := s.store.LoadChain(id)
	if err != nil {
		return nil, nil, codec.Hash{}, err
	}
	ws := make([]*trade.Witness, 0, len(hashes))
	for i, h := range hashes {
		raw, err := s.store.GetObject(h)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil, codec.Hash{}, &trade.ChainInvalid{Code: trade.CHAIN_ERR_OBJECT, Index: i, Msg: "witness object missing"}
			}
			return nil, nil, codec.Hash{}, err
		}
		w, err := trade.DecodeWitness(raw)
		if err != nil {
			return nil, nil, codec.Hash{}, &trade.ChainInvalid{Code: trade.CHAIN_ERR_DECODE, Index: i, Msg: err.Error()}
		}
		ws = append(ws, w)
	}

	d, err := trade.Derive(ws, trade.ResolverFunc(s.store.HasObject))
	if err != nil {
		return nil, nil, codec.Hash{}, err
	}

	var tip codec.Hash
	if len(hashes) > 0 {
		tip = hashes[len(hashes)-1]
	}
	return ws, d, tip, nil
}

func (s *Service) loadDetails(h codec.Hash) (*trade.TradeDetails, error) {
	raw, err := s.store.GetObject(h)
	if err != nil {
		return nil, err
	}
	return trade.DecodeDetails(raw)
}
