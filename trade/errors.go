package trade

import (
	"fmt"
	"strings"

	"fxledger.dev/ledger/ident"
)

type ErrorCode string

const (
	DETAILS_ERR_MISSING       ErrorCode = "DETAILS_ERR_MISSING"
	DETAILS_ERR_DATE_ORDER    ErrorCode = "DETAILS_ERR_DATE_ORDER"
	DETAILS_ERR_SAME_CURRENCY ErrorCode = "DETAILS_ERR_SAME_CURRENCY"
	DETAILS_ERR_AMOUNT        ErrorCode = "DETAILS_ERR_AMOUNT"
	DETAILS_ERR_CURRENCY      ErrorCode = "DETAILS_ERR_CURRENCY"
	DETAILS_ERR_STRIKE        ErrorCode = "DETAILS_ERR_STRIKE"

	CHAIN_ERR_EMPTY        ErrorCode = "CHAIN_ERR_EMPTY"
	CHAIN_ERR_FIRST_KIND   ErrorCode = "CHAIN_ERR_FIRST_KIND"
	CHAIN_ERR_SEQ          ErrorCode = "CHAIN_ERR_SEQ"
	CHAIN_ERR_LINKAGE      ErrorCode = "CHAIN_ERR_LINKAGE"
	CHAIN_ERR_TRADE_ID     ErrorCode = "CHAIN_ERR_TRADE_ID"
	CHAIN_ERR_DETAILS_HASH ErrorCode = "CHAIN_ERR_DETAILS_HASH"
	CHAIN_ERR_PAYLOAD      ErrorCode = "CHAIN_ERR_PAYLOAD"
	CHAIN_ERR_DECODE       ErrorCode = "CHAIN_ERR_DECODE"
	CHAIN_ERR_OBJECT       ErrorCode = "CHAIN_ERR_OBJECT"
)

// InvalidDetails reports why trade details were rejected. Missing lists
// every unset builder field when Code is DETAILS_ERR_MISSING.
type InvalidDetails struct {
	Code    ErrorCode
	Missing []string
	Msg     string
}

func (e *InvalidDetails) Error() string {
	if e == nil {
		return "<nil>"
	}
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %s", e.Code, strings.Join(e.Missing, ", "))
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func detailserr(code ErrorCode, msg string) error {
	return &InvalidDetails{Code: code, Msg: msg}
}

// IllegalTransition reports an action attempted from a phase that does
// not permit it. Index is the chain position of the offending witness
// when derivation found it, or -1 when an operation was refused before
// any witness was written.
type IllegalTransition struct {
	From   Phase
	Action Action
	Index  int
}

func (e *IllegalTransition) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Index >= 0 {
		return fmt.Sprintf("illegal transition at index %d: %s from %s", e.Index, e.Action, e.From)
	}
	return fmt.Sprintf("illegal transition: %s from %s", e.Action, e.From)
}

// AuthorisationFailed reports the wrong actor for update or approve.
type AuthorisationFailed struct {
	Expected ident.UserID
	Actual   ident.UserID
	Action   Action
}

func (e *AuthorisationFailed) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("authorisation failed for %s: expected %s, got %s", e.Action, e.Expected, e.Actual)
}

// ChainInvalid reports an integrity failure at a chain index.
type ChainInvalid struct {
	Code  ErrorCode
	Index int
	Msg   string
}

func (e *ChainInvalid) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s at index %d", e.Code, e.Index)
	}
	return fmt.Sprintf("%s at index %d: %s", e.Code, e.Index, e.Msg)
}

func chainerr(code ErrorCode, index int, msg string) error {
	return &ChainInvalid{Code: code, Index: index, Msg: msg}
}
