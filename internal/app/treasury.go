package app

import (
	"fmt"
	"strings"

	abci "github.com/cometbft/cometbft/abci/types"

	"prizevault/chain/internal/codec"
	"prizevault/chain/internal/state"
)

// Module accounts. Engine escrow is held separately from the treasury so that
// unfulfilled purchases and open raffles/auctions stay refundable.
const (
	treasuryAccount      = "pv/treasury"
	vendEscrowAccount    = "pv/vend/escrow"
	raffleEscrowAccount  = "pv/raffle/escrow"
	auctionEscrowAccount = "pv/auction/escrow"
)

func validDenom(denom string) error {
	if denom == "" || strings.ContainsAny(denom, " \t\n") {
		return fmt.Errorf("invalid denom %q", denom)
	}
	return nil
}

// creditTreasury moves amount into treasury custody and bumps the deposit
// audit counter. Used by deposits and by engine revenue paths.
func creditTreasury(st *state.State, from, asset string, amount uint64) error {
	if err := st.Transfer(from, treasuryAccount, asset, amount); err != nil {
		return err
	}
	total, err := addUint64Checked(st.Treasury.DepositedPerAsset[asset], amount, "depositedPerAsset")
	if err != nil {
		return err
	}
	st.Treasury.DepositedPerAsset[asset] = total
	return nil
}

func applyTreasuryDeposit(st *state.State, msg codec.TreasuryDepositTx) (*abci.ExecTxResult, error) {
	if msg.From == "" {
		return nil, fmt.Errorf("missing from")
	}
	if err := validDenom(msg.Asset); err != nil {
		return nil, err
	}
	if msg.Amount == 0 {
		return nil, fmt.Errorf("amount must be > 0")
	}
	if err := creditTreasury(st, msg.From, msg.Asset, msg.Amount); err != nil {
		return nil, err
	}
	return okEvent(EventTypeFundsDeposited, map[string]string{
		"from":   msg.From,
		"asset":  msg.Asset,
		"amount": fmt.Sprintf("%d", msg.Amount),
	}), nil
}

func applyTreasuryBatchDeposit(st *state.State, msg codec.TreasuryBatchDepositTx) (*abci.ExecTxResult, error) {
	if msg.From == "" {
		return nil, fmt.Errorf("missing from")
	}
	if len(msg.Assets) == 0 {
		return nil, fmt.Errorf("empty assets")
	}
	if len(msg.Assets) != len(msg.Amounts) {
		return nil, ErrLengthMismatch.Wrapf("assets=%d amounts=%d", len(msg.Assets), len(msg.Amounts))
	}
	res := &abci.ExecTxResult{Code: 0}
	for i, asset := range msg.Assets {
		if err := validDenom(asset); err != nil {
			return nil, err
		}
		if msg.Amounts[i] == 0 {
			return nil, fmt.Errorf("amount must be > 0 (asset %q)", asset)
		}
		if err := creditTreasury(st, msg.From, asset, msg.Amounts[i]); err != nil {
			return nil, err
		}
		res.Events = append(res.Events, event(EventTypeFundsDeposited, map[string]string{
			"from":   msg.From,
			"asset":  asset,
			"amount": fmt.Sprintf("%d", msg.Amounts[i]),
		}))
	}
	return res, nil
}

// applyTreasuryFund disburses custody funds to a destination on behalf of an
// allow-listed caller. All-or-nothing: every asset's balance is verified
// before any is moved.
func applyTreasuryFund(st *state.State, msg codec.TreasuryFundTx) (*abci.ExecTxResult, error) {
	if !st.Treasury.Funders[msg.Caller] {
		return nil, ErrFunderNotAllowed.Wrapf("caller=%q", msg.Caller)
	}
	if msg.Destination == "" {
		return nil, fmt.Errorf("missing destination")
	}
	if len(msg.Assets) == 0 {
		return nil, fmt.Errorf("empty assets")
	}
	if len(msg.Assets) != len(msg.Amounts) {
		return nil, ErrLengthMismatch.Wrapf("assets=%d amounts=%d", len(msg.Assets), len(msg.Amounts))
	}
	for i, asset := range msg.Assets {
		if err := validDenom(asset); err != nil {
			return nil, err
		}
		if msg.Amounts[i] == 0 {
			return nil, fmt.Errorf("amount must be > 0 (asset %q)", asset)
		}
		if have := st.Balance(treasuryAccount, asset); have < msg.Amounts[i] {
			return nil, ErrTreasuryShort.Wrapf("asset=%s have=%d need=%d", asset, have, msg.Amounts[i])
		}
	}

	res := &abci.ExecTxResult{Code: 0}
	for i, asset := range msg.Assets {
		if err := st.Transfer(treasuryAccount, msg.Destination, asset, msg.Amounts[i]); err != nil {
			return nil, err
		}
		if err := bumpFundedCounters(st, msg.Destination, asset, msg.Amounts[i]); err != nil {
			return nil, err
		}
		res.Events = append(res.Events, event(EventTypeFundingCompleted, map[string]string{
			"caller":        msg.Caller,
			"destination":   msg.Destination,
			"asset":         asset,
			"amount":        fmt.Sprintf("%d", msg.Amounts[i]),
			"correlationId": msg.CorrelationID,
		}))
	}
	return res, nil
}

func bumpFundedCounters(st *state.State, dest, asset string, amount uint64) error {
	total, err := addUint64Checked(st.Treasury.FundedPerAsset[asset], amount, "fundedPerAsset")
	if err != nil {
		return err
	}
	st.Treasury.FundedPerAsset[asset] = total

	perDest := st.Treasury.FundedPerDest[dest]
	if perDest == nil {
		perDest = map[string]uint64{}
		st.Treasury.FundedPerDest[dest] = perDest
	}
	destTotal, err := addUint64Checked(perDest[asset], amount, "fundedPerDest")
	if err != nil {
		return err
	}
	perDest[asset] = destTotal
	return nil
}

func applyTreasurySetFunder(st *state.State, msg codec.TreasurySetFunderTx) (*abci.ExecTxResult, error) {
	if msg.Addr == "" {
		return nil, fmt.Errorf("missing addr")
	}
	if msg.Allowed {
		st.Treasury.Funders[msg.Addr] = true
	} else {
		delete(st.Treasury.Funders, msg.Addr)
	}
	return okEvent("FunderUpdated", map[string]string{
		"addr":    msg.Addr,
		"allowed": fmt.Sprintf("%t", msg.Allowed),
	}), nil
}

func applyTreasuryWithdraw(st *state.State, msg codec.TreasuryWithdrawTx) (*abci.ExecTxResult, error) {
	if msg.To == "" {
		return nil, fmt.Errorf("missing to")
	}
	if err := validDenom(msg.Asset); err != nil {
		return nil, err
	}
	if msg.Amount == 0 {
		return nil, fmt.Errorf("amount must be > 0")
	}
	if err := st.Transfer(treasuryAccount, msg.To, msg.Asset, msg.Amount); err != nil {
		return nil, err
	}
	if err := bumpFundedCounters(st, msg.To, msg.Asset, msg.Amount); err != nil {
		return nil, err
	}
	return okEvent(EventTypeFundsWithdrawn, map[string]string{
		"to":     msg.To,
		"asset":  msg.Asset,
		"amount": fmt.Sprintf("%d", msg.Amount),
	}), nil
}

func applyTreasuryEmergencyWithdrawAll(st *state.State, msg codec.TreasuryEmergencyWithdrawAllTx) (*abci.ExecTxResult, error) {
	if msg.To == "" {
		return nil, fmt.Errorf("missing to")
	}
	if err := validDenom(msg.Asset); err != nil {
		return nil, err
	}
	amount := st.Balance(treasuryAccount, msg.Asset)
	if amount == 0 {
		return nil, fmt.Errorf("treasury holds no %s", msg.Asset)
	}
	if err := st.Transfer(treasuryAccount, msg.To, msg.Asset, amount); err != nil {
		return nil, err
	}
	if err := bumpFundedCounters(st, msg.To, msg.Asset, amount); err != nil {
		return nil, err
	}
	return okEvent(EventTypeFundsWithdrawn, map[string]string{
		"to":        msg.To,
		"asset":     msg.Asset,
		"amount":    fmt.Sprintf("%d", amount),
		"emergency": "true",
	}), nil
}
