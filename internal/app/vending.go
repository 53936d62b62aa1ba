package app

import (
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"

	"prizevault/chain/internal/codec"
	"prizevault/chain/internal/state"
)

// Word count requested per purchase; the payout derivation only consumes the
// first word.
const vendWordCount uint32 = 1

func applyVendPurchase(st *state.State, msg codec.VendPurchaseTx, nowUnix int64) (*abci.ExecTxResult, error) {
	if msg.Buyer == "" {
		return nil, fmt.Errorf("missing buyer")
	}
	if st.VendingPaused {
		return nil, ErrVendingPaused
	}
	if int(msg.TierID) >= len(st.Tiers) {
		return nil, ErrTierNotFound.Wrapf("tierId=%d", msg.TierID)
	}
	tier := st.Tiers[msg.TierID]
	if !tier.Active {
		return nil, ErrTierInactive.Wrapf("tierId=%d", msg.TierID)
	}

	// Escrow the price with the engine; it moves to the treasury only on
	// fulfillment, so a timed-out purchase stays refundable.
	if err := st.Transfer(msg.Buyer, vendEscrowAccount, st.Params.PayDenom, tier.Price); err != nil {
		return nil, err
	}

	requestID, err := brokerRequest(st, requesterVend, vendWordCount, nowUnix)
	if err != nil {
		return nil, err
	}

	st.Purchases[requestID] = &state.Purchase{
		RequestID:  requestID,
		Buyer:      msg.Buyer,
		TierID:     msg.TierID,
		AmountPaid: tier.Price,
		CreatedAt:  nowUnix,
		Fulfilled:  false,
	}
	st.PurchaseCounts[msg.Buyer] = st.PurchaseCounts[msg.Buyer] + 1
	st.TotalPurchases++

	res := okEvent(EventTypePurchaseInitiated, map[string]string{
		"requestId": fmt.Sprintf("%d", requestID),
		"buyer":     msg.Buyer,
		"tierId":    fmt.Sprintf("%d", msg.TierID),
		"price":     fmt.Sprintf("%d", tier.Price),
	})
	res.Events = append(res.Events, event(EventTypeRandomnessRequested, map[string]string{
		"requestId": fmt.Sprintf("%d", requestID),
		"requester": requesterVend,
		"wordCount": fmt.Sprintf("%d", vendWordCount),
	}))
	return res, nil
}

// vendOnRandomness is the fulfillment continuation for a purchase. It runs
// once per request id: the fulfilled flag is checked and set before funds
// move, so replays and the emergency paths observe the already-settled state.
func vendOnRandomness(st *state.State, requestID uint64, values []uint64, emergency bool) ([]abci.Event, error) {
	p := st.Purchases[requestID]
	if p == nil {
		return nil, ErrRequestNotFound.Wrapf("no purchase for requestId=%d", requestID)
	}
	if p.Fulfilled {
		return nil, ErrPurchaseDone.Wrapf("requestId=%d", requestID)
	}
	if len(values) == 0 {
		return nil, ErrBadWordCount.Wrap("empty values")
	}
	if int(p.TierID) >= len(st.Tiers) {
		return nil, ErrTierNotFound.Wrapf("tierId=%d", p.TierID)
	}
	tier := st.Tiers[p.TierID]
	if tier.MinValue >= tier.MaxValue {
		return nil, ErrTierInvalid.Wrapf("tierId=%d min=%d max=%d", p.TierID, tier.MinValue, tier.MaxValue)
	}

	// Uniform map of the oracle word into [minValue, maxValue].
	span := tier.MaxValue - tier.MinValue + 1
	var payout uint64
	if span == 0 {
		// min=0, max=MaxUint64: the word already covers the whole range.
		payout = values[0]
	} else {
		payout = tier.MinValue + values[0]%span
	}

	p.Fulfilled = true
	p.Emergency = emergency
	p.PayoutSeed = append([]uint64(nil), values...)
	p.PayoutValue = payout

	// Escrowed price becomes platform revenue; the payout itself is funded by
	// the external distribution service via treasury/fund using the request id
	// as correlation id.
	if err := creditTreasury(st, vendEscrowAccount, st.Params.PayDenom, p.AmountPaid); err != nil {
		return nil, err
	}

	return []abci.Event{event(EventTypePayoutReady, map[string]string{
		"requestId":   fmt.Sprintf("%d", requestID),
		"buyer":       p.Buyer,
		"tierId":      fmt.Sprintf("%d", p.TierID),
		"payoutValue": fmt.Sprintf("%d", payout),
		"emergency":   fmt.Sprintf("%t", emergency),
	})}, nil
}

// applyVendEmergencyFulfill unblocks a stuck purchase with an admin-supplied
// substitute seed, through the same code path as the oracle callback.
func applyVendEmergencyFulfill(st *state.State, msg codec.VendEmergencyFulfillTx, nowUnix int64) (*abci.ExecTxResult, error) {
	if err := requireRequestTimedOut(st, msg.RequestID, nowUnix); err != nil {
		return nil, err
	}
	events, err := vendOnRandomness(st, msg.RequestID, []uint64{msg.Seed}, true)
	if err != nil {
		return nil, err
	}
	st.Requests[msg.RequestID].Fulfilled = true
	res := &abci.ExecTxResult{Code: 0, Events: events}
	return res, nil
}

// applyVendEmergencyRefund returns the escrowed payment outright. One-shot and
// mutually exclusive with fulfillment via the same fulfilled flag.
func applyVendEmergencyRefund(st *state.State, msg codec.VendEmergencyRefundTx, nowUnix int64) (*abci.ExecTxResult, error) {
	if err := requireRequestTimedOut(st, msg.RequestID, nowUnix); err != nil {
		return nil, err
	}
	p := st.Purchases[msg.RequestID]
	if p == nil {
		return nil, ErrRequestNotFound.Wrapf("no purchase for requestId=%d", msg.RequestID)
	}
	if p.Fulfilled {
		return nil, ErrPurchaseDone.Wrapf("requestId=%d", msg.RequestID)
	}

	p.Fulfilled = true
	p.Refunded = true
	p.Emergency = true
	st.Requests[msg.RequestID].Fulfilled = true

	if err := st.Transfer(vendEscrowAccount, p.Buyer, st.Params.PayDenom, p.AmountPaid); err != nil {
		return nil, err
	}

	return okEvent(EventTypePurchaseRefunded, map[string]string{
		"requestId": fmt.Sprintf("%d", msg.RequestID),
		"buyer":     p.Buyer,
		"amount":    fmt.Sprintf("%d", p.AmountPaid),
	}), nil
}

func applyVendSetTier(st *state.State, msg codec.VendSetTierTx) (*abci.ExecTxResult, error) {
	if msg.Price == 0 {
		return nil, ErrTierInvalid.Wrap("price must be > 0")
	}
	if msg.MinValue >= msg.MaxValue {
		return nil, ErrTierInvalid.Wrapf("minValue=%d must be < maxValue=%d", msg.MinValue, msg.MaxValue)
	}
	tier := state.Tier{
		Price:    msg.Price,
		MinValue: msg.MinValue,
		MaxValue: msg.MaxValue,
		Active:   msg.Active,
	}
	switch {
	case int(msg.TierID) < len(st.Tiers):
		st.Tiers[msg.TierID] = tier
	case int(msg.TierID) == len(st.Tiers):
		st.Tiers = append(st.Tiers, tier)
	default:
		return nil, ErrTierNotFound.Wrapf("tierId=%d beyond append position %d", msg.TierID, len(st.Tiers))
	}
	return okEvent(EventTypeTierUpdated, map[string]string{
		"tierId":   fmt.Sprintf("%d", msg.TierID),
		"price":    fmt.Sprintf("%d", msg.Price),
		"minValue": fmt.Sprintf("%d", msg.MinValue),
		"maxValue": fmt.Sprintf("%d", msg.MaxValue),
		"active":   fmt.Sprintf("%t", msg.Active),
	}), nil
}

// Pausing blocks only new purchases; fulfillment and the emergency paths keep
// working so no escrow is ever stranded behind a pause.
func applyVendPause(st *state.State, paused bool) (*abci.ExecTxResult, error) {
	st.VendingPaused = paused
	return okEvent(EventTypeVendingPaused, map[string]string{
		"paused": fmt.Sprintf("%t", paused),
	}), nil
}
