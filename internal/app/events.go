package app

import (
	"sort"

	abci "github.com/cometbft/cometbft/abci/types"
)

// Event types. The external notification layer consumes these; emit once,
// with complete data, per state transition.
const (
	EventTypeRandomnessRequested     = "RandomnessRequested"
	EventTypeRandomnessFulfilled     = "RandomnessFulfilled"
	EventTypeRandomnessDispatchError = "RandomnessDispatchError"

	EventTypePurchaseInitiated = "PurchaseInitiated"
	EventTypePayoutReady       = "PayoutReady"
	EventTypePurchaseRefunded  = "PurchaseRefunded"
	EventTypeTierUpdated       = "TierUpdated"
	EventTypeVendingPaused     = "VendingPaused"

	EventTypeRaffleCreated    = "RaffleCreated"
	EventTypeTicketsPurchased = "TicketsPurchased"
	EventTypeRaffleFilled     = "RaffleFilled"
	EventTypeWinnerSelected   = "WinnerSelected"
	EventTypeRaffleCancelled  = "RaffleCancelled"
	EventTypeTicketsRefunded  = "TicketsRefunded"

	EventTypeBidPlaced        = "BidPlaced"
	EventTypeBidRaised        = "BidRaised"
	EventTypeAuctionFinalized = "AuctionFinalized"
	EventTypeSponsorGranted   = "SponsorGranted"
	EventTypeBidRefunded      = "BidRefunded"
	EventTypeAuctionOpened    = "AuctionOpened"

	EventTypeFundsDeposited   = "FundsDeposited"
	EventTypeFundingCompleted = "FundingCompleted"
	EventTypeFundsWithdrawn   = "FundsWithdrawn"

	EventTypeBankMinted = "BankMinted"
	EventTypeBankSent   = "BankSent"
)

func event(typ string, attrs map[string]string) abci.Event {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return ev
}

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	return &abci.ExecTxResult{
		Code:   0,
		Events: []abci.Event{event(typ, attrs)},
	}
}
