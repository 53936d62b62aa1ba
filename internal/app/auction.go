package app

import (
	"fmt"
	"sort"

	abci "github.com/cometbft/cometbft/abci/types"

	"prizevault/chain/internal/codec"
	"prizevault/chain/internal/state"
)

// currentAuction returns the open window, lazily starting the first one.
func currentAuction(st *state.State, nowUnix int64) (*state.Auction, error) {
	if st.CurrentAuctionID != 0 {
		if a := st.Auctions[st.CurrentAuctionID]; a != nil {
			return a, nil
		}
	}
	return openNextAuction(st, nowUnix)
}

func openNextAuction(st *state.State, nowUnix int64) (*state.Auction, error) {
	endTime, err := addInt64AndU64Checked(nowUnix, st.Params.AuctionDurationSecs, "auction end time")
	if err != nil {
		return nil, err
	}
	id := st.NextAuctionID
	st.NextAuctionID++
	a := &state.Auction{
		ID:        id,
		StartTime: nowUnix,
		EndTime:   endTime,
		SlotCount: st.Params.AuctionSlotCount,
		MinBid:    st.Params.AuctionMinBid,
	}
	st.Auctions[id] = a
	st.CurrentAuctionID = id
	return a, nil
}

func applyAuctionBid(st *state.State, msg codec.AuctionBidTx, nowUnix int64) (*abci.ExecTxResult, error) {
	if msg.Bidder == "" {
		return nil, fmt.Errorf("missing bidder")
	}
	if msg.Item == "" {
		return nil, fmt.Errorf("missing item")
	}
	a, err := currentAuction(st, nowUnix)
	if err != nil {
		return nil, err
	}
	if a.Finalized || nowUnix >= a.EndTime {
		return nil, ErrAuctionClosed.Wrapf("auctionId=%d", a.ID)
	}
	if msg.Amount < a.MinBid {
		return nil, ErrBidTooLow.Wrapf("amount=%d min=%d", msg.Amount, a.MinBid)
	}

	denom := st.Params.PayDenom
	if i := a.FindBid(msg.Bidder); i >= 0 {
		// Raise in place: escrow only the delta, never a second entry.
		cur := a.Bids[i].Amount
		if msg.Amount <= cur {
			return nil, ErrBidNotRaised.Wrapf("amount=%d current=%d", msg.Amount, cur)
		}
		delta := msg.Amount - cur
		if err := st.Transfer(msg.Bidder, auctionEscrowAccount, denom, delta); err != nil {
			return nil, err
		}
		a.Bids[i].Amount = msg.Amount
		a.Bids[i].Item = msg.Item
		return okEvent(EventTypeBidRaised, map[string]string{
			"auctionId": fmt.Sprintf("%d", a.ID),
			"bidder":    msg.Bidder,
			"item":      msg.Item,
			"amount":    fmt.Sprintf("%d", msg.Amount),
			"delta":     fmt.Sprintf("%d", delta),
		}), nil
	}

	if err := st.Transfer(msg.Bidder, auctionEscrowAccount, denom, msg.Amount); err != nil {
		return nil, err
	}
	a.Bids = append(a.Bids, state.Bid{Bidder: msg.Bidder, Item: msg.Item, Amount: msg.Amount})
	return okEvent(EventTypeBidPlaced, map[string]string{
		"auctionId": fmt.Sprintf("%d", a.ID),
		"bidder":    msg.Bidder,
		"item":      msg.Item,
		"amount":    fmt.Sprintf("%d", msg.Amount),
	}), nil
}

// applyAuctionFinalize settles the elapsed window: ranks bids descending by
// amount (arrival order breaks ties), pays the top slotCount into the
// treasury, sponsors their items for the next window, and refunds the rest.
// Any transfer failure aborts the whole call; deliverTx runs it on a staged
// state clone, so a failed finalize leaves everything retryable.
func applyAuctionFinalize(st *state.State, nowUnix int64) (*abci.ExecTxResult, error) {
	a, err := currentAuction(st, nowUnix)
	if err != nil {
		return nil, err
	}
	if a.Finalized {
		return nil, ErrAuctionFinalized.Wrapf("auctionId=%d", a.ID)
	}
	if nowUnix < a.EndTime {
		return nil, ErrAuctionNotExpired.Wrapf("auctionId=%d endTime=%d now=%d", a.ID, a.EndTime, nowUnix)
	}

	// Stable: equal amounts keep arrival order, so the earlier bid ranks higher.
	ranked := make([]state.Bid, len(a.Bids))
	copy(ranked, a.Bids)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Amount > ranked[j].Amount })

	slots := int(a.SlotCount)
	if slots > len(ranked) {
		slots = len(ranked)
	}
	winners := ranked[:slots]
	losers := ranked[slots:]

	a.Finalized = true
	a.Winners = append([]state.Bid(nil), winners...)

	// Sponsorship does not accumulate across cycles: clear the previous
	// window's marks before applying this one's.
	st.Sponsored = map[string]int64{}
	sponsorUntil, err := addInt64AndU64Checked(nowUnix, st.Params.AuctionDurationSecs, "sponsor expiry")
	if err != nil {
		return nil, err
	}

	denom := st.Params.PayDenom
	res := okEvent(EventTypeAuctionFinalized, map[string]string{
		"auctionId": fmt.Sprintf("%d", a.ID),
		"bids":      fmt.Sprintf("%d", len(a.Bids)),
		"winners":   fmt.Sprintf("%d", len(winners)),
	})
	for _, w := range winners {
		if err := creditTreasury(st, auctionEscrowAccount, denom, w.Amount); err != nil {
			return nil, err
		}
		st.Sponsored[w.Item] = sponsorUntil
		res.Events = append(res.Events, event(EventTypeSponsorGranted, map[string]string{
			"auctionId": fmt.Sprintf("%d", a.ID),
			"bidder":    w.Bidder,
			"item":      w.Item,
			"amount":    fmt.Sprintf("%d", w.Amount),
			"until":     fmt.Sprintf("%d", sponsorUntil),
		}))
	}
	for _, l := range losers {
		if err := st.Transfer(auctionEscrowAccount, l.Bidder, denom, l.Amount); err != nil {
			return nil, err
		}
		res.Events = append(res.Events, event(EventTypeBidRefunded, map[string]string{
			"auctionId": fmt.Sprintf("%d", a.ID),
			"bidder":    l.Bidder,
			"item":      l.Item,
			"amount":    fmt.Sprintf("%d", l.Amount),
		}))
	}

	// Escrow records cleared; a new window opens immediately.
	a.Bids = nil
	next, err := openNextAuction(st, nowUnix)
	if err != nil {
		return nil, err
	}
	res.Events = append(res.Events, event(EventTypeAuctionOpened, map[string]string{
		"auctionId": fmt.Sprintf("%d", next.ID),
		"endTime":   fmt.Sprintf("%d", next.EndTime),
	}))
	return res, nil
}
