package app

import (
	"fmt"
	"math/bits"

	abci "github.com/cometbft/cometbft/abci/types"

	"prizevault/chain/internal/codec"
	"prizevault/chain/internal/state"
)

const raffleWordCount uint32 = 1

func applyRaffleCreate(st *state.State, msg codec.RaffleCreateTx, nowUnix int64) (*abci.ExecTxResult, error) {
	if msg.Creator == "" {
		return nil, fmt.Errorf("missing creator")
	}
	if msg.TicketPrice == 0 {
		return nil, ErrRaffleInvalid.Wrap("ticketPrice must be > 0")
	}
	if msg.MinTickets == 0 || msg.MinTickets > msg.MaxTickets {
		return nil, ErrRaffleInvalid.Wrapf("need 0 < minTickets(%d) <= maxTickets(%d)", msg.MinTickets, msg.MaxTickets)
	}
	if msg.DurationSecs < st.Params.MinRaffleDurationSecs || msg.DurationSecs > st.Params.MaxRaffleDurationSecs {
		return nil, ErrRaffleInvalid.Wrapf("durationSecs=%d outside [%d,%d]",
			msg.DurationSecs, st.Params.MinRaffleDurationSecs, st.Params.MaxRaffleDurationSecs)
	}
	asset := msg.Asset
	if asset == "" {
		asset = st.Params.PayDenom
	}
	if err := validDenom(asset); err != nil {
		return nil, err
	}
	maxPerUser := msg.MaxPerUser
	if maxPerUser == 0 {
		maxPerUser = st.Params.DefaultMaxTicketsPerUser
	}
	endTime, err := addInt64AndU64Checked(nowUnix, msg.DurationSecs, "raffle end time")
	if err != nil {
		return nil, err
	}

	id := st.NextRaffleID
	st.NextRaffleID++
	st.Raffles[id] = &state.Raffle{
		ID:          id,
		Creator:     msg.Creator,
		Asset:       asset,
		TicketPrice: msg.TicketPrice,
		MaxTickets:  msg.MaxTickets,
		MinTickets:  msg.MinTickets,
		MaxPerUser:  maxPerUser,
		Status:      state.RaffleOpen,
		StartTime:   nowUnix,
		EndTime:     endTime,
	}

	return okEvent(EventTypeRaffleCreated, map[string]string{
		"raffleId":    fmt.Sprintf("%d", id),
		"creator":     msg.Creator,
		"asset":       asset,
		"ticketPrice": fmt.Sprintf("%d", msg.TicketPrice),
		"maxTickets":  fmt.Sprintf("%d", msg.MaxTickets),
		"minTickets":  fmt.Sprintf("%d", msg.MinTickets),
		"endTime":     fmt.Sprintf("%d", endTime),
	}), nil
}

func applyRaffleBuy(st *state.State, msg codec.RaffleBuyTx, nowUnix int64) (*abci.ExecTxResult, error) {
	if msg.Buyer == "" {
		return nil, fmt.Errorf("missing buyer")
	}
	if msg.Count == 0 {
		return nil, ErrRaffleInvalid.Wrap("count must be > 0")
	}
	r := st.Raffles[msg.RaffleID]
	if r == nil {
		return nil, ErrRaffleNotFound.Wrapf("raffleId=%d", msg.RaffleID)
	}
	if r.Status != state.RaffleOpen {
		return nil, ErrRaffleNotOpen.Wrapf("raffleId=%d status=%s", r.ID, r.Status)
	}
	if nowUnix >= r.EndTime {
		return nil, ErrRaffleExpired.Wrapf("raffleId=%d", r.ID)
	}
	owned := r.TicketCount(msg.Buyer)
	if owned+msg.Count < owned || owned+msg.Count > r.MaxPerUser {
		return nil, ErrTicketCap.Wrapf("owned=%d count=%d cap=%d", owned, msg.Count, r.MaxPerUser)
	}
	if msg.Count > r.MaxTickets-r.TicketsSold {
		return nil, ErrTicketCapacity.Wrapf("count=%d remaining=%d", msg.Count, r.MaxTickets-r.TicketsSold)
	}

	cost, err := mulUint64Checked(uint64(msg.Count), r.TicketPrice, "ticket cost")
	if err != nil {
		return nil, err
	}
	if err := st.Transfer(msg.Buyer, raffleEscrowAccount, r.Asset, cost); err != nil {
		return nil, err
	}

	for i := uint32(0); i < msg.Count; i++ {
		r.Tickets = append(r.Tickets, msg.Buyer)
	}
	r.TicketsSold += msg.Count
	pool, err := addUint64Checked(r.Pool, cost, "raffle pool")
	if err != nil {
		return nil, err
	}
	r.Pool = pool

	res := okEvent(EventTypeTicketsPurchased, map[string]string{
		"raffleId": fmt.Sprintf("%d", r.ID),
		"buyer":    msg.Buyer,
		"count":    fmt.Sprintf("%d", msg.Count),
		"sold":     fmt.Sprintf("%d", r.TicketsSold),
		"pool":     fmt.Sprintf("%d", r.Pool),
	})

	if r.TicketsSold == r.MaxTickets {
		events, err := raffleRequestDraw(st, r, nowUnix)
		if err != nil {
			return nil, err
		}
		res.Events = append(res.Events, events...)
	}
	return res, nil
}

// raffleRequestDraw transitions an open raffle to filled and opens the
// randomness request for winner selection.
func raffleRequestDraw(st *state.State, r *state.Raffle, nowUnix int64) ([]abci.Event, error) {
	requestID, err := brokerRequest(st, requesterRaffle, raffleWordCount, nowUnix)
	if err != nil {
		return nil, err
	}
	r.Status = state.RaffleFilled
	r.RequestID = requestID
	r.DrawRequestedAt = nowUnix
	if st.RaffleByRequest == nil {
		st.RaffleByRequest = map[uint64]uint64{}
	}
	st.RaffleByRequest[requestID] = r.ID

	return []abci.Event{
		event(EventTypeRaffleFilled, map[string]string{
			"raffleId":  fmt.Sprintf("%d", r.ID),
			"sold":      fmt.Sprintf("%d", r.TicketsSold),
			"pool":      fmt.Sprintf("%d", r.Pool),
			"requestId": fmt.Sprintf("%d", requestID),
		}),
		event(EventTypeRandomnessRequested, map[string]string{
			"requestId": fmt.Sprintf("%d", requestID),
			"requester": requesterRaffle,
			"wordCount": fmt.Sprintf("%d", raffleWordCount),
		}),
	}, nil
}

// applyRaffleFinalize is callable by the creator at any time and by anyone
// once the raffle has expired.
func applyRaffleFinalize(st *state.State, msg codec.RaffleFinalizeTx, nowUnix int64) (*abci.ExecTxResult, error) {
	r := st.Raffles[msg.RaffleID]
	if r == nil {
		return nil, ErrRaffleNotFound.Wrapf("raffleId=%d", msg.RaffleID)
	}
	if r.Status != state.RaffleOpen {
		return nil, ErrRaffleNotOpen.Wrapf("raffleId=%d status=%s", r.ID, r.Status)
	}
	expired := nowUnix >= r.EndTime
	if !expired && msg.Caller != r.Creator {
		return nil, ErrNotFinalizable.Wrapf("caller=%q is not the creator and raffle is unexpired", msg.Caller)
	}

	if r.TicketsSold < r.MinTickets {
		return raffleCancel(st, r, "below minimum")
	}

	events, err := raffleRequestDraw(st, r, nowUnix)
	if err != nil {
		return nil, err
	}
	return &abci.ExecTxResult{Code: 0, Events: events}, nil
}

// raffleCancel refunds each unique participant their exact contribution, once
// per participant, computed from their ticket count.
func raffleCancel(st *state.State, r *state.Raffle, reason string) (*abci.ExecTxResult, error) {
	res := okEvent(EventTypeRaffleCancelled, map[string]string{
		"raffleId": fmt.Sprintf("%d", r.ID),
		"reason":   reason,
	})
	for _, addr := range r.Participants() {
		owned := r.TicketCount(addr)
		refund, err := mulUint64Checked(uint64(owned), r.TicketPrice, "ticket refund")
		if err != nil {
			return nil, err
		}
		if err := st.Transfer(raffleEscrowAccount, addr, r.Asset, refund); err != nil {
			return nil, err
		}
		res.Events = append(res.Events, event(EventTypeTicketsRefunded, map[string]string{
			"raffleId": fmt.Sprintf("%d", r.ID),
			"buyer":    addr,
			"count":    fmt.Sprintf("%d", owned),
			"amount":   fmt.Sprintf("%d", refund),
		}))
	}
	r.Status = state.RaffleCancelled
	r.Pool = 0
	return res, nil
}

// raffleOnRandomness is the draw continuation: picks the winning ticket and
// settles the pool. Guarded by the terminal status check so a replayed
// fulfillment can never pay twice.
func raffleOnRandomness(st *state.State, requestID uint64, values []uint64, emergency bool) ([]abci.Event, error) {
	raffleID, ok := st.RaffleByRequest[requestID]
	if !ok {
		return nil, ErrRequestNotFound.Wrapf("no raffle for requestId=%d", requestID)
	}
	r := st.Raffles[raffleID]
	if r == nil {
		return nil, ErrRaffleNotFound.Wrapf("raffleId=%d", raffleID)
	}
	if r.Status != state.RaffleFilled {
		return nil, ErrRaffleSettled.Wrapf("raffleId=%d status=%s", r.ID, r.Status)
	}
	if len(values) == 0 {
		return nil, ErrBadWordCount.Wrap("empty values")
	}
	if r.TicketsSold == 0 {
		return nil, ErrRaffleInvalid.Wrapf("raffleId=%d has no tickets", r.ID)
	}

	winnerIndex := uint32(values[0] % uint64(r.TicketsSold))
	return raffleSettle(st, r, winnerIndex, emergency)
}

// raffleSettle pays prize and house fee. Fee = pool*feePercent/100 plus the
// configured flat fee; the floor-division remainder stays with the house.
func raffleSettle(st *state.State, r *state.Raffle, winnerIndex uint32, emergency bool) ([]abci.Event, error) {
	if int(winnerIndex) >= len(r.Tickets) {
		return nil, ErrRaffleInvalid.Wrapf("winnerIndex=%d ticketsSold=%d", winnerIndex, r.TicketsSold)
	}
	winner := r.Tickets[winnerIndex]

	houseFee := feeAmount(r.Pool, st.Params.RaffleFeePercent)
	if flat := st.Params.RaffleFlatFee; flat > 0 {
		if flat >= r.Pool-houseFee {
			houseFee = r.Pool
		} else {
			houseFee += flat
		}
	}
	prize := r.Pool - houseFee

	// Effects before transfers: the terminal status is the one-shot guard.
	r.Status = state.RaffleSettled
	r.Winner = winner
	r.WinnerIndex = winnerIndex
	r.HouseFee = houseFee
	r.Prize = prize
	r.Emergency = emergency

	if err := st.Transfer(raffleEscrowAccount, winner, r.Asset, prize); err != nil {
		return nil, err
	}
	if err := creditTreasury(st, raffleEscrowAccount, r.Asset, houseFee); err != nil {
		return nil, err
	}
	r.Pool = 0

	return []abci.Event{event(EventTypeWinnerSelected, map[string]string{
		"raffleId":    fmt.Sprintf("%d", r.ID),
		"winner":      winner,
		"winnerIndex": fmt.Sprintf("%d", winnerIndex),
		"prize":       fmt.Sprintf("%d", prize),
		"houseFee":    fmt.Sprintf("%d", houseFee),
		"emergency":   fmt.Sprintf("%t", emergency),
	})}, nil
}

// feeAmount computes amount*percent/100 without intermediate overflow.
func feeAmount(amount uint64, percent uint32) uint64 {
	if amount == 0 || percent == 0 {
		return 0
	}
	if percent >= 100 {
		return amount
	}
	hi, lo := bits.Mul64(amount, uint64(percent))
	q, _ := bits.Div64(hi, lo, 100)
	return q
}

// applyRaffleEmergencyDraw manually selects a winner by ticket index after the
// draw request has timed out, reusing the settlement math.
func applyRaffleEmergencyDraw(st *state.State, msg codec.RaffleEmergencyDrawTx, nowUnix int64) (*abci.ExecTxResult, error) {
	r := st.Raffles[msg.RaffleID]
	if r == nil {
		return nil, ErrRaffleNotFound.Wrapf("raffleId=%d", msg.RaffleID)
	}
	if r.Status != state.RaffleFilled {
		return nil, ErrRaffleNotDrawing.Wrapf("raffleId=%d status=%s", r.ID, r.Status)
	}
	if err := requireRequestTimedOut(st, r.RequestID, nowUnix); err != nil {
		return nil, err
	}

	events, err := raffleSettle(st, r, msg.WinnerIndex, true)
	if err != nil {
		return nil, err
	}
	st.Requests[r.RequestID].Fulfilled = true
	return &abci.ExecTxResult{Code: 0, Events: events}, nil
}

// applyRaffleEmergencyCancel refunds all participants after the draw request
// has timed out, mirroring the vending engine's dual recovery.
func applyRaffleEmergencyCancel(st *state.State, msg codec.RaffleEmergencyCancelTx, nowUnix int64) (*abci.ExecTxResult, error) {
	r := st.Raffles[msg.RaffleID]
	if r == nil {
		return nil, ErrRaffleNotFound.Wrapf("raffleId=%d", msg.RaffleID)
	}
	if r.Status != state.RaffleFilled {
		return nil, ErrRaffleNotDrawing.Wrapf("raffleId=%d status=%s", r.ID, r.Status)
	}
	if err := requireRequestTimedOut(st, r.RequestID, nowUnix); err != nil {
		return nil, err
	}

	st.Requests[r.RequestID].Fulfilled = true
	return raffleCancel(st, r, "draw timed out")
}
