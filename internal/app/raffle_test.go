package app

import (
	"testing"

	"prizevault/chain/internal/codec"
	"prizevault/chain/internal/state"
)

func createRaffle(t *testing.T, a *PVApp, creator *testSigner, msg codec.RaffleCreateTx) uint64 {
	t.Helper()
	res := mustOk(t, a.deliverTx(creator.tx(t, "raffle/create", msg), testHeight, testT0))
	return parseU64(t, attr(findEvent(res.Events, EventTypeRaffleCreated), "raffleId"))
}

func buyTickets(t *testing.T, a *PVApp, buyer *testSigner, raffleID uint64, count uint32) *testSigner {
	t.Helper()
	mustOk(t, a.deliverTx(buyer.tx(t, "raffle/buy", codec.RaffleBuyTx{
		Buyer: buyer.name, RaffleID: raffleID, Count: count,
	}), testHeight, testT0))
	return buyer
}

func TestRaffleCreate_Validations(t *testing.T) {
	a, _, _, signers := setupApp(t, "alice")
	alice := signers["alice"]

	cases := []codec.RaffleCreateTx{
		{Creator: "alice", TicketPrice: 0, MaxTickets: 10, MinTickets: 2, DurationSecs: 3600},
		{Creator: "alice", TicketPrice: 10, MaxTickets: 10, MinTickets: 0, DurationSecs: 3600},
		{Creator: "alice", TicketPrice: 10, MaxTickets: 5, MinTickets: 6, DurationSecs: 3600},
		{Creator: "alice", TicketPrice: 10, MaxTickets: 10, MinTickets: 2, DurationSecs: 1},
		{Creator: "alice", TicketPrice: 10, MaxTickets: 10, MinTickets: 2, DurationSecs: 100 * 24 * 3600},
	}
	for i, msg := range cases {
		if res := a.deliverTx(alice.tx(t, "raffle/create", msg), testHeight, testT0); res.Code == 0 {
			t.Fatalf("case %d: expected rejection", i)
		}
	}
	if len(a.st.Raffles) != 0 {
		t.Fatalf("no raffle should exist")
	}
}

func TestRaffleBuy_CapsAndEscrow(t *testing.T) {
	a, _, _, signers := setupApp(t, "alice", "bob")
	alice, bob := signers["alice"], signers["bob"]
	id := createRaffle(t, a, alice, codec.RaffleCreateTx{
		Creator: "alice", TicketPrice: 10, MaxTickets: 10, MinTickets: 2, DurationSecs: 3600, MaxPerUser: 4,
	})

	buyTickets(t, a, bob, id, 3)
	if got := balance(a, "bob", "pv"); got != 99_970 {
		t.Fatalf("bob balance: got %d want 99970", got)
	}
	if got := balance(a, raffleEscrowAccount, "pv"); got != 30 {
		t.Fatalf("escrow: got %d want 30", got)
	}

	// Per-user cap: bob holds 3 of max 4.
	mustFail(t, a.deliverTx(bob.tx(t, "raffle/buy", codec.RaffleBuyTx{
		Buyer: "bob", RaffleID: id, Count: 2,
	}), testHeight, testT0))

	// Capacity: only 7 remain.
	mustFail(t, a.deliverTx(alice.tx(t, "raffle/buy", codec.RaffleBuyTx{
		Buyer: "alice", RaffleID: id, Count: 8,
	}), testHeight, testT0))

	// Expired raffle sells nothing.
	mustFail(t, a.deliverTx(alice.tx(t, "raffle/buy", codec.RaffleBuyTx{
		Buyer: "alice", RaffleID: id, Count: 1,
	}), testHeight, testT0+3600))

	r := a.st.Raffles[id]
	if r.TicketsSold != 3 || r.Pool != 30 {
		t.Fatalf("sold=%d pool=%d", r.TicketsSold, r.Pool)
	}
}

func TestRaffleFill_RequestsDraw(t *testing.T) {
	a, _, _, signers := setupApp(t, "alice", "bob", "carol")
	id := createRaffle(t, a, signers["alice"], codec.RaffleCreateTx{
		Creator: "alice", TicketPrice: 10, MaxTickets: 10, MinTickets: 2, DurationSecs: 3600,
	})

	buyTickets(t, a, signers["alice"], id, 4)
	res := mustOk(t, a.deliverTx(signers["bob"].tx(t, "raffle/buy", codec.RaffleBuyTx{
		Buyer: "bob", RaffleID: id, Count: 6,
	}), testHeight, testT0))

	if findEvent(res.Events, EventTypeRaffleFilled) == nil {
		t.Fatalf("expected RaffleFilled on capacity")
	}
	reqID := parseU64(t, attr(findEvent(res.Events, EventTypeRandomnessRequested), "requestId"))

	r := a.st.Raffles[id]
	if r.Status != state.RaffleFilled || r.RequestID != reqID {
		t.Fatalf("raffle: status=%s requestId=%d", r.Status, r.RequestID)
	}
	if a.st.RaffleByRequest[reqID] != id {
		t.Fatalf("request-to-raffle index missing")
	}

	// Filled raffle sells no more tickets.
	mustFail(t, a.deliverTx(signers["carol"].tx(t, "raffle/buy", codec.RaffleBuyTx{
		Buyer: "carol", RaffleID: id, Count: 1,
	}), testHeight, testT0))
}

func TestRaffleSettle_PaysWinnerAndHouse(t *testing.T) {
	a, admin, oracle, signers := setupApp(t, "alice", "bob")
	// 10% of the pool plus a flat 10.
	mustOk(t, a.deliverTx(admin.tx(t, "admin/set_params", codec.AdminSetParamsTx{
		SetRaffleFlatFee: true, RaffleFlatFee: 10,
	}), testHeight, testT0))

	id := createRaffle(t, a, signers["alice"], codec.RaffleCreateTx{
		Creator: "alice", TicketPrice: 10, MaxTickets: 10, MinTickets: 2, DurationSecs: 3600,
	})
	buyTickets(t, a, signers["alice"], id, 4) // tickets 0..3
	buyTickets(t, a, signers["bob"], id, 6)   // tickets 4..9

	reqID := a.st.Raffles[id].RequestID
	res := mustOk(t, a.deliverTx(oracle.tx(t, "oracle/fulfill", codec.OracleFulfillTx{
		RequestID: reqID, Values: []uint64{7},
	}), testHeight, testT0))

	// winnerIndex = 7 % 10 = 7 -> bob. pool=100, house = 10 + 10 = 20, prize 80.
	ev := findEvent(res.Events, EventTypeWinnerSelected)
	if attr(ev, "winner") != "bob" {
		t.Fatalf("winner: got %q want bob", attr(ev, "winner"))
	}
	if got := parseU64(t, attr(ev, "prize")); got != 80 {
		t.Fatalf("prize: got %d want 80", got)
	}

	r := a.st.Raffles[id]
	if r.Status != state.RaffleSettled || r.Winner != "bob" || r.Prize != 80 || r.HouseFee != 20 {
		t.Fatalf("raffle after settle: %+v", r)
	}
	if r.Pool != 0 {
		t.Fatalf("pool must be zeroed")
	}
	// bob: 100000 - 60 + 80.
	if got := balance(a, "bob", "pv"); got != 100_020 {
		t.Fatalf("bob balance: got %d want 100020", got)
	}
	if got := balance(a, treasuryAccount, "pv"); got != 20 {
		t.Fatalf("treasury: got %d want 20", got)
	}
	if got := balance(a, raffleEscrowAccount, "pv"); got != 0 {
		t.Fatalf("escrow must be drained, got %d", got)
	}
}

func TestRaffleFinalize_CreatorEarlyOthersAfterExpiry(t *testing.T) {
	a, _, _, signers := setupApp(t, "alice", "bob")
	id := createRaffle(t, a, signers["alice"], codec.RaffleCreateTx{
		Creator: "alice", TicketPrice: 10, MaxTickets: 10, MinTickets: 2, DurationSecs: 3600,
	})
	buyTickets(t, a, signers["bob"], id, 3)

	// Non-creator before expiry: rejected.
	mustFail(t, a.deliverTx(signers["bob"].tx(t, "raffle/finalize", codec.RaffleFinalizeTx{
		Caller: "bob", RaffleID: id,
	}), testHeight, testT0))

	// Creator before expiry with minimum met: draw requested.
	res := mustOk(t, a.deliverTx(signers["alice"].tx(t, "raffle/finalize", codec.RaffleFinalizeTx{
		Caller: "alice", RaffleID: id,
	}), testHeight, testT0))
	if findEvent(res.Events, EventTypeRaffleFilled) == nil {
		t.Fatalf("expected early finalize to request the draw")
	}
}

func TestRaffleFinalize_BelowMinimumCancelsAndRefundsOnce(t *testing.T) {
	a, _, _, signers := setupApp(t, "alice", "bob")
	id := createRaffle(t, a, signers["alice"], codec.RaffleCreateTx{
		Creator: "alice", TicketPrice: 10, MaxTickets: 10, MinTickets: 5, DurationSecs: 3600,
	})
	buyTickets(t, a, signers["bob"], id, 3)

	// Anyone may finalize after expiry; unsigned is fine then.
	res := mustOk(t, a.deliverTx(txBytes(t, "raffle/finalize", map[string]any{
		"caller": "carol", "raffleId": id,
	}), testHeight, testT0+3600))

	if findEvent(res.Events, EventTypeRaffleCancelled) == nil {
		t.Fatalf("expected cancellation below minimum")
	}
	if n := countEvents(res.Events, EventTypeTicketsRefunded); n != 1 {
		t.Fatalf("one refund per unique participant, got %d", n)
	}
	if got := balance(a, "bob", "pv"); got != 100_000 {
		t.Fatalf("bob must be made whole, got %d", got)
	}
	r := a.st.Raffles[id]
	if r.Status != state.RaffleCancelled || r.Pool != 0 {
		t.Fatalf("raffle after cancel: %+v", r)
	}

	// Terminal: finalize again fails.
	mustFail(t, a.deliverTx(txBytes(t, "raffle/finalize", map[string]any{
		"caller": "carol", "raffleId": id,
	}), testHeight, testT0+3600))
}

func TestRaffleEmergencyDraw_TimeoutGated(t *testing.T) {
	a, admin, _, signers := setupApp(t, "alice", "bob")
	id := createRaffle(t, a, signers["alice"], codec.RaffleCreateTx{
		Creator: "alice", TicketPrice: 10, MaxTickets: 4, MinTickets: 2, DurationSecs: 3600,
	})
	buyTickets(t, a, signers["alice"], id, 1)
	buyTickets(t, a, signers["bob"], id, 3) // fills -> draw requested at testT0

	// Before the request times out: rejected.
	mustFail(t, a.deliverTx(admin.tx(t, "raffle/emergency_draw", codec.RaffleEmergencyDrawTx{
		RaffleID: id, WinnerIndex: 0,
	}), testHeight, testT0+10))

	late := testT0 + int64(a.st.Params.RequestTimeoutSecs) + 1
	res := mustOk(t, a.deliverTx(admin.tx(t, "raffle/emergency_draw", codec.RaffleEmergencyDrawTx{
		RaffleID: id, WinnerIndex: 0,
	}), testHeight, late))

	ev := findEvent(res.Events, EventTypeWinnerSelected)
	if attr(ev, "winner") != "alice" || attr(ev, "emergency") != "true" {
		t.Fatalf("unexpected emergency draw event: %+v", ev)
	}
	r := a.st.Raffles[id]
	if r.Status != state.RaffleSettled || !r.Emergency {
		t.Fatalf("raffle after emergency draw: %+v", r)
	}
	if !a.st.Requests[r.RequestID].Fulfilled {
		t.Fatalf("request must be closed")
	}
}

func TestRaffleEmergencyCancel_RefundsAfterTimeout(t *testing.T) {
	a, admin, oracle, signers := setupApp(t, "alice", "bob")
	id := createRaffle(t, a, signers["alice"], codec.RaffleCreateTx{
		Creator: "alice", TicketPrice: 10, MaxTickets: 4, MinTickets: 2, DurationSecs: 3600,
	})
	buyTickets(t, a, signers["alice"], id, 1)
	buyTickets(t, a, signers["bob"], id, 3)
	r := a.st.Raffles[id]
	late := testT0 + int64(a.st.Params.RequestTimeoutSecs) + 1

	res := mustOk(t, a.deliverTx(admin.tx(t, "raffle/emergency_cancel", codec.RaffleEmergencyCancelTx{
		RaffleID: id,
	}), testHeight, late))

	if n := countEvents(res.Events, EventTypeTicketsRefunded); n != 2 {
		t.Fatalf("refund events: got %d want 2", n)
	}
	if balance(a, "alice", "pv") != 100_000 || balance(a, "bob", "pv") != 100_000 {
		t.Fatalf("participants must be made whole")
	}

	// The stale oracle answer for the closed request is now a no-op.
	res = mustOk(t, a.deliverTx(oracle.tx(t, "oracle/fulfill", codec.OracleFulfillTx{
		RequestID: r.RequestID, Values: []uint64{1},
	}), testHeight, late))
	if attr(findEvent(res.Events, EventTypeRandomnessFulfilled), "noop") != "true" {
		t.Fatalf("fulfill after emergency cancel must be a no-op")
	}
}

func TestRaffleSettle_FlatFeeNeverExceedsPool(t *testing.T) {
	a, admin, oracle, signers := setupApp(t, "alice")
	mustOk(t, a.deliverTx(admin.tx(t, "admin/set_params", codec.AdminSetParamsTx{
		SetRaffleFlatFee: true, RaffleFlatFee: 1_000_000,
	}), testHeight, testT0))

	id := createRaffle(t, a, signers["alice"], codec.RaffleCreateTx{
		Creator: "alice", TicketPrice: 10, MaxTickets: 2, MinTickets: 1, DurationSecs: 3600,
	})
	buyTickets(t, a, signers["alice"], id, 2)

	reqID := a.st.Raffles[id].RequestID
	mustOk(t, a.deliverTx(oracle.tx(t, "oracle/fulfill", codec.OracleFulfillTx{
		RequestID: reqID, Values: []uint64{0},
	}), testHeight, testT0))

	// Whole pool goes to the house; winner gets zero but state stays sane.
	r := a.st.Raffles[id]
	if r.HouseFee != 20 || r.Prize != 0 {
		t.Fatalf("house=%d prize=%d", r.HouseFee, r.Prize)
	}
	if got := balance(a, treasuryAccount, "pv"); got != 20 {
		t.Fatalf("treasury: got %d want 20", got)
	}
}
