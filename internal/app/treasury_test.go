package app

import (
	"testing"

	"prizevault/chain/internal/codec"
)

func setupTreasuryApp(t *testing.T) (*PVApp, *testSigner, *testSigner) {
	t.Helper()
	a, admin, _, signers := setupApp(t, "funder")
	mintTo(t, a, "funder", "gold", 5_000)
	mintTo(t, a, "funder", "gem", 5_000)
	mustOk(t, a.deliverTx(admin.tx(t, "treasury/set_funder", codec.TreasurySetFunderTx{
		Addr: "funder", Allowed: true,
	}), testHeight, testT0))
	return a, admin, signers["funder"]
}

func TestTreasuryDeposit_MovesFundsAndCounts(t *testing.T) {
	a, _, funder := setupTreasuryApp(t)

	mustOk(t, a.deliverTx(funder.tx(t, "treasury/deposit", codec.TreasuryDepositTx{
		From: "funder", Asset: "gold", Amount: 1_000,
	}), testHeight, testT0))

	if got := balance(a, treasuryAccount, "gold"); got != 1_000 {
		t.Fatalf("treasury gold: got %d", got)
	}
	if got := a.st.Treasury.DepositedPerAsset["gold"]; got != 1_000 {
		t.Fatalf("deposited counter: got %d", got)
	}
}

func TestTreasuryBatchDeposit_LengthMismatchRejected(t *testing.T) {
	a, _, funder := setupTreasuryApp(t)

	mustFail(t, a.deliverTx(funder.tx(t, "treasury/batch_deposit", codec.TreasuryBatchDepositTx{
		From: "funder", Assets: []string{"gold", "gem"}, Amounts: []uint64{100},
	}), testHeight, testT0))

	mustOk(t, a.deliverTx(funder.tx(t, "treasury/batch_deposit", codec.TreasuryBatchDepositTx{
		From: "funder", Assets: []string{"gold", "gem"}, Amounts: []uint64{100, 200},
	}), testHeight, testT0))
	if balance(a, treasuryAccount, "gold") != 100 || balance(a, treasuryAccount, "gem") != 200 {
		t.Fatalf("batch deposit balances wrong")
	}
}

func TestTreasuryFund_AllowListEnforced(t *testing.T) {
	a, _, _, signers := setupApp(t, "outsider")

	mustFail(t, a.deliverTx(signers["outsider"].tx(t, "treasury/fund", codec.TreasuryFundTx{
		Caller: "outsider", Destination: "dest", Assets: []string{"pv"}, Amounts: []uint64{1},
	}), testHeight, testT0))
}

func TestTreasuryFund_PaysOutAndCounts(t *testing.T) {
	a, _, funder := setupTreasuryApp(t)
	mustOk(t, a.deliverTx(funder.tx(t, "treasury/batch_deposit", codec.TreasuryBatchDepositTx{
		From: "funder", Assets: []string{"gold", "gem"}, Amounts: []uint64{1_000, 500},
	}), testHeight, testT0))

	res := mustOk(t, a.deliverTx(funder.tx(t, "treasury/fund", codec.TreasuryFundTx{
		Caller: "funder", Destination: "winner",
		Assets: []string{"gold", "gem"}, Amounts: []uint64{300, 100},
		CorrelationID: "req-42",
	}), testHeight, testT0))

	ev := findEvent(res.Events, EventTypeFundingCompleted)
	if attr(ev, "correlationId") != "req-42" {
		t.Fatalf("correlation id missing from event")
	}
	if balance(a, "winner", "gold") != 300 || balance(a, "winner", "gem") != 100 {
		t.Fatalf("destination balances wrong")
	}
	if balance(a, treasuryAccount, "gold") != 700 || balance(a, treasuryAccount, "gem") != 400 {
		t.Fatalf("treasury balances wrong")
	}

	ts := a.st.Treasury
	if ts.FundedPerAsset["gold"] != 300 || ts.FundedPerAsset["gem"] != 100 {
		t.Fatalf("funded counters wrong: %+v", ts.FundedPerAsset)
	}
	if ts.FundedPerDest["winner"]["gold"] != 300 {
		t.Fatalf("per-destination counter wrong: %+v", ts.FundedPerDest)
	}
	for asset, funded := range ts.FundedPerAsset {
		if funded > ts.DepositedPerAsset[asset] {
			t.Fatalf("funded %s exceeds deposits", asset)
		}
	}
}

func TestTreasuryFund_ShortfallAbortsWholeBatch(t *testing.T) {
	a, _, funder := setupTreasuryApp(t)
	mustOk(t, a.deliverTx(funder.tx(t, "treasury/batch_deposit", codec.TreasuryBatchDepositTx{
		From: "funder", Assets: []string{"gold", "gem"}, Amounts: []uint64{1_000, 50},
	}), testHeight, testT0))

	// First asset is covered, second is short: nothing may move.
	mustFail(t, a.deliverTx(funder.tx(t, "treasury/fund", codec.TreasuryFundTx{
		Caller: "funder", Destination: "winner",
		Assets: []string{"gold", "gem"}, Amounts: []uint64{300, 100},
	}), testHeight, testT0))

	if got := balance(a, "winner", "gold"); got != 0 {
		t.Fatalf("partial payout leaked: %d", got)
	}
	if balance(a, treasuryAccount, "gold") != 1_000 || balance(a, treasuryAccount, "gem") != 50 {
		t.Fatalf("treasury balances must be untouched")
	}
	if len(a.st.Treasury.FundedPerAsset) != 0 {
		t.Fatalf("funded counters must be untouched: %+v", a.st.Treasury.FundedPerAsset)
	}
}

func TestTreasurySetFunder_Revoke(t *testing.T) {
	a, admin, funder := setupTreasuryApp(t)
	mustOk(t, a.deliverTx(funder.tx(t, "treasury/deposit", codec.TreasuryDepositTx{
		From: "funder", Asset: "gold", Amount: 100,
	}), testHeight, testT0))

	mustOk(t, a.deliverTx(admin.tx(t, "treasury/set_funder", codec.TreasurySetFunderTx{
		Addr: "funder", Allowed: false,
	}), testHeight, testT0))

	mustFail(t, a.deliverTx(funder.tx(t, "treasury/fund", codec.TreasuryFundTx{
		Caller: "funder", Destination: "dest", Assets: []string{"gold"}, Amounts: []uint64{10},
	}), testHeight, testT0))
}

func TestTreasuryWithdraw_AdminOnly(t *testing.T) {
	a, admin, funder := setupTreasuryApp(t)
	mustOk(t, a.deliverTx(funder.tx(t, "treasury/deposit", codec.TreasuryDepositTx{
		From: "funder", Asset: "gold", Amount: 1_000,
	}), testHeight, testT0))

	mustFail(t, a.deliverTx(funder.tx(t, "treasury/withdraw", codec.TreasuryWithdrawTx{
		Asset: "gold", Amount: 100, To: "funder",
	}), testHeight, testT0))

	mustOk(t, a.deliverTx(admin.tx(t, "treasury/withdraw", codec.TreasuryWithdrawTx{
		Asset: "gold", Amount: 100, To: "ops",
	}), testHeight, testT0))
	if balance(a, "ops", "gold") != 100 || balance(a, treasuryAccount, "gold") != 900 {
		t.Fatalf("withdraw balances wrong")
	}

	mustOk(t, a.deliverTx(admin.tx(t, "treasury/emergency_withdraw_all", codec.TreasuryEmergencyWithdrawAllTx{
		Asset: "gold", To: "ops",
	}), testHeight, testT0))
	if balance(a, "ops", "gold") != 1_000 || balance(a, treasuryAccount, "gold") != 0 {
		t.Fatalf("emergency withdraw balances wrong")
	}
}
