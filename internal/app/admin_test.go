package app

import (
	"testing"

	"prizevault/chain/internal/codec"
)

func TestAdminSetParams_PartialUpdate(t *testing.T) {
	a, admin, _, _ := setupApp(t)

	mustOk(t, a.deliverTx(admin.tx(t, "admin/set_params", codec.AdminSetParamsTx{
		RequestTimeoutSecs:  600,
		SetRaffleFeePercent: true,
		RaffleFeePercent:    0,
	}), testHeight, testT0))

	p := a.st.Params
	if p.RequestTimeoutSecs != 600 {
		t.Fatalf("timeout: got %d", p.RequestTimeoutSecs)
	}
	if p.RaffleFeePercent != 0 {
		t.Fatalf("flagged zero must land: got %d", p.RaffleFeePercent)
	}
	// Untouched fields keep their values.
	if p.PayDenom != "pv" || p.MaxRandomWords != 16 {
		t.Fatalf("unrelated params changed: %+v", p)
	}
}

func TestAdminSetParams_Validations(t *testing.T) {
	a, admin, _, _ := setupApp(t)

	mustFail(t, a.deliverTx(admin.tx(t, "admin/set_params", codec.AdminSetParamsTx{
		SetRaffleFeePercent: true, RaffleFeePercent: 101,
	}), testHeight, testT0))

	mustFail(t, a.deliverTx(admin.tx(t, "admin/set_params", codec.AdminSetParamsTx{
		MinRaffleDurationSecs: 100, MaxRaffleDurationSecs: 50,
	}), testHeight, testT0))

	if a.st.Params.MinRaffleDurationSecs != 60 {
		t.Fatalf("failed update must not apply partially")
	}
}

func TestAdminSetParams_Handover(t *testing.T) {
	a, admin, _, _ := setupApp(t)
	next := newTestSigner("admin2")
	registerSigner(t, a, next)

	mustOk(t, a.deliverTx(admin.tx(t, "admin/set_params", codec.AdminSetParamsTx{
		SetAdminAccount: true, AdminAccount: next.name,
	}), testHeight, testT0))

	// Old admin is locked out; the new one is in control.
	mustFail(t, a.deliverTx(admin.tx(t, "vend/pause", map[string]any{}), testHeight, testT0))
	mustOk(t, a.deliverTx(next.tx(t, "vend/pause", map[string]any{}), testHeight, testT0))
	if !a.st.VendingPaused {
		t.Fatalf("new admin's pause must apply")
	}
}
