package app

import (
	abci "github.com/cometbft/cometbft/abci/types"

	"prizevault/chain/internal/codec"
	"prizevault/chain/internal/state"
)

// applyAdminSetParams applies a partial params update. Numeric zero values
// leave existing settings untouched; account handover and the fee fields use
// explicit Set flags so they can be set to empty/zero deliberately.
func applyAdminSetParams(st *state.State, msg codec.AdminSetParamsTx) (*abci.ExecTxResult, error) {
	p := &st.Params

	if msg.SetAdminAccount {
		p.AdminAccount = msg.AdminAccount
	}
	if msg.SetOracleAccount {
		p.OracleAccount = msg.OracleAccount
	}
	if msg.PayDenom != "" {
		if err := validDenom(msg.PayDenom); err != nil {
			return nil, err
		}
		p.PayDenom = msg.PayDenom
	}
	if msg.MaxRandomWords != 0 {
		p.MaxRandomWords = msg.MaxRandomWords
	}
	if msg.RequestTimeoutSecs != 0 {
		p.RequestTimeoutSecs = msg.RequestTimeoutSecs
	}
	if msg.SetRaffleFeePercent {
		if msg.RaffleFeePercent > 100 {
			return nil, ErrRaffleInvalid.Wrapf("feePercent=%d must be <= 100", msg.RaffleFeePercent)
		}
		p.RaffleFeePercent = msg.RaffleFeePercent
	}
	if msg.SetRaffleFlatFee {
		p.RaffleFlatFee = msg.RaffleFlatFee
	}
	if msg.MinRaffleDurationSecs != 0 {
		p.MinRaffleDurationSecs = msg.MinRaffleDurationSecs
	}
	if msg.MaxRaffleDurationSecs != 0 {
		p.MaxRaffleDurationSecs = msg.MaxRaffleDurationSecs
	}
	if p.MinRaffleDurationSecs > p.MaxRaffleDurationSecs {
		return nil, ErrRaffleInvalid.Wrapf("minRaffleDurationSecs=%d > maxRaffleDurationSecs=%d",
			p.MinRaffleDurationSecs, p.MaxRaffleDurationSecs)
	}
	if msg.DefaultMaxTicketsPerUser != 0 {
		p.DefaultMaxTicketsPerUser = msg.DefaultMaxTicketsPerUser
	}
	if msg.AuctionDurationSecs != 0 {
		p.AuctionDurationSecs = msg.AuctionDurationSecs
	}
	if msg.AuctionSlotCount != 0 {
		p.AuctionSlotCount = msg.AuctionSlotCount
	}
	if msg.AuctionMinBid != 0 {
		p.AuctionMinBid = msg.AuctionMinBid
	}

	return okEvent("ParamsUpdated", map[string]string{}), nil
}
