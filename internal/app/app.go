package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"

	"prizevault/chain/internal/codec"
	"prizevault/chain/internal/state"
)

const (
	AppVersion uint64 = 1
)

type PVApp struct {
	*abci.BaseApplication

	home   string
	logger log.Logger

	mu       sync.Mutex
	st       *state.State
	lastHash []byte
}

func New(home string, logger log.Logger) (*PVApp, error) {
	appHome := filepath.Join(home, "app")
	st, err := state.Load(appHome)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	a := &PVApp{
		BaseApplication: abci.NewBaseApplication(),
		home:            home,
		logger:          logger.With("module", "app"),
		st:              st,
		lastHash:        st.AppHash(),
	}
	return a, nil
}

func (a *PVApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "Prizevault (v0)",
		Version:          "v0",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *PVApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	_, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return &abci.CheckTxResponse{Code: 1, Log: err.Error()}, nil
	}
	// Structural validation only; auth and state checks run at delivery.
	return &abci.CheckTxResponse{Code: 0}, nil
}

// GenesisState seeds params, the allow-lists, and optional initial balances.
type GenesisState struct {
	Params   *state.Params                `json:"params,omitempty"`
	Funders  []string                     `json:"funders,omitempty"`
	Accounts map[string]map[string]uint64 `json:"accounts,omitempty"`
}

func (a *PVApp) InitChain(_ context.Context, req *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(req.AppStateBytes) > 0 {
		var gs GenesisState
		if err := json.Unmarshal(req.AppStateBytes, &gs); err != nil {
			return nil, fmt.Errorf("decode genesis app state: %w", err)
		}
		if gs.Params != nil {
			a.st.Params = *gs.Params
		}
		for _, addr := range gs.Funders {
			a.st.Treasury.Funders[addr] = true
		}
		for addr, denoms := range gs.Accounts {
			for denom, amount := range denoms {
				if err := a.st.Credit(addr, denom, amount); err != nil {
					return nil, fmt.Errorf("genesis balance %s/%s: %w", addr, denom, err)
				}
			}
		}
		// Re-normalize so a sparse genesis params block keeps defaults for the
		// fields it omits.
		st, err := a.st.Clone()
		if err != nil {
			return nil, err
		}
		a.st = st
		a.lastHash = a.st.AppHash()
	}
	return &abci.InitChainResponse{AppHash: a.lastHash}, nil
}

func (a *PVApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.Height = req.Height
	nowUnix := req.Time.Unix()

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(txBytes, req.Height, nowUnix)
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *PVApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Persist after each block for devnet durability.
	appHome := filepath.Join(a.home, "app")
	if err := a.st.Save(appHome); err != nil {
		// CometBFT expects Commit to not crash; return error so node halts loudly.
		return nil, err
	}
	return &abci.CommitResponse{}, nil
}

// deliverTx stages each tx on a cloned state and commits the clone only on
// success, so every operation is atomic: a failed tx mutates nothing.
func (a *PVApp) deliverTx(txBytes []byte, height int64, nowUnix int64) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return &abci.ExecTxResult{Code: 1, Log: err.Error()}
	}

	work, err := a.st.Clone()
	if err != nil {
		return &abci.ExecTxResult{Code: 1, Log: err.Error()}
	}

	res, err := a.applyTx(work, env, height, nowUnix)
	if err != nil {
		return &abci.ExecTxResult{Code: 1, Log: err.Error()}
	}
	a.st = work
	return res
}

func (a *PVApp) applyTx(st *state.State, env codec.TxEnvelope, height int64, nowUnix int64) (*abci.ExecTxResult, error) {
	switch env.Type {
	case "bank/mint":
		// Dev faucet; unsigned on localnet.
		var msg codec.BankMintTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad bank/mint value")
		}
		if msg.To == "" || msg.Amount == 0 {
			return nil, fmt.Errorf("missing to/amount")
		}
		denom := msg.Denom
		if denom == "" {
			denom = st.Params.PayDenom
		}
		if err := st.Credit(msg.To, denom, msg.Amount); err != nil {
			return nil, err
		}
		return okEvent(EventTypeBankMinted, map[string]string{
			"to":     msg.To,
			"denom":  denom,
			"amount": fmt.Sprintf("%d", msg.Amount),
		}), nil

	case "bank/send":
		var msg codec.BankSendTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad bank/send value")
		}
		if msg.From == "" || msg.To == "" || msg.Amount == 0 {
			return nil, fmt.Errorf("missing from/to/amount")
		}
		denom := msg.Denom
		if denom == "" {
			denom = st.Params.PayDenom
		}
		if err := a.authAndBumpNonce(st, env, msg.From); err != nil {
			return nil, err
		}
		if err := st.Transfer(msg.From, msg.To, denom, msg.Amount); err != nil {
			return nil, err
		}
		return okEvent(EventTypeBankSent, map[string]string{
			"from":   msg.From,
			"to":     msg.To,
			"denom":  denom,
			"amount": fmt.Sprintf("%d", msg.Amount),
		}), nil

	case "auth/register_account":
		var msg codec.AuthRegisterAccountTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad auth/register_account value")
		}
		if err := requireRegisterAccountAuth(env, msg); err != nil {
			return nil, err
		}
		if err := checkAndBumpNonce(st, env); err != nil {
			return nil, err
		}
		st.AccountKeys[msg.Account] = append([]byte(nil), msg.PubKey...)
		return okEvent("AccountRegistered", map[string]string{
			"account": msg.Account,
		}), nil

	case "oracle/fulfill":
		var msg codec.OracleFulfillTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad oracle/fulfill value")
		}
		if err := requireOracleAuth(st, env); err != nil {
			return nil, err
		}
		if err := checkAndBumpNonce(st, env); err != nil {
			return nil, err
		}
		res, err := applyOracleFulfill(st, msg)
		if err != nil {
			return nil, err
		}
		for _, ev := range res.Events {
			if ev.Type == EventTypeRandomnessDispatchError {
				a.logger.Error("randomness dispatch failed; request left pending",
					"requestId", msg.RequestID, "height", height)
			}
		}
		return res, nil

	case "vend/purchase":
		var msg codec.VendPurchaseTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad vend/purchase value")
		}
		if err := a.authAndBumpNonce(st, env, msg.Buyer); err != nil {
			return nil, err
		}
		return applyVendPurchase(st, msg, nowUnix)

	case "vend/set_tier":
		var msg codec.VendSetTierTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad vend/set_tier value")
		}
		if err := a.adminAndBumpNonce(st, env); err != nil {
			return nil, err
		}
		return applyVendSetTier(st, msg)

	case "vend/pause", "vend/unpause":
		if err := a.adminAndBumpNonce(st, env); err != nil {
			return nil, err
		}
		return applyVendPause(st, env.Type == "vend/pause")

	case "vend/emergency_fulfill":
		var msg codec.VendEmergencyFulfillTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad vend/emergency_fulfill value")
		}
		if err := a.adminAndBumpNonce(st, env); err != nil {
			return nil, err
		}
		res, err := applyVendEmergencyFulfill(st, msg, nowUnix)
		if err != nil {
			return nil, err
		}
		a.logger.Info("vending emergency fulfill used", "requestId", msg.RequestID, "height", height)
		return res, nil

	case "vend/emergency_refund":
		var msg codec.VendEmergencyRefundTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad vend/emergency_refund value")
		}
		if err := a.adminAndBumpNonce(st, env); err != nil {
			return nil, err
		}
		res, err := applyVendEmergencyRefund(st, msg, nowUnix)
		if err != nil {
			return nil, err
		}
		a.logger.Info("vending emergency refund used", "requestId", msg.RequestID, "height", height)
		return res, nil

	case "raffle/create":
		var msg codec.RaffleCreateTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad raffle/create value")
		}
		if err := a.authAndBumpNonce(st, env, msg.Creator); err != nil {
			return nil, err
		}
		return applyRaffleCreate(st, msg, nowUnix)

	case "raffle/buy":
		var msg codec.RaffleBuyTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad raffle/buy value")
		}
		if err := a.authAndBumpNonce(st, env, msg.Buyer); err != nil {
			return nil, err
		}
		return applyRaffleBuy(st, msg, nowUnix)

	case "raffle/finalize":
		var msg codec.RaffleFinalizeTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad raffle/finalize value")
		}
		// The creator-only early path needs an authenticated caller; once the
		// raffle has expired anyone may finalize unsigned.
		if r := st.Raffles[msg.RaffleID]; r != nil && nowUnix < r.EndTime {
			if err := a.authAndBumpNonce(st, env, msg.Caller); err != nil {
				return nil, err
			}
		}
		return applyRaffleFinalize(st, msg, nowUnix)

	case "raffle/emergency_draw":
		var msg codec.RaffleEmergencyDrawTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad raffle/emergency_draw value")
		}
		if err := a.adminAndBumpNonce(st, env); err != nil {
			return nil, err
		}
		res, err := applyRaffleEmergencyDraw(st, msg, nowUnix)
		if err != nil {
			return nil, err
		}
		a.logger.Info("raffle emergency draw used", "raffleId", msg.RaffleID, "height", height)
		return res, nil

	case "raffle/emergency_cancel":
		var msg codec.RaffleEmergencyCancelTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad raffle/emergency_cancel value")
		}
		if err := a.adminAndBumpNonce(st, env); err != nil {
			return nil, err
		}
		res, err := applyRaffleEmergencyCancel(st, msg, nowUnix)
		if err != nil {
			return nil, err
		}
		a.logger.Info("raffle emergency cancel used", "raffleId", msg.RaffleID, "height", height)
		return res, nil

	case "auction/bid":
		var msg codec.AuctionBidTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad auction/bid value")
		}
		if err := a.authAndBumpNonce(st, env, msg.Bidder); err != nil {
			return nil, err
		}
		return applyAuctionBid(st, msg, nowUnix)

	case "auction/finalize":
		// Callable by anyone once the window has elapsed; no auth required.
		return applyAuctionFinalize(st, nowUnix)

	case "treasury/deposit":
		var msg codec.TreasuryDepositTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad treasury/deposit value")
		}
		if err := a.authAndBumpNonce(st, env, msg.From); err != nil {
			return nil, err
		}
		return applyTreasuryDeposit(st, msg)

	case "treasury/batch_deposit":
		var msg codec.TreasuryBatchDepositTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad treasury/batch_deposit value")
		}
		if err := a.authAndBumpNonce(st, env, msg.From); err != nil {
			return nil, err
		}
		return applyTreasuryBatchDeposit(st, msg)

	case "treasury/fund":
		var msg codec.TreasuryFundTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad treasury/fund value")
		}
		if err := a.authAndBumpNonce(st, env, msg.Caller); err != nil {
			return nil, err
		}
		return applyTreasuryFund(st, msg)

	case "treasury/set_funder":
		var msg codec.TreasurySetFunderTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad treasury/set_funder value")
		}
		if err := a.adminAndBumpNonce(st, env); err != nil {
			return nil, err
		}
		return applyTreasurySetFunder(st, msg)

	case "treasury/withdraw":
		var msg codec.TreasuryWithdrawTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad treasury/withdraw value")
		}
		if err := a.adminAndBumpNonce(st, env); err != nil {
			return nil, err
		}
		return applyTreasuryWithdraw(st, msg)

	case "treasury/emergency_withdraw_all":
		var msg codec.TreasuryEmergencyWithdrawAllTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad treasury/emergency_withdraw_all value")
		}
		if err := a.adminAndBumpNonce(st, env); err != nil {
			return nil, err
		}
		res, err := applyTreasuryEmergencyWithdrawAll(st, msg)
		if err != nil {
			return nil, err
		}
		a.logger.Info("treasury emergency withdraw used", "asset", msg.Asset, "height", height)
		return res, nil

	case "admin/set_params":
		var msg codec.AdminSetParamsTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return nil, fmt.Errorf("bad admin/set_params value")
		}
		if err := a.adminAndBumpNonce(st, env); err != nil {
			return nil, err
		}
		return applyAdminSetParams(st, msg)

	default:
		return nil, fmt.Errorf("unknown tx type: %s", env.Type)
	}
}

func (a *PVApp) authAndBumpNonce(st *state.State, env codec.TxEnvelope, account string) error {
	if err := requireAccountAuth(st, env, account); err != nil {
		return err
	}
	return checkAndBumpNonce(st, env)
}

func (a *PVApp) adminAndBumpNonce(st *state.State, env codec.TxEnvelope) error {
	if err := requireAdminAuth(st, env); err != nil {
		return err
	}
	return checkAndBumpNonce(st, env)
}

func (a *PVApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	path := strings.TrimSpace(req.Path)
	switch {
	case path == "/tiers":
		b, _ := json.Marshal(a.st.Tiers)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case path == "/raffles":
		ids := make([]uint64, 0, len(a.st.Raffles))
		for id := range a.st.Raffles {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		b, _ := json.Marshal(ids)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case path == "/auction":
		cur := a.st.Auctions[a.st.CurrentAuctionID]
		b, _ := json.Marshal(cur)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case path == "/sponsored":
		b, _ := json.Marshal(a.st.Sponsored)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case path == "/treasury":
		out := map[string]any{
			"balances": a.st.Accounts[treasuryAccount],
			"audit":    a.st.Treasury,
		}
		b, _ := json.Marshal(out)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/account/"):
		addr := strings.TrimPrefix(path, "/account/")
		b, _ := json.Marshal(map[string]any{"addr": addr, "balances": a.st.Accounts[addr]})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/purchase/"):
		id, err := strconv.ParseUint(strings.TrimPrefix(path, "/purchase/"), 10, 64)
		if err != nil {
			return &abci.QueryResponse{Code: 1, Log: "invalid purchase id", Height: a.st.Height}, nil
		}
		p, ok := a.st.Purchases[id]
		if !ok {
			return &abci.QueryResponse{Code: 1, Log: "purchase not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(p)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/raffle/"):
		id, err := strconv.ParseUint(strings.TrimPrefix(path, "/raffle/"), 10, 64)
		if err != nil {
			return &abci.QueryResponse{Code: 1, Log: "invalid raffle id", Height: a.st.Height}, nil
		}
		r, ok := a.st.Raffles[id]
		if !ok {
			return &abci.QueryResponse{Code: 1, Log: "raffle not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(r)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/request/"):
		id, err := strconv.ParseUint(strings.TrimPrefix(path, "/request/"), 10, 64)
		if err != nil {
			return &abci.QueryResponse{Code: 1, Log: "invalid request id", Height: a.st.Height}, nil
		}
		r, ok := a.st.Requests[id]
		if !ok {
			return &abci.QueryResponse{Code: 1, Log: "request not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(r)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	default:
		return &abci.QueryResponse{Code: 1, Log: "unknown query path", Height: a.st.Height}, nil
	}
}
