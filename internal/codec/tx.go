package codec

import (
	"encoding/json"
	"fmt"
)

// TxEnvelope is the v0 transaction container.
//
// CometBFT transactions are opaque bytes. For v0 localnet we use JSON-encoded
// txs to move fast; this is NOT the final protocol encoding.
type TxEnvelope struct {
	// Basic routing.
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// Tx auth (required for funds-moving, admin, and oracle txs):
	// - Nonce: included in the signed message for replay protection (must increase per signer).
	// - Signer: logical signer id (account address).
	// - Sig: Ed25519 signature over (type, nonce, signer, sha256(value)).
	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// ---- Bank ----

type BankMintTx struct {
	To     string `json:"to"`
	Denom  string `json:"denom"`
	Amount uint64 `json:"amount"`
}

type BankSendTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Denom  string `json:"denom"`
	Amount uint64 `json:"amount"`
}

// ---- Auth ----

// Account pubkey registration for tx authentication.
type AuthRegisterAccountTx struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

// ---- Randomness oracle ----

// OracleFulfillTx is submitted by the trusted oracle identity to resolve a
// pending randomness request.
type OracleFulfillTx struct {
	RequestID uint64   `json:"requestId"`
	Values    []uint64 `json:"values"`
}

// ---- Vending ----

type VendPurchaseTx struct {
	Buyer  string `json:"buyer"`
	TierID uint32 `json:"tierId"`
}

type VendSetTierTx struct {
	TierID   uint32 `json:"tierId"` // == len(tiers) appends a new tier
	Price    uint64 `json:"price"`
	MinValue uint64 `json:"minValue"`
	MaxValue uint64 `json:"maxValue"`
	Active   bool   `json:"active"`
}

type VendEmergencyFulfillTx struct {
	RequestID uint64 `json:"requestId"`
	Seed      uint64 `json:"seed"`
}

type VendEmergencyRefundTx struct {
	RequestID uint64 `json:"requestId"`
}

// ---- Raffle ----

type RaffleCreateTx struct {
	Creator      string `json:"creator"`
	Asset        string `json:"asset,omitempty"` // defaults to params.payDenom
	TicketPrice  uint64 `json:"ticketPrice"`
	MaxTickets   uint32 `json:"maxTickets"`
	MinTickets   uint32 `json:"minTickets"`
	DurationSecs uint64 `json:"durationSecs"`
	MaxPerUser   uint32 `json:"maxPerUser,omitempty"` // defaults to params cap
}

type RaffleBuyTx struct {
	Buyer    string `json:"buyer"`
	RaffleID uint64 `json:"raffleId"`
	Count    uint32 `json:"count"`
}

type RaffleFinalizeTx struct {
	Caller   string `json:"caller"`
	RaffleID uint64 `json:"raffleId"`
}

type RaffleEmergencyDrawTx struct {
	RaffleID    uint64 `json:"raffleId"`
	WinnerIndex uint32 `json:"winnerIndex"`
}

type RaffleEmergencyCancelTx struct {
	RaffleID uint64 `json:"raffleId"`
}

// ---- Auction ----

type AuctionBidTx struct {
	Bidder string `json:"bidder"`
	Item   string `json:"item"`
	Amount uint64 `json:"amount"`
}

// ---- Treasury ----

type TreasuryDepositTx struct {
	From   string `json:"from"`
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

type TreasuryBatchDepositTx struct {
	From    string   `json:"from"`
	Assets  []string `json:"assets"`
	Amounts []uint64 `json:"amounts"`
}

type TreasuryFundTx struct {
	Caller        string   `json:"caller"`
	Destination   string   `json:"destination"`
	Assets        []string `json:"assets"`
	Amounts       []uint64 `json:"amounts"`
	CorrelationID string   `json:"correlationId,omitempty"`
}

type TreasurySetFunderTx struct {
	Addr    string `json:"addr"`
	Allowed bool   `json:"allowed"`
}

type TreasuryWithdrawTx struct {
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
	To     string `json:"to"`
}

type TreasuryEmergencyWithdrawAllTx struct {
	Asset string `json:"asset"`
	To    string `json:"to"`
}

// ---- Admin ----

// AdminSetParamsTx applies a partial params update; zero values leave the
// existing setting untouched, except booleans and accounts which are set when
// the corresponding *Set flag is true.
type AdminSetParamsTx struct {
	SetAdminAccount  bool   `json:"setAdminAccount,omitempty"`
	AdminAccount     string `json:"adminAccount,omitempty"`
	SetOracleAccount bool   `json:"setOracleAccount,omitempty"`
	OracleAccount    string `json:"oracleAccount,omitempty"`

	PayDenom           string `json:"payDenom,omitempty"`
	MaxRandomWords     uint32 `json:"maxRandomWords,omitempty"`
	RequestTimeoutSecs uint64 `json:"requestTimeoutSecs,omitempty"`

	SetRaffleFeePercent      bool   `json:"setRaffleFeePercent,omitempty"`
	RaffleFeePercent         uint32 `json:"raffleFeePercent,omitempty"`
	SetRaffleFlatFee         bool   `json:"setRaffleFlatFee,omitempty"`
	RaffleFlatFee            uint64 `json:"raffleFlatFee,omitempty"`
	MinRaffleDurationSecs    uint64 `json:"minRaffleDurationSecs,omitempty"`
	MaxRaffleDurationSecs    uint64 `json:"maxRaffleDurationSecs,omitempty"`
	DefaultMaxTicketsPerUser uint32 `json:"defaultMaxTicketsPerUser,omitempty"`

	AuctionDurationSecs uint64 `json:"auctionDurationSecs,omitempty"`
	AuctionSlotCount    uint32 `json:"auctionSlotCount,omitempty"`
	AuctionMinBid       uint64 `json:"auctionMinBid,omitempty"`
}
