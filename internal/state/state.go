package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type State struct {
	Height int64 `json:"height"`

	Accounts    map[string]map[string]uint64 `json:"accounts"`              // addr -> denom -> balance
	AccountKeys map[string][]byte            `json:"accountKeys,omitempty"` // addr -> ed25519 pubkey (32 bytes)
	NonceMax    map[string]uint64            `json:"nonceMax,omitempty"`    // signer -> last accepted tx.nonce (u64), for replay protection

	Params Params `json:"params"`

	// Randomness broker.
	NextRequestID uint64                        `json:"nextRequestId"`
	Requests      map[uint64]*RandomnessRequest `json:"requests"`

	// Vending engine.
	Tiers          []Tier               `json:"tiers,omitempty"`
	Purchases      map[uint64]*Purchase `json:"purchases"` // keyed by request id
	PurchaseCounts map[string]uint64    `json:"purchaseCounts,omitempty"`
	TotalPurchases uint64               `json:"totalPurchases,omitempty"`
	VendingPaused  bool                 `json:"vendingPaused,omitempty"`

	// Raffle engine.
	NextRaffleID    uint64             `json:"nextRaffleId"`
	Raffles         map[uint64]*Raffle `json:"raffles"`
	RaffleByRequest map[uint64]uint64  `json:"raffleByRequest,omitempty"` // request id -> raffle id

	// Auction engine.
	NextAuctionID    uint64              `json:"nextAuctionId"`
	CurrentAuctionID uint64              `json:"currentAuctionId,omitempty"`
	Auctions         map[uint64]*Auction `json:"auctions"`
	Sponsored        map[string]int64    `json:"sponsored,omitempty"` // item -> sponsored-until unix seconds

	Treasury *TreasuryState `json:"treasury,omitempty"`
}

func NewState() *State {
	return &State{
		Height:         0,
		Accounts:       map[string]map[string]uint64{},
		AccountKeys:    map[string][]byte{},
		NonceMax:       map[string]uint64{},
		Params:         DefaultParams(),
		NextRequestID:  1,
		Requests:       map[uint64]*RandomnessRequest{},
		Purchases:      map[uint64]*Purchase{},
		PurchaseCounts: map[string]uint64{},
		NextRaffleID:   1,
		Raffles:        map[uint64]*Raffle{},
		NextAuctionID:  1,
		Auctions:       map[uint64]*Auction{},
		Treasury:       NewTreasuryState(),
	}
}

func Load(home string) (*State, error) {
	path := filepath.Join(home, "state.json")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	normalize(&st)
	return &st, nil
}

func (s *State) Save(home string) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("mkdir home: %w", err)
	}
	path := filepath.Join(home, "state.json")
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Clone returns a deep copy of state suitable for staged tx execution.
func (s *State) Clone() (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("state is nil")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state clone: %w", err)
	}
	var out State
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode state clone: %w", err)
	}
	normalize(&out)
	return &out, nil
}

func normalize(st *State) {
	if st.Accounts == nil {
		st.Accounts = map[string]map[string]uint64{}
	}
	if st.AccountKeys == nil {
		st.AccountKeys = map[string][]byte{}
	}
	if st.NonceMax == nil {
		st.NonceMax = map[string]uint64{}
	}
	if st.Requests == nil {
		st.Requests = map[uint64]*RandomnessRequest{}
	}
	if st.NextRequestID == 0 {
		st.NextRequestID = 1
	}
	if st.Purchases == nil {
		st.Purchases = map[uint64]*Purchase{}
	}
	if st.PurchaseCounts == nil {
		st.PurchaseCounts = map[string]uint64{}
	}
	if st.Raffles == nil {
		st.Raffles = map[uint64]*Raffle{}
	}
	if st.NextRaffleID == 0 {
		st.NextRaffleID = 1
	}
	if st.Auctions == nil {
		st.Auctions = map[uint64]*Auction{}
	}
	if st.NextAuctionID == 0 {
		st.NextAuctionID = 1
	}
	if st.Treasury == nil {
		st.Treasury = NewTreasuryState()
	}
	st.Treasury.normalize()
	st.Params.normalize()
}

func (s *State) AppHash() []byte {
	// Deterministic JSON hash: marshal with stable key ordering by serializing
	// a normalized view.
	//
	// Note: encoding/json does NOT guarantee map key order, so we manually
	// normalize maps into slices.
	type balanceKV struct {
		Addr    string `json:"addr"`
		Denom   string `json:"denom"`
		Balance uint64 `json:"balance"`
	}
	type accountKeyKV struct {
		Addr   string `json:"addr"`
		PubKey []byte `json:"pubKey"`
	}
	type nonceKV struct {
		Signer string `json:"signer"`
		Nonce  uint64 `json:"nonce"`
	}
	type requestKV struct {
		ID      uint64             `json:"id"`
		Request *RandomnessRequest `json:"request"`
	}
	type purchaseKV struct {
		ID       uint64    `json:"id"`
		Purchase *Purchase `json:"purchase"`
	}
	type countKV struct {
		Addr  string `json:"addr"`
		Count uint64 `json:"count"`
	}
	type raffleKV struct {
		ID     uint64  `json:"id"`
		Raffle *Raffle `json:"raffle"`
	}
	type requestRaffleKV struct {
		RequestID uint64 `json:"requestId"`
		RaffleID  uint64 `json:"raffleId"`
	}
	type auctionKV struct {
		ID      uint64   `json:"id"`
		Auction *Auction `json:"auction"`
	}
	type sponsorKV struct {
		Item  string `json:"item"`
		Until int64  `json:"until"`
	}

	balances := make([]balanceKV, 0, len(s.Accounts))
	for addr, denoms := range s.Accounts {
		for denom, bal := range denoms {
			balances = append(balances, balanceKV{Addr: addr, Denom: denom, Balance: bal})
		}
	}
	sort.Slice(balances, func(i, j int) bool {
		if balances[i].Addr != balances[j].Addr {
			return balances[i].Addr < balances[j].Addr
		}
		return balances[i].Denom < balances[j].Denom
	})

	accountKeys := make([]accountKeyKV, 0, len(s.AccountKeys))
	for k, v := range s.AccountKeys {
		accountKeys = append(accountKeys, accountKeyKV{Addr: k, PubKey: v})
	}
	sort.Slice(accountKeys, func(i, j int) bool { return accountKeys[i].Addr < accountKeys[j].Addr })

	nonces := make([]nonceKV, 0, len(s.NonceMax))
	for k, v := range s.NonceMax {
		nonces = append(nonces, nonceKV{Signer: k, Nonce: v})
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i].Signer < nonces[j].Signer })

	requests := make([]requestKV, 0, len(s.Requests))
	for id, r := range s.Requests {
		requests = append(requests, requestKV{ID: id, Request: r})
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID < requests[j].ID })

	purchases := make([]purchaseKV, 0, len(s.Purchases))
	for id, p := range s.Purchases {
		purchases = append(purchases, purchaseKV{ID: id, Purchase: p})
	}
	sort.Slice(purchases, func(i, j int) bool { return purchases[i].ID < purchases[j].ID })

	counts := make([]countKV, 0, len(s.PurchaseCounts))
	for addr, n := range s.PurchaseCounts {
		counts = append(counts, countKV{Addr: addr, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Addr < counts[j].Addr })

	raffles := make([]raffleKV, 0, len(s.Raffles))
	for id, r := range s.Raffles {
		raffles = append(raffles, raffleKV{ID: id, Raffle: r})
	}
	sort.Slice(raffles, func(i, j int) bool { return raffles[i].ID < raffles[j].ID })

	requestRaffles := make([]requestRaffleKV, 0, len(s.RaffleByRequest))
	for reqID, raffleID := range s.RaffleByRequest {
		requestRaffles = append(requestRaffles, requestRaffleKV{RequestID: reqID, RaffleID: raffleID})
	}
	sort.Slice(requestRaffles, func(i, j int) bool { return requestRaffles[i].RequestID < requestRaffles[j].RequestID })

	auctions := make([]auctionKV, 0, len(s.Auctions))
	for id, a := range s.Auctions {
		auctions = append(auctions, auctionKV{ID: id, Auction: a})
	}
	sort.Slice(auctions, func(i, j int) bool { return auctions[i].ID < auctions[j].ID })

	sponsors := make([]sponsorKV, 0, len(s.Sponsored))
	for item, until := range s.Sponsored {
		sponsors = append(sponsors, sponsorKV{Item: item, Until: until})
	}
	sort.Slice(sponsors, func(i, j int) bool { return sponsors[i].Item < sponsors[j].Item })

	normalized := struct {
		Height           int64              `json:"height"`
		Balances         []balanceKV        `json:"balances"`
		AccountKeys      []accountKeyKV     `json:"accountKeys,omitempty"`
		NonceMax         []nonceKV          `json:"nonceMax,omitempty"`
		Params           Params             `json:"params"`
		NextRequestID    uint64             `json:"nextRequestId"`
		Requests         []requestKV        `json:"requests"`
		Tiers            []Tier             `json:"tiers,omitempty"`
		Purchases        []purchaseKV       `json:"purchases"`
		PurchaseCounts   []countKV          `json:"purchaseCounts,omitempty"`
		TotalPurchases   uint64             `json:"totalPurchases,omitempty"`
		VendingPaused    bool               `json:"vendingPaused,omitempty"`
		NextRaffleID     uint64             `json:"nextRaffleId"`
		Raffles          []raffleKV         `json:"raffles"`
		RaffleByRequest  []requestRaffleKV  `json:"raffleByRequest,omitempty"`
		NextAuctionID    uint64             `json:"nextAuctionId"`
		CurrentAuctionID uint64             `json:"currentAuctionId,omitempty"`
		Auctions         []auctionKV        `json:"auctions"`
		Sponsored        []sponsorKV        `json:"sponsored,omitempty"`
		Treasury         *normTreasuryState `json:"treasury,omitempty"`
	}{
		Height:           s.Height,
		Balances:         balances,
		AccountKeys:      accountKeys,
		NonceMax:         nonces,
		Params:           s.Params,
		NextRequestID:    s.NextRequestID,
		Requests:         requests,
		Tiers:            s.Tiers,
		Purchases:        purchases,
		PurchaseCounts:   counts,
		TotalPurchases:   s.TotalPurchases,
		VendingPaused:    s.VendingPaused,
		NextRaffleID:     s.NextRaffleID,
		Raffles:          raffles,
		RaffleByRequest:  requestRaffles,
		NextAuctionID:    s.NextAuctionID,
		CurrentAuctionID: s.CurrentAuctionID,
		Auctions:         auctions,
		Sponsored:        sponsors,
		Treasury:         s.Treasury.normalized(),
	}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return sum[:]
}

// ---- Bank ----

func (s *State) Balance(addr, denom string) uint64 {
	return s.Accounts[addr][denom]
}

func (s *State) Credit(addr, denom string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	denoms := s.Accounts[addr]
	if denoms == nil {
		denoms = map[string]uint64{}
		s.Accounts[addr] = denoms
	}
	bal := denoms[denom]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("balance overflow: addr=%s denom=%s have=%d add=%d", addr, denom, bal, amount)
	}
	denoms[denom] = bal + amount
	return nil
}

func (s *State) Debit(addr, denom string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	denoms := s.Accounts[addr]
	bal := denoms[denom]
	if bal < amount {
		return fmt.Errorf("insufficient funds: addr=%s denom=%s have=%d need=%d", addr, denom, bal, amount)
	}
	if bal == amount {
		delete(denoms, denom)
		if len(denoms) == 0 {
			delete(s.Accounts, addr)
		}
		return nil
	}
	denoms[denom] = bal - amount
	return nil
}

// Transfer debits src and credits dst as one step; on a credit failure the
// debit is rolled back so balances never end up partially applied.
func (s *State) Transfer(src, dst, denom string, amount uint64) error {
	if err := s.Debit(src, denom, amount); err != nil {
		return err
	}
	if err := s.Credit(dst, denom, amount); err != nil {
		_ = s.Credit(src, denom, amount)
		return err
	}
	return nil
}
