package state

import "sort"

// ---- Params ----

// Params holds chain-wide configuration mutated only via admin/set_params.
type Params struct {
	AdminAccount  string `json:"adminAccount,omitempty"`
	OracleAccount string `json:"oracleAccount,omitempty"`

	// PayDenom is the denom tiers and auction bids are priced in.
	PayDenom string `json:"payDenom"`

	// Broker limits.
	MaxRandomWords     uint32 `json:"maxRandomWords"`
	RequestTimeoutSecs uint64 `json:"requestTimeoutSecs"`

	// Raffle economics and bounds.
	RaffleFeePercent         uint32 `json:"raffleFeePercent"`
	RaffleFlatFee            uint64 `json:"raffleFlatFee,omitempty"`
	MinRaffleDurationSecs    uint64 `json:"minRaffleDurationSecs"`
	MaxRaffleDurationSecs    uint64 `json:"maxRaffleDurationSecs"`
	DefaultMaxTicketsPerUser uint32 `json:"defaultMaxTicketsPerUser"`

	// Auction window configuration.
	AuctionDurationSecs uint64 `json:"auctionDurationSecs"`
	AuctionSlotCount    uint32 `json:"auctionSlotCount"`
	AuctionMinBid       uint64 `json:"auctionMinBid"`
}

func DefaultParams() Params {
	return Params{
		PayDenom:                 "pv",
		MaxRandomWords:           16,
		RequestTimeoutSecs:       3600,
		RaffleFeePercent:         10,
		RaffleFlatFee:            0,
		MinRaffleDurationSecs:    60,
		MaxRaffleDurationSecs:    7 * 24 * 3600,
		DefaultMaxTicketsPerUser: 10,
		AuctionDurationSecs:      24 * 3600,
		AuctionSlotCount:         5,
		AuctionMinBid:            1,
	}
}

func (p *Params) normalize() {
	def := DefaultParams()
	if p.PayDenom == "" {
		p.PayDenom = def.PayDenom
	}
	if p.MaxRandomWords == 0 {
		p.MaxRandomWords = def.MaxRandomWords
	}
	if p.RequestTimeoutSecs == 0 {
		p.RequestTimeoutSecs = def.RequestTimeoutSecs
	}
	if p.MinRaffleDurationSecs == 0 {
		p.MinRaffleDurationSecs = def.MinRaffleDurationSecs
	}
	if p.MaxRaffleDurationSecs == 0 {
		p.MaxRaffleDurationSecs = def.MaxRaffleDurationSecs
	}
	if p.DefaultMaxTicketsPerUser == 0 {
		p.DefaultMaxTicketsPerUser = def.DefaultMaxTicketsPerUser
	}
	if p.AuctionDurationSecs == 0 {
		p.AuctionDurationSecs = def.AuctionDurationSecs
	}
	if p.AuctionSlotCount == 0 {
		p.AuctionSlotCount = def.AuctionSlotCount
	}
	if p.AuctionMinBid == 0 {
		p.AuctionMinBid = def.AuctionMinBid
	}
}

// ---- Randomness broker ----

// RandomnessRequest is created on request and mutated exactly once (the
// fulfilled flag) by the oracle callback path. Never deleted.
type RandomnessRequest struct {
	ID        uint64 `json:"id"`
	Requester string `json:"requester"` // component identity ("vend" | "raffle")
	WordCount uint32 `json:"wordCount"`
	CreatedAt int64  `json:"createdAt"` // unix seconds
	Fulfilled bool   `json:"fulfilled"`
}

// ---- Vending ----

type Tier struct {
	Price    uint64 `json:"price"`
	MinValue uint64 `json:"minValue"`
	MaxValue uint64 `json:"maxValue"`
	Active   bool   `json:"active"`
}

// Purchase is keyed by its randomness request id. Fulfilled transitions
// false -> true exactly once, either via the oracle callback or via one of
// the emergency paths; it is the one-shot settlement guard.
type Purchase struct {
	RequestID  uint64 `json:"requestId"`
	Buyer      string `json:"buyer"`
	TierID     uint32 `json:"tierId"`
	AmountPaid uint64 `json:"amountPaid"`
	CreatedAt  int64  `json:"createdAt"`

	Fulfilled   bool     `json:"fulfilled"`
	Refunded    bool     `json:"refunded,omitempty"`
	Emergency   bool     `json:"emergency,omitempty"` // settled via the admin fallback, not the oracle
	PayoutSeed  []uint64 `json:"payoutSeed,omitempty"`
	PayoutValue uint64   `json:"payoutValue,omitempty"`
}

// ---- Raffle ----

type RaffleStatus string

const (
	// RaffleOpen: selling tickets.
	RaffleOpen RaffleStatus = "open"
	// RaffleFilled: capacity reached or expiry finalized with minimum met;
	// a randomness request is outstanding.
	RaffleFilled RaffleStatus = "filled"
	// RaffleSettled: winner paid, terminal.
	RaffleSettled RaffleStatus = "settled"
	// RaffleCancelled: participants refunded, terminal.
	RaffleCancelled RaffleStatus = "cancelled"
)

type Raffle struct {
	ID      uint64 `json:"id"`
	Creator string `json:"creator"`
	Asset   string `json:"asset"` // denom tickets are priced in

	TicketPrice uint64 `json:"ticketPrice"`
	MaxTickets  uint32 `json:"maxTickets"`
	MinTickets  uint32 `json:"minTickets"`
	MaxPerUser  uint32 `json:"maxPerUser"`

	TicketsSold uint32 `json:"ticketsSold"`
	Pool        uint64 `json:"pool"`

	// Tickets maps ticket index -> buyer. Append-only while open.
	Tickets []string `json:"tickets,omitempty"`

	Status    RaffleStatus `json:"status"`
	StartTime int64        `json:"startTime"`
	EndTime   int64        `json:"endTime"`

	// Draw bookkeeping (set when status becomes filled).
	RequestID       uint64 `json:"requestId,omitempty"`
	DrawRequestedAt int64  `json:"drawRequestedAt,omitempty"`

	// Settlement results.
	Winner      string `json:"winner,omitempty"`
	WinnerIndex uint32 `json:"winnerIndex,omitempty"`
	HouseFee    uint64 `json:"houseFee,omitempty"`
	Prize       uint64 `json:"prize,omitempty"`
	Emergency   bool   `json:"emergency,omitempty"`
}

// TicketCount returns how many tickets addr holds.
func (r *Raffle) TicketCount(addr string) uint32 {
	var n uint32
	for _, t := range r.Tickets {
		if t == addr {
			n++
		}
	}
	return n
}

// Participants returns the unique ticket holders in lexicographic order.
// The sorted order keeps refund iteration deterministic.
func (r *Raffle) Participants() []string {
	seen := map[string]bool{}
	out := []string{}
	for _, t := range r.Tickets {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// ---- Auction ----

// Bid slice order is arrival order; ranking ties are broken by it.
type Bid struct {
	Bidder string `json:"bidder"`
	Item   string `json:"item"`
	Amount uint64 `json:"amount"`
}

type Auction struct {
	ID        uint64 `json:"id"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
	SlotCount uint32 `json:"slotCount"`
	MinBid    uint64 `json:"minBid"`

	Bids      []Bid `json:"bids,omitempty"`
	Finalized bool  `json:"finalized,omitempty"`
	Winners   []Bid `json:"winners,omitempty"`
}

// FindBid returns the index of bidder's active bid, or -1.
func (a *Auction) FindBid(bidder string) int {
	for i := range a.Bids {
		if a.Bids[i].Bidder == bidder {
			return i
		}
	}
	return -1
}

// ---- Treasury ----

// TreasuryState carries the audit counters around the custodial balance held
// at the treasury module account. The balance itself lives in the bank.
type TreasuryState struct {
	// Funders allowed to call treasury/fund.
	Funders map[string]bool `json:"funders,omitempty"`

	DepositedPerAsset map[string]uint64            `json:"depositedPerAsset,omitempty"`
	FundedPerAsset    map[string]uint64            `json:"fundedPerAsset,omitempty"`
	FundedPerDest     map[string]map[string]uint64 `json:"fundedPerDest,omitempty"` // dest -> asset -> cumulative
}

func NewTreasuryState() *TreasuryState {
	return &TreasuryState{
		Funders:           map[string]bool{},
		DepositedPerAsset: map[string]uint64{},
		FundedPerAsset:    map[string]uint64{},
		FundedPerDest:     map[string]map[string]uint64{},
	}
}

func (t *TreasuryState) normalize() {
	if t.Funders == nil {
		t.Funders = map[string]bool{}
	}
	if t.DepositedPerAsset == nil {
		t.DepositedPerAsset = map[string]uint64{}
	}
	if t.FundedPerAsset == nil {
		t.FundedPerAsset = map[string]uint64{}
	}
	if t.FundedPerDest == nil {
		t.FundedPerDest = map[string]map[string]uint64{}
	}
}

// normTreasuryState is the sorted-slice view used for the app hash.
type normTreasuryState struct {
	Funders       []string    `json:"funders,omitempty"`
	Deposited     []assetAmt  `json:"deposited,omitempty"`
	Funded        []assetAmt  `json:"funded,omitempty"`
	FundedPerDest []destAsset `json:"fundedPerDest,omitempty"`
}

type assetAmt struct {
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

type destAsset struct {
	Dest   string `json:"dest"`
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

func sortedAssetAmts(m map[string]uint64) []assetAmt {
	out := make([]assetAmt, 0, len(m))
	for k, v := range m {
		out = append(out, assetAmt{Asset: k, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

func (t *TreasuryState) normalized() *normTreasuryState {
	if t == nil {
		return nil
	}
	funders := make([]string, 0, len(t.Funders))
	for addr, ok := range t.Funders {
		if ok {
			funders = append(funders, addr)
		}
	}
	sort.Strings(funders)

	perDest := make([]destAsset, 0, len(t.FundedPerDest))
	for dest, assets := range t.FundedPerDest {
		for asset, amt := range assets {
			perDest = append(perDest, destAsset{Dest: dest, Asset: asset, Amount: amt})
		}
	}
	sort.Slice(perDest, func(i, j int) bool {
		if perDest[i].Dest != perDest[j].Dest {
			return perDest[i].Dest < perDest[j].Dest
		}
		return perDest[i].Asset < perDest[j].Asset
	})

	return &normTreasuryState{
		Funders:       funders,
		Deposited:     sortedAssetAmts(t.DepositedPerAsset),
		Funded:        sortedAssetAmts(t.FundedPerAsset),
		FundedPerDest: perDest,
	}
}
