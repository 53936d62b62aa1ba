package app

import errorsmod "cosmossdk.io/errors"

// Registered sentinel errors, one codespace per subsystem. deliverTx maps any
// returned error to a non-zero ABCI code with the message in Log.
var (
	// Broker.
	ErrRequesterNotAllowed = errorsmod.Register("broker", 2, "requester not allow-listed")
	ErrBadWordCount        = errorsmod.Register("broker", 3, "word count out of range")
	ErrRequestNotFound     = errorsmod.Register("broker", 4, "randomness request not found")
	ErrRequestFulfilled    = errorsmod.Register("broker", 5, "randomness request already fulfilled")
	ErrRequestNotTimedOut  = errorsmod.Register("broker", 6, "randomness request not past its timeout")

	// Vending.
	ErrTierNotFound  = errorsmod.Register("vend", 2, "tier not found")
	ErrTierInactive  = errorsmod.Register("vend", 3, "tier inactive")
	ErrTierInvalid   = errorsmod.Register("vend", 4, "invalid tier configuration")
	ErrVendingPaused = errorsmod.Register("vend", 5, "vending paused")
	ErrPurchaseDone  = errorsmod.Register("vend", 6, "purchase already settled")

	// Raffle.
	ErrRaffleNotFound   = errorsmod.Register("raffle", 2, "raffle not found")
	ErrRaffleNotOpen    = errorsmod.Register("raffle", 3, "raffle not open")
	ErrRaffleExpired    = errorsmod.Register("raffle", 4, "raffle expired")
	ErrRaffleInvalid    = errorsmod.Register("raffle", 5, "invalid raffle configuration")
	ErrTicketCap        = errorsmod.Register("raffle", 6, "ticket count exceeds per-user cap")
	ErrTicketCapacity   = errorsmod.Register("raffle", 7, "ticket count exceeds remaining capacity")
	ErrRaffleSettled    = errorsmod.Register("raffle", 8, "raffle already settled")
	ErrRaffleNotDrawing = errorsmod.Register("raffle", 9, "raffle has no outstanding draw")
	ErrNotFinalizable   = errorsmod.Register("raffle", 10, "raffle not finalizable by caller")

	// Auction.
	ErrAuctionClosed     = errorsmod.Register("auction", 2, "auction window closed")
	ErrBidTooLow         = errorsmod.Register("auction", 3, "bid below minimum")
	ErrBidNotRaised      = errorsmod.Register("auction", 4, "bid must strictly exceed current bid")
	ErrAuctionNotExpired = errorsmod.Register("auction", 5, "auction window not yet elapsed")
	ErrAuctionFinalized  = errorsmod.Register("auction", 6, "auction already finalized")

	// Treasury.
	ErrFunderNotAllowed = errorsmod.Register("treasury", 2, "caller not allow-listed for funding")
	ErrLengthMismatch   = errorsmod.Register("treasury", 3, "assets/amounts length mismatch")
	ErrTreasuryShort    = errorsmod.Register("treasury", 4, "treasury balance short for requested asset")

	// Auth.
	ErrUnauthorized = errorsmod.Register("auth", 2, "unauthorized")
)
