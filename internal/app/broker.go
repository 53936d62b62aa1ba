package app

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"

	"prizevault/chain/internal/codec"
	"prizevault/chain/internal/state"
)

// Requester component identities. The allow-list is fixed at compile time:
// only the two randomness-consuming engines may open requests.
const (
	requesterVend   = "vend"
	requesterRaffle = "raffle"
)

func requesterAllowed(requester string) bool {
	switch requester {
	case requesterVend, requesterRaffle:
		return true
	default:
		return false
	}
}

// brokerRequest opens a randomness request on behalf of an engine and returns
// the assigned request id. The request record is the suspended continuation:
// the oracle's later fulfill tx re-enters it purely by id lookup.
func brokerRequest(st *state.State, requester string, wordCount uint32, nowUnix int64) (uint64, error) {
	if !requesterAllowed(requester) {
		return 0, ErrRequesterNotAllowed.Wrapf("requester=%q", requester)
	}
	if wordCount == 0 || wordCount > st.Params.MaxRandomWords {
		return 0, ErrBadWordCount.Wrapf("wordCount=%d max=%d", wordCount, st.Params.MaxRandomWords)
	}

	id := st.NextRequestID
	st.NextRequestID++
	st.Requests[id] = &state.RandomnessRequest{
		ID:        id,
		Requester: requester,
		WordCount: wordCount,
		CreatedAt: nowUnix,
		Fulfilled: false,
	}
	return id, nil
}

// applyOracleFulfill resolves a pending request and forwards the values to the
// owning engine.
//
// Unknown or already-fulfilled ids succeed as no-ops so the oracle's own retry
// logic is never stranded on a request this chain has already handled. A
// forwarding failure is swallowed (reported via event, request left pending);
// recovery is each engine's emergency path.
func applyOracleFulfill(st *state.State, msg codec.OracleFulfillTx) (*abci.ExecTxResult, error) {
	req := st.Requests[msg.RequestID]
	if req == nil || req.Fulfilled {
		return okEvent(EventTypeRandomnessFulfilled, map[string]string{
			"requestId": fmt.Sprintf("%d", msg.RequestID),
			"noop":      "true",
		}), nil
	}
	if uint32(len(msg.Values)) != req.WordCount {
		return nil, ErrBadWordCount.Wrapf("got %d values, request wants %d", len(msg.Values), req.WordCount)
	}

	// Snapshot before dispatch: a failed continuation must leave no partial
	// engine mutations behind when the failure is swallowed below.
	pre, err := st.Clone()
	if err != nil {
		return nil, err
	}

	var events []abci.Event
	switch req.Requester {
	case requesterVend:
		events, err = vendOnRandomness(st, msg.RequestID, msg.Values, false)
	case requesterRaffle:
		events, err = raffleOnRandomness(st, msg.RequestID, msg.Values, false)
	default:
		err = ErrRequesterNotAllowed.Wrapf("stored requester=%q", req.Requester)
	}
	if err != nil {
		// Swallowed: the request stays pending for the engine's emergency path.
		// Only the registered codespace/code go into the event, keeping the
		// payload stable; the full error is for the log.
		*st = *pre
		codespace, code, _ := errorsmod.ABCIInfo(err, false)
		return okEvent(EventTypeRandomnessDispatchError, map[string]string{
			"requestId": fmt.Sprintf("%d", msg.RequestID),
			"requester": req.Requester,
			"codespace": codespace,
			"code":      fmt.Sprintf("%d", code),
		}), nil
	}

	req = st.Requests[msg.RequestID]
	req.Fulfilled = true
	res := okEvent(EventTypeRandomnessFulfilled, map[string]string{
		"requestId": fmt.Sprintf("%d", msg.RequestID),
		"requester": req.Requester,
	})
	res.Events = append(res.Events, events...)
	return res, nil
}
