package app

import (
	"prizevault/chain/internal/state"
)

// requestTimedOut reports whether the emergency path for req is callable:
// the fixed wait period from the time of the request has elapsed.
func requestTimedOut(st *state.State, req *state.RandomnessRequest, nowUnix int64) (bool, error) {
	if req == nil {
		return false, ErrRequestNotFound
	}
	deadline, err := addInt64AndU64Checked(req.CreatedAt, st.Params.RequestTimeoutSecs, "request timeout deadline")
	if err != nil {
		return false, err
	}
	return nowUnix >= deadline, nil
}

func requireRequestTimedOut(st *state.State, requestID uint64, nowUnix int64) error {
	req := st.Requests[requestID]
	if req == nil {
		return ErrRequestNotFound
	}
	if req.Fulfilled {
		return ErrRequestFulfilled
	}
	ok, err := requestTimedOut(st, req, nowUnix)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRequestNotTimedOut
	}
	return nil
}
