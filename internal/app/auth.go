package app

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"strconv"

	"prizevault/chain/internal/codec"
	"prizevault/chain/internal/state"
)

const txAuthDomainV0 = "pv/tx/v0"

func txAuthSignBytesV0(typ string, value []byte, nonce string, signer string) []byte {
	// signBytes = DOMAIN || 0x00 || type || 0x00 || nonce || 0x00 || signer || 0x00 || sha256(value)
	sum := sha256.Sum256(value)
	out := make([]byte, 0, len(txAuthDomainV0)+1+len(typ)+1+len(nonce)+1+len(signer)+1+sha256.Size)
	out = append(out, []byte(txAuthDomainV0)...)
	out = append(out, 0)
	out = append(out, []byte(typ)...)
	out = append(out, 0)
	out = append(out, []byte(nonce)...)
	out = append(out, 0)
	out = append(out, []byte(signer)...)
	out = append(out, 0)
	out = append(out, sum[:]...)
	return out
}

func requireSignedEnvelope(env codec.TxEnvelope) error {
	if env.Nonce == "" {
		return fmt.Errorf("missing tx.nonce")
	}
	if env.Signer == "" {
		return fmt.Errorf("missing tx.signer")
	}
	if len(env.Sig) == 0 {
		return fmt.Errorf("missing tx.sig")
	}
	if len(env.Sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid tx.sig length: got %d want %d", len(env.Sig), ed25519.SignatureSize)
	}
	return nil
}

func requireRegisterAccountAuth(env codec.TxEnvelope, msg codec.AuthRegisterAccountTx) error {
	if msg.Account == "" {
		return fmt.Errorf("missing account")
	}
	if len(msg.PubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("pubKey must be %d bytes", ed25519.PublicKeySize)
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != msg.Account {
		return fmt.Errorf("tx signer mismatch: signer=%q want=%q", env.Signer, msg.Account)
	}
	pub := ed25519.PublicKey(msg.PubKey)
	msgBytes := txAuthSignBytesV0(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(pub, msgBytes, env.Sig) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

func requireAccountAuth(st *state.State, env codec.TxEnvelope, account string) error {
	if st == nil {
		return fmt.Errorf("state is nil")
	}
	if account == "" {
		return fmt.Errorf("missing account")
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != account {
		return fmt.Errorf("tx signer mismatch: signer=%q want=%q", env.Signer, account)
	}
	pub := st.AccountKeys[account]
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("account %q missing pubKey (auth/register_account required)", account)
	}
	msg := txAuthSignBytesV0(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, env.Sig) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

// requireAdminAuth gates set*, pause/unpause, withdraw, and emergency-* txs.
func requireAdminAuth(st *state.State, env codec.TxEnvelope) error {
	if st.Params.AdminAccount == "" {
		return ErrUnauthorized.Wrap("no admin account configured")
	}
	if env.Signer != st.Params.AdminAccount {
		return ErrUnauthorized.Wrapf("signer %q is not the admin account", env.Signer)
	}
	return requireAccountAuth(st, env, st.Params.AdminAccount)
}

// requireOracleAuth gates oracle/fulfill.
func requireOracleAuth(st *state.State, env codec.TxEnvelope) error {
	if st.Params.OracleAccount == "" {
		return ErrUnauthorized.Wrap("no oracle account configured")
	}
	if env.Signer != st.Params.OracleAccount {
		return ErrUnauthorized.Wrapf("signer %q is not the oracle account", env.Signer)
	}
	return requireAccountAuth(st, env, st.Params.OracleAccount)
}

// checkAndBumpNonce enforces strictly-increasing nonces per signer on signed
// envelopes, rejecting replayed transactions at the transport layer.
func checkAndBumpNonce(st *state.State, env codec.TxEnvelope) error {
	if env.Signer == "" || env.Nonce == "" {
		return nil
	}
	n, err := strconv.ParseUint(env.Nonce, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid tx.nonce %q: %w", env.Nonce, err)
	}
	if n <= st.NonceMax[env.Signer] {
		return fmt.Errorf("nonce %d not above last accepted %d for signer %q", n, st.NonceMax[env.Signer], env.Signer)
	}
	st.NonceMax[env.Signer] = n
	return nil
}
