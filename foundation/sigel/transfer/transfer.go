// Package transfer implements the knowledge transfer protocol. A transfer
// is an immutable record of knowledge moving from one Sigel to another. It
// only becomes durable once it is embedded in a committed block; a prepared
// but unembedded transfer has no effect and is not retried by this package.
package transfer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/aseio6668/Sigmos/foundation/sigel/signature"
)

// Transfer carries a discrete piece of knowledge between two identities.
// The five fields below define the transfer's content identity: applying
// the same transfer twice is a no-op, keyed by content, not arrival count.
type Transfer struct {
	FromID    string `json:"from_id"`
	ToID      string `json:"to_id"`
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
	CreatedAt int64  `json:"created_at"` // Unix nanoseconds when the transfer was prepared.
}

// Prepare stamps a creation time and returns the immutable record.
func Prepare(fromID string, toID string, topic string, payload []byte) Transfer {
	return Transfer{
		FromID:    fromID,
		ToID:      toID,
		Topic:     topic,
		Payload:   payload,
		CreatedAt: time.Now().UTC().UnixNano(),
	}
}

// ContentID returns the hash that identifies this transfer by content.
func (t Transfer) ContentID() string {
	return signature.Hash(t)
}

// Sign uses the from identity's private key to sign the transfer.
func (t Transfer) Sign(privateKey *ecdsa.PrivateKey) (SignedTransfer, error) {
	if err := t.checkShape(); err != nil {
		return SignedTransfer{}, err
	}

	v, r, s, err := signature.Sign(t, privateKey)
	if err != nil {
		return SignedTransfer{}, err
	}

	st := SignedTransfer{
		Transfer: t,
		V:        v,
		R:        r,
		S:        s,
	}

	return st, nil
}

// checkShape validates the transfer fields that must always be present.
func (t Transfer) checkShape() error {
	if t.FromID == "" || t.ToID == "" {
		return errors.New("from and to identities are required")
	}

	if t.FromID == t.ToID {
		return errors.New("transfer to self is not allowed")
	}

	if t.Topic == "" {
		return errors.New("topic is required")
	}

	if len(t.Payload) == 0 {
		return errors.New("payload is required")
	}

	return nil
}

// =============================================================================

// SignedTransfer is a signed version of the knowledge transfer. This is how
// clients provide transfers for inclusion into the ledger.
type SignedTransfer struct {
	Transfer
	V *big.Int `json:"v"` // Recovery identifier, either 31 or 32 with sigmosID.
	R *big.Int `json:"r"` // First coordinate of the ECDSA signature.
	S *big.Int `json:"s"` // Second coordinate of the ECDSA signature.
}

// Validate verifies the transfer is well formed and carries a proper
// signature. Identity resolution and duplicate checks belong to the
// ledger, which has the chain and registry context.
func (st SignedTransfer) Validate() error {
	if err := st.checkShape(); err != nil {
		return err
	}

	if err := signature.VerifySignature(st.V, st.R, st.S); err != nil {
		return err
	}

	return nil
}

// FromAddress extracts the address of the identity that signed the transfer.
func (st SignedTransfer) FromAddress() (string, error) {
	return signature.FromAddress(st.Transfer, st.V, st.R, st.S)
}

// SignatureString returns the signature as a string.
func (st SignedTransfer) SignatureString() string {
	return signature.SignatureString(st.V, st.R, st.S)
}

// String implements the fmt.Stringer interface for logging.
func (st SignedTransfer) String() string {
	return fmt.Sprintf("%s->%s:%s", st.FromID, st.ToID, st.Topic)
}
