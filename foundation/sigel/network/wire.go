// Package network implements the websocket peer protocol: session handshake,
// request/response correlation, chain sync and gossip relay.
package network

import (
	"encoding/json"
	"fmt"

	"github.com/aseio6668/Sigmos/foundation/sigel/identity"
	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
	"github.com/aseio6668/Sigmos/foundation/sigel/peer"
	"github.com/aseio6668/Sigmos/foundation/sigel/transfer"
	"github.com/google/uuid"
)

// ProtocolVersion is the wire protocol version this node speaks. Peers on a
// different version are rejected during the handshake.
const ProtocolVersion = 1

// MsgType identifies the payload carried by an envelope.
type MsgType string

// The set of messages peers exchange.
const (
	TypeHello            MsgType = "hello"
	TypeStatusRequest    MsgType = "status_request"
	TypeStatusResponse   MsgType = "status_response"
	TypeChainRequest     MsgType = "chain_request"
	TypeChainResponse    MsgType = "chain_response"
	TypeBlockAnnounce    MsgType = "block_announce"
	TypeTransferAnnounce MsgType = "transfer_announce"
	TypeIdentityAnnounce MsgType = "identity_announce"
	TypeIdentityRequest  MsgType = "identity_request"
	TypeIdentityResponse MsgType = "identity_response"
)

// Envelope frames every message on the wire. Responses carry the id of the
// request they answer.
type Envelope struct {
	Version int             `json:"version"`
	Type    MsgType         `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope constructs an envelope around the specified payload with a
// fresh correlation id.
func NewEnvelope(msgType MsgType, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s payload: %w", msgType, err)
	}

	return Envelope{
		Version: ProtocolVersion,
		Type:    msgType,
		ID:      uuid.NewString(),
		Payload: data,
	}, nil
}

// respond constructs an envelope answering the specified request.
func respond(req Envelope, msgType MsgType, payload any) (Envelope, error) {
	env, err := NewEnvelope(msgType, payload)
	if err != nil {
		return Envelope{}, err
	}
	env.ID = req.ID

	return env, nil
}

// Decode unmarshals the envelope payload into the specified value.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", e.Type, err)
	}
	return nil
}

// =============================================================================

// Hello opens every session from both sides.
type Hello struct {
	Version     int    `json:"version"`
	ChainID     uint16 `json:"chain_id"`
	Host        string `json:"host"`
	ChainHeight uint64 `json:"chain_height"`
}

// StatusResponse reports a peer's current view of its chain.
type StatusResponse struct {
	ChainHeight uint64      `json:"chain_height"`
	TipHash     string      `json:"tip_hash"`
	KnownPeers  []peer.Peer `json:"known_peers"`
}

// ChainRequest asks for every block from the given number to the tip.
type ChainRequest struct {
	FromNumber uint64 `json:"from_number"`
}

// ChainResponse carries a contiguous run of blocks.
type ChainResponse struct {
	Blocks []ledger.BlockData `json:"blocks"`
}

// BlockAnnounce gossips a single newly committed block.
type BlockAnnounce struct {
	Block ledger.BlockData `json:"block"`
}

// TransferAnnounce gossips a pending knowledge transfer.
type TransferAnnounce struct {
	Transfer transfer.SignedTransfer `json:"transfer"`
}

// IdentityAnnounce gossips an identity record so registries converge.
type IdentityAnnounce struct {
	Record identity.Record `json:"record"`
}

// IdentityResponse carries every identity record a peer knows.
type IdentityResponse struct {
	Records []identity.Record `json:"records"`
}
