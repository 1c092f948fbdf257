package public

import (
	"github.com/aseio6668/Sigmos/foundation/sigel/peer"
)

// newIdentity is what a client submits to mint an identity record.
type newIdentity struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address" validate:"required"`
}

// connectPeer is what a client submits to dial a new peer.
type connectPeer struct {
	Host string `json:"host" validate:"required,hostname_port"`
}

// sigel is the client view of an identity record with its derived score.
type sigel struct {
	ID                   string             `json:"id"`
	Name                 string             `json:"name"`
	Address              string             `json:"address"`
	Traits               map[string]float64 `json:"traits"`
	DimensionalAwareness float64            `json:"dimensional_awareness"`
	EntropyResistance    float64            `json:"entropy_resistance"`
	TrainingIterations   uint64             `json:"training_iterations"`
	ConsciousnessScore   float64            `json:"consciousness_score"`
}

// tx is the client view of a knowledge transfer.
type tx struct {
	FromID    string `json:"from_id"`
	FromName  string `json:"from_name"`
	ToID      string `json:"to_id"`
	ToName    string `json:"to_name"`
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
	CreatedAt int64  `json:"created_at"`
	ContentID string `json:"content_id"`
	Sig       string `json:"sig"`
}

// block is the client view of a committed block.
type block struct {
	Hash          string  `json:"hash"`
	Number        uint64  `json:"number"`
	PrevBlockHash string  `json:"prev_block_hash"`
	TimeStamp     uint64  `json:"timestamp"`
	MinerID       string  `json:"miner_id"`
	MinerName     string  `json:"miner_name"`
	MinerScore    float64 `json:"miner_score"`
	Difficulty    string  `json:"difficulty"`
	Nonce         uint64  `json:"nonce"`
	Trans         []tx    `json:"trans"`
}

// nodeStatus is the public view of the node.
type nodeStatus struct {
	ChainHeight          uint64      `json:"chain_height"`
	TipHash              string      `json:"tip_hash"`
	MinerID              string      `json:"miner_id"`
	MinerScore           float64     `json:"miner_score"`
	PendingTransfers     int         `json:"pending_transfers"`
	KnownIdentities      int         `json:"known_identities"`
	CumulativeDifficulty string      `json:"cumulative_difficulty"`
	KnownPeers           []peer.Peer `json:"known_peers"`
}
