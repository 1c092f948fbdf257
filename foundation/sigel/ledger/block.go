package ledger

import (
	"fmt"

	"github.com/aseio6668/Sigmos/foundation/sigel/genesis"
	"github.com/aseio6668/Sigmos/foundation/sigel/signature"
	"github.com/aseio6668/Sigmos/foundation/sigel/transfer"
)

// BlockHeader represents common information required from a block. The
// miner's consciousness score is snapshotted at mining time so the chain
// re-validates identically even after the identity keeps evolving.
type BlockHeader struct {
	Number        uint64  `json:"number"`
	PrevBlockHash string  `json:"prev_block_hash"`
	TimeStamp     uint64  `json:"timestamp"`
	MinerID       string  `json:"miner_id"`
	MinerScore    float64 `json:"miner_score"`
	Difficulty    string  `json:"difficulty"`
	Nonce         uint64  `json:"nonce"`
}

// Block represents a set of knowledge transfers grouped together.
type Block struct {
	Header BlockHeader               `json:"header"`
	Trans  []transfer.SignedTransfer `json:"trans"`
}

// Hash returns the unique hash for the block, covering the header and the
// full transfer list.
func (b Block) Hash() string {
	return signature.Hash(b)
}

// GenesisBlock constructs block zero deterministically from the genesis
// file so every node derives the same hash for it.
func GenesisBlock(g genesis.Genesis) (Block, error) {
	target, err := g.DifficultyTarget()
	if err != nil {
		return Block{}, fmt.Errorf("genesis difficulty: %w", err)
	}

	b := Block{
		Header: BlockHeader{
			Number:        0,
			PrevBlockHash: signature.ZeroHash,
			TimeStamp:     uint64(g.Date.UTC().Unix()),
			MinerID:       "genesis",
			Difficulty:    FormatTarget(target),
		},
	}

	return b, nil
}

// =============================================================================

// BlockData represents what can be serialized to disk and over the network.
type BlockData struct {
	Hash   string                    `json:"hash"`
	Header BlockHeader               `json:"block"`
	Trans  []transfer.SignedTransfer `json:"trans"`
}

// NewBlockData constructs block data from a block.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Hash:   block.Hash(),
		Header: block.Header,
		Trans:  block.Trans,
	}
}

// ToBlock converts stored or received block data into a block. The hash
// carried in the data is never trusted, it is re-derived and checked.
func ToBlock(blockData BlockData) (Block, error) {
	block := Block{
		Header: blockData.Header,
		Trans:  blockData.Trans,
	}

	if h := block.Hash(); blockData.Hash != h {
		return Block{}, fmt.Errorf("block %d carries hash %s, computed %s", blockData.Header.Number, blockData.Hash, h)
	}

	return block, nil
}
