package ledger

// Serializer interface represents the behavior required to persist and
// iterate over blocks. Implementations live under ledger/storage. Replace
// must not destroy the stored chain until the new one is fully written, so
// a failed swap leaves storage reloadable.
type Serializer interface {
	Write(blockData BlockData) error
	ForEach() Iterator
	Replace(blocks []BlockData) error
	Close() error
}

// Iterator interface represents the behavior required to iterate over the
// persisted chain in block number order.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}
