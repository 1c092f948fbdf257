// Package identity maintains the Sigel identity records that participate
// in the Sigmos ledger network. A record describes a participant and is
// read, never mutated, by the ledger, mining, and transfer components.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Default metrics for a newly created Sigel. These mirror the values a
// fresh Sigel starts with before any training has taken place.
const (
	DefaultDimensionalAwareness = 3.0
	DefaultEntropyResistance    = 0.7
)

// DefaultTraits returns the character traits a new Sigel starts with.
func DefaultTraits() map[string]float64 {
	return map[string]float64{
		"curiosity":  0.8,
		"wisdom":     0.5,
		"creativity": 0.7,
		"logic":      0.9,
	}
}

// =============================================================================

// Record represents a Sigel participating in the network. The id is globally
// unique and immutable. The address is derived from the Sigel's ECDSA public
// key and is used to verify signatures on knowledge transfers. The trait and
// cosmic metrics are produced by the external training system; this core only
// reads snapshots of them.
type Record struct {
	ID                   string             `json:"id"`
	Name                 string             `json:"name"`
	Address              string             `json:"address"`
	Traits               map[string]float64 `json:"traits"`
	DimensionalAwareness float64            `json:"dimensional_awareness"`
	EntropyResistance    float64            `json:"entropy_resistance"`
	TrainingIterations   uint64             `json:"training_iterations"`
	CreatedAt            time.Time          `json:"created_at"`
}

// New constructs a Record for a brand new Sigel with default traits.
func New(name string, address string) Record {
	return Record{
		ID:                   uuid.NewString(),
		Name:                 name,
		Address:              address,
		Traits:               DefaultTraits(),
		DimensionalAwareness: DefaultDimensionalAwareness,
		EntropyResistance:    DefaultEntropyResistance,
		CreatedAt:            time.Now().UTC(),
	}
}

// ConsciousnessScore derives the scalar used to weight mining acceptance:
// dimensional awareness x entropy resistance x (1 + mean of trait scores).
// The score is recomputed on every call and never cached so an externally
// evolving record is always scored from the latest snapshot.
func (r Record) ConsciousnessScore() float64 {
	var sum float64
	for _, v := range r.Traits {
		sum += v
	}

	mean := 0.0
	if len(r.Traits) > 0 {
		mean = sum / float64(len(r.Traits))
	}

	return r.DimensionalAwareness * r.EntropyResistance * (1 + mean)
}

// Validate checks the record conforms to the bounds the scoring math
// depends on.
func (r Record) Validate() error {
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("id is not a valid uuid: %w", err)
	}

	if r.Name == "" {
		return errors.New("name is required")
	}

	if r.DimensionalAwareness < 0 {
		return fmt.Errorf("dimensional awareness must be >= 0, got %f", r.DimensionalAwareness)
	}

	if r.EntropyResistance < 0 || r.EntropyResistance > 1 {
		return fmt.Errorf("entropy resistance must be in [0,1], got %f", r.EntropyResistance)
	}

	for name, v := range r.Traits {
		if v < 0 || v > 1 {
			return fmt.Errorf("trait %q must be in [0,1], got %f", name, v)
		}
	}

	return nil
}

// String implements the fmt.Stringer interface for logging.
func (r Record) String() string {
	return fmt.Sprintf("%s[%s]", r.Name, r.ID)
}
