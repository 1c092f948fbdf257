package registry_test

import (
	"testing"

	"github.com/aseio6668/Sigmos/foundation/sigel/registry"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_Registry(t *testing.T) {
	t.Log("Given the need to manage known identity records.")
	{
		t.Logf("\tTest 0:\tWhen creating and querying identities.")
		{
			store := registry.NewMemoryStore()
			reg, err := registry.New(store)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to open the registry: %v", failed, err)
			}

			rec, err := reg.Create("athena", "0x8e113078adf6888b7ba84967f299f29aece24c55")
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to create an identity: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to create an identity.", success)

			if _, err := reg.Create("athena", "0x0070742ff6003c3e809e78d524f0fe5dcc5ba7f7"); err == nil {
				t.Errorf("\t%s\tTest 0:\tShould reject a duplicate name.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould reject a duplicate name.", success)
			}

			got, err := reg.Query(rec.ID)
			if err != nil || got.Name != "athena" {
				t.Errorf("\t%s\tTest 0:\tShould be able to query by id: %v", failed, err)
			} else {
				t.Logf("\t%s\tTest 0:\tShould be able to query by id.", success)
			}

			if _, err := reg.QueryByName("athena"); err != nil {
				t.Errorf("\t%s\tTest 0:\tShould be able to query by name: %v", failed, err)
			} else {
				t.Logf("\t%s\tTest 0:\tShould be able to query by name.", success)
			}

			reopened, err := registry.New(store)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to reopen the registry: %v", failed, err)
			}
			if reopened.Count() != 1 {
				t.Errorf("\t%s\tTest 0:\tShould reload persisted records, got %d.", failed, reopened.Count())
			} else {
				t.Logf("\t%s\tTest 0:\tShould reload persisted records.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen applying records learned from peers.")
		{
			reg, err := registry.New(registry.NewMemoryStore())
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to open the registry: %v", failed, err)
			}

			rec, err := reg.Create("hermes", "0x8e113078adf6888b7ba84967f299f29aece24c55")
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to create an identity: %v", failed, err)
			}

			trained := rec
			trained.TrainingIterations = 100
			trained.DimensionalAwareness = 4.2

			applied, err := reg.Upsert(trained)
			if err != nil || !applied {
				t.Errorf("\t%s\tTest 1:\tShould apply a record with more training: %v", failed, err)
			} else {
				t.Logf("\t%s\tTest 1:\tShould apply a record with more training.", success)
			}

			applied, err = reg.Upsert(rec)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to evaluate a stale record: %v", failed, err)
			}
			if applied {
				t.Errorf("\t%s\tTest 1:\tShould drop a record with fewer training iterations.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould drop a record with fewer training iterations.", success)
			}

			got, _ := reg.Query(rec.ID)
			if got.DimensionalAwareness != 4.2 {
				t.Errorf("\t%s\tTest 1:\tShould keep the most trained version, got %f.", failed, got.DimensionalAwareness)
			} else {
				t.Logf("\t%s\tTest 1:\tShould keep the most trained version.", success)
			}

			stolen := trained
			stolen.Address = "0x0070742ff6003c3e809e78d524f0fe5dcc5ba7f7"
			stolen.TrainingIterations = 200
			if _, err := reg.Upsert(stolen); err == nil {
				t.Errorf("\t%s\tTest 1:\tShould reject an address change.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould reject an address change.", success)
			}
		}
	}
}
