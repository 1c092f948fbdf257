package identity_test

import (
	"math"
	"testing"

	"github.com/aseio6668/Sigmos/foundation/sigel/identity"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestConsciousnessScore(t *testing.T) {
	type table struct {
		name   string
		record identity.Record
		score  float64
	}

	tt := []table{
		{
			name: "defaults",
			record: identity.Record{
				Traits:               identity.DefaultTraits(),
				DimensionalAwareness: identity.DefaultDimensionalAwareness,
				EntropyResistance:    identity.DefaultEntropyResistance,
			},
			score: 3.0 * 0.7 * (1 + 0.725),
		},
		{
			name: "no traits",
			record: identity.Record{
				DimensionalAwareness: 2.0,
				EntropyResistance:    0.5,
			},
			score: 1.0,
		},
		{
			name: "zero resistance",
			record: identity.Record{
				Traits:               map[string]float64{"logic": 1},
				DimensionalAwareness: 5.0,
				EntropyResistance:    0,
			},
			score: 0,
		},
	}

	t.Log("Given the need to derive consciousness scores from identity records.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen scoring record %q.", testID, tst.name)
			{
				got := tst.record.ConsciousnessScore()
				if math.Abs(got-tst.score) > 1e-9 {
					t.Errorf("\t%s\tTest %d:\tShould get score %f, got %f.", failed, testID, tst.score, got)
				} else {
					t.Logf("\t%s\tTest %d:\tShould get score %f.", success, testID, tst.score)
				}
			}
		}
	}
}

func TestValidate(t *testing.T) {
	t.Log("Given the need to validate identity records.")
	{
		t.Logf("\tTest 0:\tWhen handling a freshly created record.")
		{
			rec := identity.New("prime", "0x0000000000000000000000000000000000000000")
			if err := rec.Validate(); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould validate a new record: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould validate a new record.", success)

			if rec.ID == "" {
				t.Fatalf("\t%s\tTest 0:\tShould assign a unique id.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould assign a unique id.", success)
		}

		t.Logf("\tTest 1:\tWhen handling out of range trait scores.")
		{
			rec := identity.New("prime", "")
			rec.Traits["curiosity"] = 1.5

			if err := rec.Validate(); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould reject a trait above 1.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould reject a trait above 1.", success)
		}

		t.Logf("\tTest 2:\tWhen handling out of range entropy resistance.")
		{
			rec := identity.New("prime", "")
			rec.EntropyResistance = 1.2

			if err := rec.Validate(); err == nil {
				t.Fatalf("\t%s\tTest 2:\tShould reject entropy resistance above 1.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould reject entropy resistance above 1.", success)
		}
	}
}
