package combat

import "testing"

func TestDeriveSeedDeterministic(t *testing.T) {
	const millis = int64(1717171717000)

	first := DeriveSeed(millis, "player-alpha", "player-beta")
	second := DeriveSeed(millis, "player-alpha", "player-beta")
	if first != second {
		t.Fatalf("same inputs produced different seeds: %d vs %d", first, second)
	}
}

func TestDeriveSeedOrderSensitive(t *testing.T) {
	const millis = int64(1717171717000)

	forward := DeriveSeed(millis, "player-alpha", "player-beta")
	reversed := DeriveSeed(millis, "player-beta", "player-alpha")
	if forward == reversed {
		t.Fatalf("swapping participants must change the seed, both got %d", forward)
	}
}

func TestDeriveSeedVariesWithTimestamp(t *testing.T) {
	first := DeriveSeed(1717171717000, "player-alpha", "player-beta")
	second := DeriveSeed(1717171717001, "player-alpha", "player-beta")
	if first == second {
		t.Fatalf("different timestamps produced the same seed %d", first)
	}
}
