package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		active int64
		total  int64
		want   int
	}{
		{"zero total", 0, 0, 0},
		{"zero total with active", 10, 0, 0},
		{"fully active", 300, 300, 100},
		{"fully idle", 0, 300, 0},
		{"half active", 150, 300, 50},
		{"rounds up", 799, 1000, 80},
		{"rounds half up", 795, 1000, 80},
		{"negative active treated as zero", -5, 100, 0},
		{"negative total treated as zero", 10, -1, 0},
		{"active clamped to total", 500, 300, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.active, tt.total))
		})
	}
}

func TestScoreAlwaysInRange(t *testing.T) {
	for total := int64(0); total <= 120; total++ {
		for active := int64(-10); active <= total+10; active++ {
			got := Score(active, total)
			if got < 0 || got > 100 {
				t.Fatalf("Score(%d, %d) = %d, out of [0,100]", active, total, got)
			}
		}
	}
}

func TestClassifyBoundaries(t *testing.T) {
	assert.Equal(t, TierRegular, Classify(79))
	assert.Equal(t, TierProductive, Classify(80))
	assert.Equal(t, TierIdle, Classify(49))
	assert.Equal(t, TierRegular, Classify(50))
	assert.Equal(t, TierIdle, Classify(0))
	assert.Equal(t, TierProductive, Classify(100))
}

func TestEvaluate(t *testing.T) {
	score, tier := Evaluate(240, 300)
	assert.Equal(t, 80, score)
	assert.Equal(t, TierProductive, tier)

	score, tier = Evaluate(0, 0)
	assert.Equal(t, 0, score)
	assert.Equal(t, TierIdle, tier)
}
