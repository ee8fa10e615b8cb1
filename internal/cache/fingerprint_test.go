package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CorniiDog/lightning-research-application/internal/domain"
)

func TestFingerprintStable(t *testing.T) {
	preds := []domain.Predicate{{Field: "power_db", Op: domain.OpGE, Value: -5}}
	params := domain.DefaultParameters()

	a := Fingerprint(preds, params, "dataset-1")
	b := Fingerprint(preds, params, "dataset-1")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintPredicateOrderInsensitive(t *testing.T) {
	params := domain.DefaultParameters()
	a := Fingerprint([]domain.Predicate{
		{Field: "power_db", Op: domain.OpGE, Value: -5},
		{Field: "alt", Op: domain.OpLE, Value: 12000},
	}, params, "d")
	b := Fingerprint([]domain.Predicate{
		{Field: "alt", Op: domain.OpLE, Value: 12000},
		{Field: "power_db", Op: domain.OpGE, Value: -5},
	}, params, "d")

	assert.Equal(t, a, b)
}

func TestFingerprintSensitivity(t *testing.T) {
	preds := []domain.Predicate{{Field: "power_db", Op: domain.OpGE, Value: -5}}
	params := domain.DefaultParameters()
	base := Fingerprint(preds, params, "d")

	t.Run("predicate value", func(t *testing.T) {
		changed := []domain.Predicate{{Field: "power_db", Op: domain.OpGE, Value: -4}}
		assert.NotEqual(t, base, Fingerprint(changed, params, "d"))
	})

	t.Run("predicate operator", func(t *testing.T) {
		changed := []domain.Predicate{{Field: "power_db", Op: domain.OpGT, Value: -5}}
		assert.NotEqual(t, base, Fingerprint(changed, params, "d"))
	})

	t.Run("data identity", func(t *testing.T) {
		assert.NotEqual(t, base, Fingerprint(preds, params, "d2"))
	})

	// Every parameter field must feed the key.
	mutations := map[string]func(*domain.Parameters){
		"max_lightning_dist":           func(p *domain.Parameters) { p.MaxLightningDist++ },
		"max_lightning_speed":          func(p *domain.Parameters) { p.MaxLightningSpeed++ },
		"min_lightning_speed":          func(p *domain.Parameters) { p.MinLightningSpeed++ },
		"min_lightning_points":         func(p *domain.Parameters) { p.MinLightningPoints++ },
		"max_lightning_time_threshold": func(p *domain.Parameters) { p.MaxLightningTimeThreshold++ },
		"max_lightning_duration":       func(p *domain.Parameters) { p.MaxLightningDuration++ },
		"combine_strikes":              func(p *domain.Parameters) { p.CombineStrikesWithInterceptingTimes = false },
		"intercepting_buffer":          func(p *domain.Parameters) { p.InterceptingTimesExtensionBuffer++ },
		"intercepting_max_distance":    func(p *domain.Parameters) { p.InterceptingTimesExtensionMaxDistance++ },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			changed := params
			mutate(&changed)
			assert.NotEqual(t, base, Fingerprint(preds, changed, "d"))
		})
	}
}
