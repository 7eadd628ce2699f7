package predictor

import (
	"math"
	"time"

	"strata/internal/tier"
)

// varianceFloor keeps per-class variances strictly positive.
const varianceFloor = 1e-9

type sample struct {
	features featureVector
	label    tier.Tier
}

type classStats struct {
	prior    float64
	mean     featureVector
	variance featureVector
}

// model is an immutable trained Gaussian naive Bayes classifier over
// standardized features. Swapped atomically; never mutated after fit.
type model struct {
	classes       []tier.Tier
	stats         map[tier.Tier]classStats
	featureMean   featureVector
	featureStd    featureVector
	version       string
	trainedAt     time.Time
	trainAccuracy float64
	testAccuracy  float64
	trainSamples  int
	testSamples   int
}

// fit estimates standardization parameters and per-class Gaussians from the
// training set.
func fit(train []sample, version string, trainedAt time.Time) *model {
	m := &model{
		stats:        make(map[tier.Tier]classStats),
		version:      version,
		trainedAt:    trainedAt,
		trainSamples: len(train),
	}

	for i := 0; i < featureCount; i++ {
		var sum float64
		for _, s := range train {
			sum += s.features[i]
		}
		mean := sum / float64(len(train))
		var sq float64
		for _, s := range train {
			d := s.features[i] - mean
			sq += d * d
		}
		std := math.Sqrt(sq / float64(len(train)))
		if std == 0 {
			std = 1
		}
		m.featureMean[i] = mean
		m.featureStd[i] = std
	}

	byClass := make(map[tier.Tier][]featureVector)
	for _, s := range train {
		byClass[s.label] = append(byClass[s.label], m.standardize(s.features))
	}
	for _, class := range tier.All() {
		vectors, ok := byClass[class]
		if !ok {
			continue
		}
		stats := classStats{prior: float64(len(vectors)) / float64(len(train))}
		for i := 0; i < featureCount; i++ {
			var sum float64
			for _, v := range vectors {
				sum += v[i]
			}
			mean := sum / float64(len(vectors))
			var sq float64
			for _, v := range vectors {
				d := v[i] - mean
				sq += d * d
			}
			variance := sq / float64(len(vectors))
			if variance < varianceFloor {
				variance = varianceFloor
			}
			stats.mean[i] = mean
			stats.variance[i] = variance
		}
		m.stats[class] = stats
		m.classes = append(m.classes, class)
	}
	return m
}

func (m *model) standardize(f featureVector) featureVector {
	var out featureVector
	for i := 0; i < featureCount; i++ {
		out[i] = (f[i] - m.featureMean[i]) / m.featureStd[i]
	}
	return out
}

// predict returns the argmax class and per-class confidences normalized to
// sum to one.
func (m *model) predict(f featureVector) (tier.Tier, map[tier.Tier]float64) {
	x := m.standardize(f)

	logPosteriors := make(map[tier.Tier]float64, len(m.classes))
	maxLog := math.Inf(-1)
	for _, class := range m.classes {
		stats := m.stats[class]
		lp := math.Log(stats.prior)
		for i := 0; i < featureCount; i++ {
			d := x[i] - stats.mean[i]
			lp += -0.5*math.Log(2*math.Pi*stats.variance[i]) - d*d/(2*stats.variance[i])
		}
		logPosteriors[class] = lp
		if lp > maxLog {
			maxLog = lp
		}
	}

	confidences := make(map[tier.Tier]float64, len(tier.All()))
	var total float64
	for _, class := range m.classes {
		p := math.Exp(logPosteriors[class] - maxLog)
		confidences[class] = p
		total += p
	}
	for _, class := range tier.All() {
		if _, ok := confidences[class]; ok {
			confidences[class] /= total
		} else {
			confidences[class] = 0
		}
	}

	best := m.classes[0]
	for _, class := range m.classes {
		if confidences[class] > confidences[best] {
			best = class
		}
	}
	return best, confidences
}

// accuracy scores the model against labeled samples.
func (m *model) accuracy(samples []sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var correct int
	for _, s := range samples {
		predicted, _ := m.predict(s.features)
		if predicted == s.label {
			correct++
		}
	}
	return float64(correct) / float64(len(samples))
}
