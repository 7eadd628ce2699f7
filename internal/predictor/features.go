package predictor

import (
	"math"
	"time"

	"strata/internal/access"
	"strata/internal/store"
)

// featureCount is the fixed width of the feature vector.
const featureCount = 6

// Feature vector indexes.
const (
	featSizeGB = iota
	featAccessCount
	featAccessesPerDay
	featHoursSinceAccess
	featMonthlyCost
	featAgeDays
)

var featureNames = [featureCount]string{
	"size_gb",
	"access_count",
	"accesses_per_day",
	"hours_since_last_access",
	"monthly_cost",
	"age_in_days",
}

// recencyCapHours bounds the recency feature for never-accessed objects so
// the Gaussian statistics stay finite.
const recencyCapHours = access.WindowDays * 24

type featureVector [featureCount]float64

// featuresFor extracts the model inputs for one object.
func featuresFor(obj *store.DataObject, metrics access.Metrics, now time.Time) featureVector {
	hours := metrics.HoursSinceLastAccess
	if math.IsInf(hours, 1) || hours > recencyCapHours {
		hours = recencyCapHours
	}
	age := now.Sub(obj.CreatedAt).Hours() / 24
	if age < 0 {
		age = 0
	}
	return featureVector{
		featSizeGB:           obj.SizeGB(),
		featAccessCount:      float64(obj.AccessCount),
		featAccessesPerDay:   metrics.AccessesPerDay,
		featHoursSinceAccess: hours,
		featMonthlyCost:      obj.MonthlyCost,
		featAgeDays:          age,
	}
}
