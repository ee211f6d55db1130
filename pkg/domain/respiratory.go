package domain

import "time"

// RespiratoryStatus is the severity assigned to a breathing rate.
type RespiratoryStatus string

const (
	StatusNormal  RespiratoryStatus = "normal"
	StatusCaution RespiratoryStatus = "caution"
	StatusAlert   RespiratoryStatus = "alert"
)

// Valid reports whether s is a known status.
func (s RespiratoryStatus) Valid() bool {
	switch s {
	case StatusNormal, StatusCaution, StatusAlert:
		return true
	}
	return false
}

// CatState is the behavioural state the animal was in while being counted.
type CatState string

const (
	CatSleeping CatState = "sleeping"
	CatResting  CatState = "resting"
	CatAwake    CatState = "awake"
)

// Valid reports whether c is empty or a known state.
func (c CatState) Valid() bool {
	switch c {
	case "", CatSleeping, CatResting, CatAwake:
		return true
	}
	return false
}

// Breathing-rate band edges in breaths per minute. CautionLow equals
// NormalLow, so the low caution band is empty; the values are kept as
// published.
const (
	RateCriticalLow  = 15.0
	RateCautionLow   = 20.0
	RateNormalLow    = 20.0
	RateNormalHigh   = 30.0
	RateCautionHigh  = 40.0
	RateCriticalHigh = 40.0
)

// MeasurementDuration is the counting window used by the respiratory check.
const MeasurementDuration = 30 * time.Second

// RatePerMinute converts a breath count taken over MeasurementDuration to
// breaths per minute.
func RatePerMinute(count int) float64 {
	return float64(count) * float64(time.Minute) / float64(MeasurementDuration)
}

// ClassifyRespiratoryRate maps a breathing rate to its status band:
//
//	rate < 15 or rate > 40  alert
//	30 < rate <= 40         caution
//	everything else         normal
//
// The low caution band [CautionLow, NormalLow) never matches, so rates in
// [15, 20) classify as normal. NaN fails every comparison and is normal.
func ClassifyRespiratoryRate(rate float64) RespiratoryStatus {
	if rate < RateCriticalLow || rate > RateCriticalHigh {
		return StatusAlert
	}
	if (rate >= RateCautionLow && rate < RateNormalLow) ||
		(rate > RateNormalHigh && rate <= RateCautionHigh) {
		return StatusCaution
	}
	return StatusNormal
}
