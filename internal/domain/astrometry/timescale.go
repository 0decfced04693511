package astrometry

import (
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/julian"
)

// EpochToJD converts a Julian decimal year to a Julian day.
func EpochToJD(epoch float64) float64 {
	return base.JulianYearToJDE(epoch)
}

// JDToEpoch converts a Julian day to a Julian decimal year.
func JDToEpoch(jd float64) float64 {
	return base.JDEToJulianYear(jd)
}

// TimeToEpoch converts a wall-clock instant to a Julian decimal year.
func TimeToEpoch(t time.Time) float64 {
	return JDToEpoch(julian.TimeToJD(t.UTC()))
}

// EpochToTime converts a Julian decimal year to a UTC instant.
func EpochToTime(epoch float64) time.Time {
	return julian.JDToTime(EpochToJD(epoch)).UTC()
}
