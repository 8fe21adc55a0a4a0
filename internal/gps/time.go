// Package gps holds the GPS helpers used to synthesize the GPSINFO, GPSRAW
// and GPSPOS blocks: GPS time, WGS84 conversions and observable packing.
package gps

import "time"

// LeapSeconds is the GPS-UTC offset used by the sondes in service.
const LeapSeconds = 18

// WeekMillis is the length of one GPS week in milliseconds.
const WeekMillis = 7 * 24 * 3600 * 1000

// lastSecondOfWeek is the time of week after which Advance rolls the week.
const lastSecondOfWeek = WeekMillis - 1000

// Epoch is the start of GPS time.
var Epoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// UTCToGPS converts a UTC instant to GPS week and milliseconds of week.
func UTCToGPS(utc time.Time, leap int) (week int, ms uint32) {
	d := utc.Sub(Epoch) + time.Duration(leap)*time.Second
	total := d.Milliseconds()
	week = int(total / WeekMillis)
	ms = uint32(total % WeekMillis)
	return week, ms
}

// GPSToUTC converts GPS week and milliseconds of week to UTC.
func GPSToUTC(week int, ms uint32, leap int) time.Time {
	return Epoch.
		Add(time.Duration(week) * 7 * 24 * time.Hour).
		Add(time.Duration(ms) * time.Millisecond).
		Add(-time.Duration(leap) * time.Second)
}

// Advance moves GPS time forward by one second, rolling into the next week
// after the last second of the current one.
func Advance(week int, ms uint32) (int, uint32) {
	if ms >= lastSecondOfWeek {
		return week + 1, 0
	}
	return week, ms + 1000
}
