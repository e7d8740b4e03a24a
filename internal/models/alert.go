package models

import "time"

// AlertRef addresses one alert document inside a city's alert collection.
type AlertRef struct {
	City string
	ID   string
}

// SystemAlert is one outage episode for a city. StationsDown is frozen at
// creation; only LastUpdate moves while the same set stays down.
type SystemAlert struct {
	ID           string
	City         string
	Date         time.Time
	LastUpdate   time.Time
	StationsDown []string
	Description  string
}

// Ref returns the store address of the alert.
func (a SystemAlert) Ref() AlertRef {
	return AlertRef{City: a.City, ID: a.ID}
}
