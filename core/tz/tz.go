// Package tz converts consensus timestamps into IANA time zones. The
// zone database is embedded so lookups work on hosts without zoneinfo.
package tz

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"
)

// Layout is ISO 8601 with microsecond precision and a numeric offset.
const Layout = "2006-01-02T15:04:05.000000-07:00"

var errEmptyName = errors.New("empty time zone name")

type Info struct {
	Name          string `json:"name"`
	Abbreviation  string `json:"abbreviation"`
	OffsetSeconds int    `json:"offset_seconds"`
	DST           bool   `json:"dst"`
	LocalTime     string `json:"local_time"`
}

func load(name string) (*time.Location, error) {
	if name == "" {
		return nil, errEmptyName
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", name, err)
	}
	return loc, nil
}

// Convert formats t in the named zone.
func Convert(t time.Time, name string) (string, error) {
	loc, err := load(name)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(Layout), nil
}

// Lookup describes the named zone at instant t.
func Lookup(t time.Time, name string) (Info, error) {
	loc, err := load(name)
	if err != nil {
		return Info{}, err
	}
	lt := t.In(loc)
	abbr, off := lt.Zone()
	return Info{
		Name:          loc.String(),
		Abbreviation:  abbr,
		OffsetSeconds: off,
		DST:           lt.IsDST(),
		LocalTime:     lt.Format(Layout),
	}, nil
}
