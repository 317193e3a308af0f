package cache

import (
	"fmt"
	"net/url"
)

// Every key is scoped by the snapshot fingerprint so results from an older
// catalogue are never served.

func KeyStatistics(fingerprint, bus string) string {
	return fmt.Sprintf("%s:bus:%s", fingerprint, url.QueryEscape(bus))
}

func KeyStopBuses(fingerprint, stop string) string {
	return fmt.Sprintf("%s:stop:%s", fingerprint, url.QueryEscape(stop))
}

func KeyItinerary(fingerprint, from, to string) string {
	return fmt.Sprintf("%s:route:%s:%s", fingerprint, url.QueryEscape(from), url.QueryEscape(to))
}

func KeyWarmedAt(fingerprint string) string {
	return fingerprint + ":warmed_at"
}
