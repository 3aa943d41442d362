// Package expiry maps symbolic expiration tokens to absolute timestamps.
package expiry

import "time"

// Tokens accepted at link creation. Never yields no expiry at all.
const (
	OneMinute = "1m"
	OneHour   = "1h"
	OneDay    = "1d"
	OneWeek   = "1w"
	TwoWeeks  = "2w"
	Never     = "never"
)

// UnknownTokenError reports an expiration token outside the accepted set.
type UnknownTokenError struct {
	Token string
}

func (e *UnknownTokenError) Error() string {
	return "unknown expiration token: " + e.Token
}

// At returns the absolute expiry for token relative to now.
// Never returns nil. The empty token defaults to Never.
func At(token string, now time.Time) (*time.Time, error) {
	var t time.Time
	switch token {
	case OneMinute:
		t = now.Add(time.Minute)
	case OneHour:
		t = now.Add(time.Hour)
	case OneDay:
		t = now.AddDate(0, 0, 1)
	case OneWeek:
		t = now.AddDate(0, 0, 7)
	case TwoWeeks:
		t = now.AddDate(0, 0, 14)
	case Never, "":
		return nil, nil
	default:
		return nil, &UnknownTokenError{Token: token}
	}
	return &t, nil
}

// Valid reports whether token is an accepted expiration token.
func Valid(token string) bool {
	_, err := At(token, time.Time{})
	return err == nil
}
