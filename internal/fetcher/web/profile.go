package web

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// Browser identities rotated weekly so the harvester's fingerprint drifts
// the way a patched desktop browser would.
var userAgentPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0",
}

var acceptLanguagePool = []string{
	"en-US,en;q=0.9",
	"en-US,en;q=0.8",
	"en-US,en;q=0.7",
	"en-US,en;q=0.6",
}

// Profile is the browser identity applied to every request in a run.
type Profile struct {
	UserAgent      string
	AcceptLanguage string
}

// WeeklyProfile deterministically selects a profile for the ISO week
// containing now, evaluated in America/Chicago. Every run within the same
// week presents the same identity.
func WeeklyProfile(now time.Time) Profile {
	idx := weekIndex(now)
	return Profile{
		UserAgent:      userAgentPool[idx%uint64(len(userAgentPool))],
		AcceptLanguage: acceptLanguagePool[idx%uint64(len(acceptLanguagePool))],
	}
}

func weekIndex(now time.Time) uint64 {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		loc = time.UTC
	}
	year, week := now.In(loc).ISOWeek()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d-%d", year, week)))
	return binary.BigEndian.Uint64(sum[:8])
}
