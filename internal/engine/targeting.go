package engine

import (
	"strings"

	"github.com/splitkit/splitkit/internal/store"
)

// VisitorContext is the attribute bag the HTTP layer extracts for a
// visitor. All fields are optional; empty means unknown.
type VisitorContext struct {
	Country   string `json:"country,omitempty"`
	Device    string `json:"device,omitempty"`
	Language  string `json:"language,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	UTMSource string `json:"utm_source,omitempty"`
}

// MatchesAudience reports whether a visitor satisfies an experiment's
// audience rules. An empty or nil audience matches everyone. Every
// populated axis must be satisfied; the referrer axis matches when any
// configured substring appears in the visitor's referrer, all other axes
// are exact membership.
//
// A populated axis with a missing visitor value never matches: visitors
// we cannot classify are kept out of targeted experiments rather than
// guessed into them.
func MatchesAudience(aud *store.TargetAudience, vc VisitorContext) bool {
	if aud.Empty() {
		return true
	}
	if !memberOf(aud.Countries, vc.Country) {
		return false
	}
	if !memberOf(aud.Devices, vc.Device) {
		return false
	}
	if !memberOf(aud.Languages, vc.Language) {
		return false
	}
	if !referrerMatches(aud.ReferrerContains, vc.Referrer) {
		return false
	}
	if !memberOf(aud.UTMSources, vc.UTMSource) {
		return false
	}
	return true
}

// memberOf is satisfied by an empty axis; a populated axis requires the
// value to be present, so the empty string (unknown) never matches.
func memberOf(axis []string, value string) bool {
	if len(axis) == 0 {
		return true
	}
	if value == "" {
		return false
	}
	for _, v := range axis {
		if v == value {
			return true
		}
	}
	return false
}

func referrerMatches(substrings []string, referrer string) bool {
	if len(substrings) == 0 {
		return true
	}
	if referrer == "" {
		return false
	}
	for _, sub := range substrings {
		if strings.Contains(referrer, sub) {
			return true
		}
	}
	return false
}
