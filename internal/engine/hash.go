package engine

import "github.com/cespare/xxhash/v2"

// BucketFor deterministically maps a key onto [0, 100). The same key
// always lands in the same bucket, across calls and across restarts, and
// distinct keys spread approximately uniformly.
func BucketFor(key string) int {
	return int(xxhash.Sum64String(key) % 100)
}

// gateKey is hashed to decide whether a visitor is in an experiment at
// all. variantKey carries a distinct suffix so variant selection is not
// correlated with the gate decision.
func gateKey(visitorID, experimentName string) string {
	return visitorID + "-" + experimentName
}

func variantKey(visitorID, experimentName string) string {
	return visitorID + "-" + experimentName + "-variant"
}
