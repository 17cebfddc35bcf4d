package normalize

import (
	"regexp"
	"strings"
)

// UnknownLocation is the sentinel cluster for blank locations.
const UnknownLocation = "UNKNOWN"

// cityRule maps any of its signals to one canonical city token.
// "bengaluru" and "bangalore" are the same hiring pool.
type cityRule struct {
	signals []string
	cluster string
}

var cityRules = []cityRule{
	{signals: []string{"bangalore", "bengaluru"}, cluster: "BANGALORE"},
	{signals: []string{"mumbai", "bombay"}, cluster: "MUMBAI"},
	{signals: []string{"delhi", "ncr", "gurugram", "gurgaon", "noida"}, cluster: "DELHI_NCR"},
	{signals: []string{"hyderabad", "hyd"}, cluster: "HYDERABAD"},
	{signals: []string{"chennai", "madras"}, cluster: "CHENNAI"},
	{signals: []string{"pune"}, cluster: "PUNE"},
	{signals: []string{"kolkata", "calcutta"}, cluster: "KOLKATA"},
	{signals: []string{"ahmedabad"}, cluster: "AHMEDABAD"},
	{signals: []string{"indore"}, cluster: "INDORE"},
}

var remoteSignals = []string{"remote", "work from home", "wfh", "anywhere"}

var whitespace = regexp.MustCompile(`\s+`)

// Location maps a raw location string onto a hiring eligibility
// cluster. A location cluster is a hiring pool boundary: a different
// pool means a different cluster and therefore a different fingerprint.
//
//	"Bangalore"          -> "BANGALORE"
//	"Bengaluru"          -> "BANGALORE"
//	"Remote - India"     -> "REMOTE_INDIA"
//	"Bangalore / Remote" -> "BANGALORE_OR_REMOTE"
//	"Work from home"     -> "REMOTE_INDIA"
func Location(rawLocation string) string {
	loc := strings.ToLower(strings.TrimSpace(rawLocation))
	if loc == "" {
		return UnknownLocation
	}

	// Remote detection runs independently of city detection because
	// "Remote - Bangalore" carries both signals.
	isRemote := containsAny(loc, remoteSignals)
	city := detectCity(loc)

	if isRemote && city != "" {
		return city + "_OR_REMOTE"
	}

	if isRemote {
		// Explicit non-India buckets override the assumed-domestic
		// default.
		if strings.Contains(loc, "us") || strings.Contains(loc, "usa") || strings.Contains(loc, "united states") {
			return "REMOTE_US"
		}
		if strings.Contains(loc, "global") || strings.Contains(loc, "worldwide") || strings.Contains(loc, "anywhere") {
			return "REMOTE_GLOBAL"
		}
		return "REMOTE_INDIA"
	}

	if city != "" {
		return city
	}

	// Unrecognized locations degrade to a raw-derived bucket rather
	// than being discarded: "Visakhapatnam" becomes "VISAKHAPATNAM".
	return whitespace.ReplaceAllString(strings.ToUpper(strings.TrimSpace(rawLocation)), "_")
}

// detectCity returns the first matching city cluster, or "" when the
// string names no recognized city.
func detectCity(loc string) string {
	for _, rule := range cityRules {
		if containsAny(loc, rule.signals) {
			return rule.cluster
		}
	}
	return ""
}

func containsAny(s string, signals []string) bool {
	for _, sig := range signals {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}
