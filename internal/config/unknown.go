package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys lists the valid keys of every table, keyed by the table's dotted
// path ("" is the document root). Lists are sorted so suggestions are
// deterministic when two candidates have the same edit distance.
var knownKeys = map[string][]string{
	"":             {"client", "logging", "server"},
	"client":       {"connect_timeout", "response_timeout", "server_url", "username"},
	"logging":      {"log_format", "log_level"},
	"server":       {"listen_addr", "max_upload_size", "s3", "signing_key", "storage", "token_ttl", "upload_dir", "users"},
	"server.s3":    {"access_key", "bucket", "endpoint", "prefix", "region", "secret_key"},
	"server.users": {"name", "password_hash"},
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key. An unknown
// table is reported once, not once per key inside it.
func checkUnknownKeys(md *toml.MetaData) error {
	var (
		errs     []error
		reported = make(map[string]bool)
	)

	for _, key := range md.Undecoded() {
		section, field := splitUnknown(key)

		full := field
		if section != "" {
			full = section + "." + field
		}

		if reported[full] {
			continue
		}

		reported[full] = true

		errs = append(errs, unknownKeyError(section, field))
	}

	return errors.Join(errs...)
}

// splitUnknown finds the deepest known table the key lives in and the first
// component below it that is not recognized.
func splitUnknown(key toml.Key) (section, field string) {
	for i := range len(key) {
		candidate := strings.Join(key[:i], ".")
		if _, ok := knownKeys[candidate]; !ok {
			break
		}

		section, field = candidate, key[i]
	}

	return section, field
}

func unknownKeyError(section, field string) error {
	where := ""
	if section != "" {
		where = fmt.Sprintf(" in [%s]", section)
	}

	if suggestion := closestMatch(field, knownKeys[section]); suggestion != "" {
		return fmt.Errorf("unknown config key %q%s; did you mean %q?", field, where, suggestion)
	}

	return fmt.Errorf("unknown config key %q%s", field, where)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization avoids allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}

