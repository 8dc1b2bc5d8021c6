// Package goldenrouter implements the golden-route fast path from spec
// §4.5 step 3 and §9: a content-addressable table of curated
// question→answer entries keyed by SHA-256 of the normalized query, loaded
// at startup from a YAML file.
//
// Grounded on spec §9's REDESIGN FLAG, which calls for formalizing the
// source's implicit normalization rule (lowercase + punctuation strip) and
// making the table content-addressable instead of relying on ad hoc string
// matching; gopkg.in/yaml.v3 loads the table the same way the teacher and
// falcon both use it for declarative configuration.
package goldenrouter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one curated question→answer mapping.
type Entry struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

type fileFormat struct {
	Routes []Entry `yaml:"routes"`
}

// Router is the loaded golden-route table, keyed by content hash.
type Router struct {
	byHash map[string]string // hash(normalized question) -> answer
}

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
var whitespace = regexp.MustCompile(`\s+`)

// Normalize implements the formalized golden-route normalization rule:
// lowercase, strip punctuation, collapse whitespace.
func Normalize(query string) string {
	lower := strings.ToLower(query)
	stripped := punctuation.ReplaceAllString(lower, "")
	collapsed := whitespace.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(collapsed)
}

// Hash returns the content address (hex SHA-256) of a normalized query.
func Hash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Load reads a golden-route table from a YAML file at path.
func Load(path string) (*Router, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("goldenrouter: failed to read %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses a golden-route table from in-memory YAML.
func LoadBytes(data []byte) (*Router, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("goldenrouter: failed to parse routes: %w", err)
	}

	byHash := make(map[string]string, len(f.Routes))
	for _, e := range f.Routes {
		byHash[Hash(Normalize(e.Question))] = e.Answer
	}
	return &Router{byHash: byHash}, nil
}

// Match looks up query's normalized form in the table, returning the
// curated answer and true on a hit.
func (r *Router) Match(query string) (string, bool) {
	if r == nil {
		return "", false
	}
	answer, ok := r.byHash[Hash(Normalize(query))]
	return answer, ok
}

// Len reports the number of loaded routes.
func (r *Router) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byHash)
}
