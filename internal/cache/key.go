package cache

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/rotisserie/eris"
)

// Key derives the content address for a (source, request) pair: the source
// tag joined with an xxhash64 of the canonicalized request serialization.
// Logically equal requests hash identically regardless of field or map
// ordering, which is the core contract of the cache.
func Key(source string, request any) (string, error) {
	canonical, err := canonicalize(request)
	if err != nil {
		return "", eris.Wrap(err, "cache: canonicalize request")
	}
	return fmt.Sprintf("%s:%016x", source, xxhash.Sum64(canonical)), nil
}

// canonicalize serializes the request with all object keys sorted. Structs
// and differently-ordered maps normalize to the same bytes by round-
// tripping through map form: encoding/json emits map keys sorted.
func canonicalize(request any) ([]byte, error) {
	raw, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
