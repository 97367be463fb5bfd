package topic

import (
	"encoding/json"
	"errors"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Reconcile applies an ordered list of patch operations to a cached document
// and returns the patched copy. The semantics are all-or-nothing: on any
// failure (malformed operation, bad path, type mismatch) an error is returned
// and the input document is untouched, so the caller can invalidate its cache
// rather than ever serve a partially patched reconstruction.
func Reconcile(doc json.RawMessage, patches json.RawMessage) (json.RawMessage, error) {
	if len(doc) == 0 {
		return nil, errors.New("no document to patch")
	}
	if len(patches) == 0 {
		return nil, errors.New("empty patch list")
	}

	patch, err := jsonpatch.DecodePatch([]byte(patches))
	if err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}

	out, err := patch.Apply([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("apply patch: %w", err)
	}

	return json.RawMessage(out), nil
}
