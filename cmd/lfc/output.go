package main

import (
	"encoding/json"
	"io"
)

// writeJSON pretty-prints v without HTML escaping, so call markers stay
// readable.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
