package stages

import "encoding/json"

// decodeResult remarshals a GenerateJSON map[string]any result into a typed
// struct, since agents.Client deliberately returns the loosely-typed shape
// the wire protocol actually carries.
func decodeResult(m map[string]any, out any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
