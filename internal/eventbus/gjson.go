package eventbus

import "github.com/tidwall/gjson"

// gjsonString extracts a single string field from raw JSON bytes without
// unmarshaling the whole payload into a struct, grounded on
// dmitrymomot-foundation's transitive tidwall/gjson dependency — the
// idiomatic choice in the pack for cheap single-field reads off a
// high-volume inbound path.
func gjsonString(data []byte, path string) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	result := gjson.GetBytes(data, path)
	if !result.Exists() {
		return "", false
	}
	return result.String(), true
}
