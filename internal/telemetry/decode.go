package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrFetch marks a failed request to the sniffer. The caller retries on
	// the next cycle.
	ErrFetch = errors.New("telemetry fetch failed")

	// ErrDecode marks a payload that could not be turned into a Response.
	ErrDecode = errors.New("telemetry decode failed")
)

// requiredFields must be present in every payload. Everything else falls
// back to its zero value.
var requiredFields = []string{
	"MemoryReadout.SongId",
	"MemoryReadout.ArrangementId",
	"MemoryReadout.GameStage",
}

// Decode parses a sniffer payload.
func Decode(data []byte) (*Response, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrDecode)
	}
	if !gjson.GetBytes(data, "MemoryReadout").IsObject() {
		return nil, fmt.Errorf("%w: missing MemoryReadout object", ErrDecode)
	}
	for _, path := range requiredFields {
		v := gjson.GetBytes(data, path)
		if !v.Exists() || v.Type == gjson.Null {
			return nil, fmt.Errorf("%w: missing required field %s", ErrDecode, path)
		}
		if v.Type != gjson.String {
			return nil, fmt.Errorf("%w: field %s is %s, want string", ErrDecode, path, v.Type)
		}
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &resp, nil
}
