package telemetry

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
)

// payloadSchema constrains inbound telemetry documents: Device_ID must be
// a string when present, and every other field must be a scalar. Nested
// objects and arrays are rejected before normalization ever sees them.
// Device_ID presence is checked separately so the missing-identifier case
// gets its own error.
const payloadSchema = `{
	"type": "object",
	"properties": {
		"Device_ID": {"type": "string"}
	},
	"additionalProperties": {
		"type": ["number", "string", "boolean", "null"]
	}
}`

var payloadValidator = mustCompileSchema(payloadSchema)

func mustCompileSchema(schema string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic("telemetry: invalid payload schema: " + err.Error())
	}
	return compiled
}

// Payload is a parsed inbound telemetry document. Values are the scalars
// JSON decoding produces: float64, string, bool, or nil.
type Payload map[string]any

// ParsePayload decodes and validates raw JSON into a Payload.
// The document must be an object of scalar fields with a non-empty
// Device_ID string.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "Payload", "Parse", "decode JSON")
	}

	result, err := payloadValidator.Validate(gojsonschema.NewGoLoader(map[string]any(p)))
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidPayload, "Payload", "Parse", "run schema validation")
	}
	if !result.Valid() {
		detail := "schema violation"
		if errs := result.Errors(); len(errs) > 0 {
			detail = fmt.Sprintf("field %s: %s", errs[0].Field(), errs[0].Description())
		}
		return nil, errors.WrapInvalid(errors.ErrInvalidPayload, "Payload", "Parse", detail)
	}

	if p.DeviceID() == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingDeviceID, "Payload", "Parse", "check Device_ID")
	}

	return p, nil
}

// DeviceID returns the device serial carried in the payload, or "" when
// absent or not a string.
func (p Payload) DeviceID() string {
	id, _ := p["Device_ID"].(string)
	return id
}

// String returns the string value for key, or fallback when the key is
// absent or not a string.
func (p Payload) String(key, fallback string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return fallback
}

// Float returns the numeric value for key. Numeric strings are accepted
// the way the original firmware sends them. Absent or null keys return
// fallback; a present but unparseable value is a validation error naming
// the field.
func (p Payload) Float(key string, fallback float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return fallback, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, errors.WrapInvalid(errors.ErrInvalidPayload, "Payload", "Float",
				fmt.Sprintf("field %s is not numeric", key))
		}
		return f, nil
	default:
		return 0, errors.WrapInvalid(errors.ErrInvalidPayload, "Payload", "Float",
			fmt.Sprintf("field %s is not numeric", key))
	}
}

// Has reports whether key is present with a non-null value.
func (p Payload) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// Params folds the payload into the open parameter map: every field
// except the device identifier, with null values dropped. The result is
// a fresh map safe for the caller to own.
func (p Payload) Params() map[string]any {
	params := make(map[string]any, len(p))
	for k, v := range p {
		if k == "Device_ID" || v == nil {
			continue
		}
		params[k] = v
	}
	return params
}
