package action

import "github.com/mitchellh/mapstructure"

// decodeParams decodes cfg's generic params map into a typed struct via
// mapstructure tags, returning a *ValidationError on shape mismatches
// (Design Note: "typed per-action parameter struct parsed from a generic
// JSON value; validation errors become ValidationError").
func decodeParams(actionType Type, raw map[string]interface{}, dst interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return &InternalError{ActionType: actionType, Cause: err}
	}
	if err := decoder.Decode(raw); err != nil {
		return &ValidationError{ActionType: actionType, Reason: err.Error()}
	}
	return nil
}
