package llmconfig

import "github.com/mitchellh/mapstructure"

// decodeInto overlays the keys present in raw onto dst, leaving any field
// whose key is absent from raw untouched. Unknown keys in raw (fields that
// belong to a different section) are ignored rather than rejected, since
// action params are a single flat map shared across overlay targets.
func decodeInto(raw map[string]interface{}, dst interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           dst,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}
