package condition

import "strings"

// undefined is a distinguishable "no value" result, sentinel for fields
// that are absent in the context — never confused with a present nil.
type undefinedType struct{}

// Undefined is returned by Resolve when any segment of the dotted path is
// missing. Only exists/not_exists may observe it.
var Undefined = undefinedType{}

// Resolve walks a dotted path (e.g. "message.content" or "user.org.id")
// against a nested map[string]interface{} tree. It never panics: a missing
// intermediate key, a non-map intermediate value, or an out-of-range index
// all resolve to Undefined.
func Resolve(root map[string]interface{}, path string) interface{} {
	if path == "" {
		return Undefined
	}
	segments := strings.Split(path, ".")

	var cur interface{} = root
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return Undefined
		}
		v, exists := m[seg]
		if !exists {
			return Undefined
		}
		cur = v
	}
	return cur
}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v interface{}) bool {
	_, ok := v.(undefinedType)
	return ok
}
