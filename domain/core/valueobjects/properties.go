package valueobjects

import (
	"sort"
)

// ClassNameProperty is the reserved property recording a node's logical class.
const ClassNameProperty = "classname"

// Properties is a node or relationship property bag.
type Properties map[string]Value

// PropertiesFromMap converts a decoded JSON object.
// Null entries are skipped.
func PropertiesFromMap(m map[string]interface{}) (Properties, error) {
	props := make(Properties, len(m))
	for k, raw := range m {
		if raw == nil {
			continue
		}
		v, err := FromAny(raw)
		if err != nil {
			return nil, err
		}
		props[k] = v
	}
	return props, nil
}

func (p Properties) Get(name string) (Value, bool) {
	v, ok := p[name]
	return v, ok
}

// ClassName returns the classname property as a string, or "" when missing.
func (p Properties) ClassName() string {
	if v, ok := p[ClassNameProperty]; ok {
		return v.String()
	}
	return ""
}

func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns property names in sorted order
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns the properties as native Go values, as handed to a graph driver.
func (p Properties) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		out[k] = v.Interface()
	}
	return out
}
