package bus

import "github.com/godbus/dbus/v5"

// Typed accessors for property maps. Missing keys and mismatched types
// both report !ok; the cache treats either as "property not delivered".

func VariantString(props Properties, key string) (string, bool) {
	v, ok := props[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}

func VariantBool(props Properties, key string) (bool, bool) {
	v, ok := props[key]
	if !ok {
		return false, false
	}
	b, ok := v.Value().(bool)
	return b, ok
}

func VariantInt16(props Properties, key string) (int16, bool) {
	v, ok := props[key]
	if !ok {
		return 0, false
	}
	n, ok := v.Value().(int16)
	return n, ok
}

func VariantStrings(props Properties, key string) ([]string, bool) {
	v, ok := props[key]
	if !ok {
		return nil, false
	}
	s, ok := v.Value().([]string)
	return s, ok
}

func VariantBytes(props Properties, key string) ([]byte, bool) {
	v, ok := props[key]
	if !ok {
		return nil, false
	}
	b, ok := v.Value().([]byte)
	return b, ok
}

func VariantPath(props Properties, key string) (dbus.ObjectPath, bool) {
	v, ok := props[key]
	if !ok {
		return "", false
	}
	p, ok := v.Value().(dbus.ObjectPath)
	return p, ok
}
