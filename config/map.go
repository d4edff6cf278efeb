// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"strings"

	"github.com/armaturelabs/armature/config/key"
)

// Map is an ordinary map[string]any but implements both the [Source]
// and [Store] interfaces.
type Map map[string]any

// Apply implements the [Source] interface. It recursively walks the
// underlying map to find key value pairs to set on the given store.
func (m Map) Apply(store Store) error {
	return walkMap(m, store, nil)
}

// Set implements the [Store] interface. Nested keys create nested maps,
// overriding any non-map value set for an intermediate key earlier.
func (m Map) Set(k key.Keyer, v any) error {
	parts := strings.Split(k.Key(), ".")

	cur := m
	for _, part := range parts[:len(parts)-1] {
		sub, ok := cur[part].(map[string]any)
		if !ok {
			sub = make(map[string]any)
			cur[part] = sub
		}
		cur = sub
	}
	cur[parts[len(parts)-1]] = v
	return nil
}

func walkMap(m map[string]any, store Store, chain key.Chain) error {
	for k, v := range m {
		switch x := v.(type) {
		case Map:
			err := walkMap(x, store, append(chain, key.Name(k)))
			if err != nil {
				return err
			}
		case map[string]any:
			err := walkMap(x, store, append(chain, key.Name(k)))
			if err != nil {
				return err
			}
		default:
			err := store.Set(append(chain, key.Name(k)), x)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
