package cache

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// keyEncMode uses Core Deterministic Encoding so equal arguments always produce equal bytes.
var keyEncMode cbor.EncMode

func init() {
	var err error
	keyEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}
}

type keyMaterial struct {
	_        struct{} `cbor:",toarray"`
	Identity string
	Args     []any
	Kwargs   [][2]any
}

// MakeKey derives a cache key from a computation name and its arguments.
// Keyword arguments are ordered by name. Arguments CBOR cannot encode are
// rendered with %#v instead, so the key is still deterministic for them.
func MakeKey(identity string, args []any, kwargs map[string]any) string {
	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)

	material := keyMaterial{
		Identity: identity,
		Args:     make([]any, 0, len(args)),
		Kwargs:   make([][2]any, 0, len(names)),
	}
	for _, arg := range args {
		material.Args = append(material.Args, encodable(arg))
	}
	for _, name := range names {
		material.Kwargs = append(material.Kwargs, [2]any{name, encodable(kwargs[name])})
	}

	payload, err := keyEncMode.Marshal(material)
	if err != nil {
		payload = []byte(fmt.Sprintf("%#v", material))
	}
	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func encodable(v any) any {
	if _, err := keyEncMode.Marshal(v); err != nil {
		return fmt.Sprintf("%T:%#v", v, v)
	}
	return v
}
