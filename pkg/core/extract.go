package core

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// ExtractField returns a top-level field of a JSON object as a string, for
// example the listenKey of a listen key response. Numbers and booleans are
// returned in their JSON form.
func ExtractField(raw []byte, key string) (string, error) {
	node, err := sonic.Get(raw, key)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", key, err)
	}
	s, err := node.String()
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", key, err)
	}
	return s, nil
}
