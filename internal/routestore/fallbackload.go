package routestore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/neuragate/gateway/internal/route"
)

// LoadFallbackSet reads a JSON array of route.Definition from path,
// the local source the in-memory fallback set (critical routes) is
// loaded from at process start. An empty path is not an error: it
// simply means no critical routes survive a store outage.
func LoadFallbackSet(path string) ([]*route.Definition, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("routestore: read fallback set %s: %w", path, err)
	}
	var defs []*route.Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("routestore: parse fallback set %s: %w", path, err)
	}
	return defs, nil
}
