package app

import (
	"fmt"
	"os"
	"strings"

	gatehttp "github.com/aussiebroadwan/gatekeeper/internal/gate/http"
	"gopkg.in/yaml.v3"
)

// LoadRoutePolicy reads the route policy from path. An empty path yields
// the defaults, and a list missing from the file keeps its default:
//
//	sensitive:
//	  - /v1/payments
//	whitelist:
//	  - /v1/whitelist
//	public:
//	  - /v1/accounts
//	  - /v1/2fa/setup
func LoadRoutePolicy(path string) (gatehttp.RoutePolicy, error) {
	policy := gatehttp.DefaultRoutePolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("read route policy: %w", err)
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("parse route policy: %w", err)
	}

	for _, set := range [][]string{policy.Sensitive, policy.Whitelist, policy.Public} {
		for _, p := range set {
			if !strings.HasPrefix(p, "/") {
				return policy, fmt.Errorf("route prefix %q must start with /", p)
			}
		}
	}
	return policy, nil
}
