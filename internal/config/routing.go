package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v3"

	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

//go:embed routing.yaml
var defaultRouting []byte

// CostCenterRoute decides the mail domain and provisioning branch for a cost center.
type CostCenterRoute struct {
	Name             string   `yaml:"-"`
	Domain           string   `yaml:"domain" validate:"nonzero"`
	ChatWorkspace    string   `yaml:"chat_workspace"`
	CloudDepartments []string `yaml:"cloud_departments"`
}

// ProvisionsCloud reports whether new hires of department get a cloud workspace account.
func (r CostCenterRoute) ProvisionsCloud(department string) bool {
	for _, d := range r.CloudDepartments {
		if d == department {
			return true
		}
	}
	return false
}

// Routing maps cost-center labels to routes.
type Routing struct {
	CostCenters map[string]CostCenterRoute `yaml:"cost_centers"`
}

// LoadRouting reads the routing table from path, or the built-in table when
// path is empty.
func LoadRouting(path string) (*Routing, error) {
	data := defaultRouting
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read routing file: %w", err)
		}
		data = content
	}
	return ParseRouting(data)
}

// ParseRouting decodes and validates a YAML routing table.
func ParseRouting(data []byte) (*Routing, error) {
	var routing Routing
	if err := yaml.Unmarshal(data, &routing); err != nil {
		return nil, fmt.Errorf("parse routing: %w", err)
	}
	if len(routing.CostCenters) == 0 {
		return nil, fmt.Errorf("parse routing: no cost centers defined")
	}
	for name, route := range routing.CostCenters {
		if err := validator.Validate(route); err != nil {
			return nil, fmt.Errorf("routing for cost center %q: %w", name, err)
		}
		route.Name = name
		route.ChatWorkspace = strings.ToLower(route.ChatWorkspace)
		routing.CostCenters[name] = route
	}
	return &routing, nil
}

// Route resolves a cost center. Unknown cost centers are an error rather than
// a silent no-op.
func (r *Routing) Route(costCenter string) (CostCenterRoute, error) {
	route, ok := r.CostCenters[costCenter]
	if !ok {
		return CostCenterRoute{}, apperrors.NewUnrecognizedCostCenter(costCenter)
	}
	return route, nil
}

// Workspaces lists the chat workspaces referenced by any route.
func (r *Routing) Workspaces() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, route := range r.CostCenters {
		if route.ChatWorkspace == "" {
			continue
		}
		if _, ok := seen[route.ChatWorkspace]; ok {
			continue
		}
		seen[route.ChatWorkspace] = struct{}{}
		out = append(out, route.ChatWorkspace)
	}
	sort.Strings(out)
	return out
}

// CheckChatTokens verifies every routed workspace has an invite token.
func (r *Routing) CheckChatTokens(chat ChatConfig) error {
	var missing []string
	for _, ws := range r.Workspaces() {
		if chat.Tokens[ws] == "" {
			missing = append(missing, chatTokenPrefix+strings.ToUpper(ws))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing chat tokens: %s", strings.Join(missing, ", "))
	}
	return nil
}
