package tenants

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a tenant is not registered
var ErrNotFound = errors.New("tenant not found")

/* Loader manages tenant configuration from tenants.yaml
 * Provides in-memory lookup for the ingress hot path
 */

// Config represents the structure of tenants.yaml
type Config struct {
	Tenants []TenantConfig `yaml:"tenants"`
}

// TenantConfig represents a single tenant in the YAML file
type TenantConfig struct {
	TenantID      string `yaml:"tenant_id"`
	QueueClass    string `yaml:"queue_class"`    // Default: "default"
	Enabled       *bool  `yaml:"enabled"`        // Default: true
	SigningSecret string `yaml:"signing_secret"` // Optional: overrides the shared secret
}

// Loader holds the loaded tenants
type Loader struct {
	tenants map[string]*Tenant
}

// NewLoader creates a new tenant loader
func NewLoader() *Loader {
	return &Loader{
		tenants: make(map[string]*Tenant),
	}
}

// Load reads and parses the tenants file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading tenants file: %w", err)
	}
	return l.Parse(data)
}

// Parse loads tenants from YAML bytes. Later entries replace earlier ones with the same id.
func (l *Loader) Parse(data []byte) error {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing tenants YAML: %w", err)
	}

	for _, tc := range config.Tenants {
		t := &Tenant{
			TenantID:      tc.TenantID,
			QueueClass:    tc.QueueClass,
			Enabled:       true,
			SigningSecret: tc.SigningSecret,
		}
		if t.QueueClass == "" {
			t.QueueClass = DefaultQueueClass
		}
		if tc.Enabled != nil {
			t.Enabled = *tc.Enabled
		}

		if err := t.Validate(); err != nil {
			return fmt.Errorf("validating tenant: %w", err)
		}

		l.tenants[t.TenantID] = t
	}

	return nil
}

// Add registers a tenant directly
func (l *Loader) Add(t Tenant) error {
	if t.QueueClass == "" {
		t.QueueClass = DefaultQueueClass
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validating tenant: %w", err)
	}
	l.tenants[t.TenantID] = &t
	return nil
}

// Get retrieves a tenant by its ID
func (l *Loader) Get(tenantID string) (*Tenant, error) {
	t, exists := l.tenants[tenantID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tenantID)
	}
	return t, nil
}

// List returns all loaded tenants sorted by id
func (l *Loader) List() []*Tenant {
	list := make([]*Tenant, 0, len(l.tenants))
	for _, t := range l.tenants {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].TenantID < list[j].TenantID })
	return list
}

// Exists checks if a tenant ID exists
func (l *Loader) Exists(tenantID string) bool {
	_, exists := l.tenants[tenantID]
	return exists
}

// QueueClasses returns the distinct queue classes of all tenants, always including the default one
func (l *Loader) QueueClasses() []string {
	seen := map[string]struct{}{DefaultQueueClass: {}}
	for _, t := range l.tenants {
		seen[t.QueueClass] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return classes
}
