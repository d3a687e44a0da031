package tenants

import (
	"fmt"
	"regexp"

	"github.com/marcelsud/jobgate/job"
	"github.com/marcelsud/jobgate/webhook/signature"
)

// DefaultQueueClass is used when a tenant does not name one
const DefaultQueueClass = "default"

var identPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

/* Tenant is an account allowed to submit jobs
 * A tenant without its own signing secret is verified with the shared secret
 */
type Tenant struct {
	TenantID      string
	QueueClass    string
	Enabled       bool
	SigningSecret string
}

// Validate checks if the tenant configuration is valid
func (t *Tenant) Validate() error {
	if t.TenantID == "" {
		return fmt.Errorf("tenant_id cannot be empty")
	}
	if !identPattern.MatchString(t.TenantID) {
		return fmt.Errorf("tenant_id %q must be lowercase letters, digits, '-' or '_'", t.TenantID)
	}
	if !identPattern.MatchString(t.QueueClass) {
		return fmt.Errorf("invalid queue_class %q for tenant %s", t.QueueClass, t.TenantID)
	}
	if t.SigningSecret != "" && len(t.SigningSecret) < signature.MinSecretBytes {
		return fmt.Errorf("signing_secret for tenant %s must be at least %d characters", t.TenantID, signature.MinSecretBytes)
	}
	return nil
}

// QueueKey returns the list key the tenant's jobs go to
func (t *Tenant) QueueKey(prefix string) string {
	return job.QueueKey(prefix, t.QueueClass)
}
