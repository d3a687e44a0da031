package job

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal(t *testing.T) {
	t.Run("success - decoding ignores unknown fields", func(t *testing.T) {
		data := []byte(`{"id":"j1","tenant_id":"acme","queue_key":"jobs:standard","attempt":2,"priority":"high"}`)

		j, err := Unmarshal(data)

		require.NoError(t, err)
		assert.Equal(t, "j1", j.ID)
		assert.Equal(t, 2, j.Attempt)
	})

	t.Run("success - encoded record keeps payload bytes", func(t *testing.T) {
		original := Job{
			ID:          "j2",
			TenantID:    "acme",
			QueueKey:    "jobs:standard",
			Payload:     []byte(`{"a":1}`),
			SubmittedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}

		data, err := Marshal(original)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"payload":{"a":1}`)
		assert.Contains(t, string(data), `"tenant_id":"acme"`)
	})

	t.Run("error - not json", func(t *testing.T) {
		_, err := Unmarshal([]byte("nope"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unmarshaling job")
		assert.ErrorIs(t, err, ErrValidation)
		assert.False(t, IsTransient(err))
	})
}

func TestValidate(t *testing.T) {
	valid := Job{ID: "j1", TenantID: "acme", QueueKey: "jobs:standard"}

	t.Run("success", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("error - missing fields", func(t *testing.T) {
		for name, j := range map[string]Job{
			"id":        {TenantID: "acme", QueueKey: "k"},
			"tenant":    {ID: "j", QueueKey: "k"},
			"queue key": {ID: "j", TenantID: "acme"},
			"attempt":   {ID: "j", TenantID: "acme", QueueKey: "k", Attempt: -1},
		} {
			err := j.Validate()
			assert.ErrorIs(t, err, ErrValidation, name)
		}
	})
}

func TestStatus(t *testing.T) {
	t.Run("string round trip", func(t *testing.T) {
		for _, s := range []Status{Dequeued, Admitted, Executing, Completed, Blocked, Failed, Retrying} {
			assert.Equal(t, s, NewStatus(s.String()))
			assert.NoError(t, s.Validate())
		}
	})

	t.Run("final states", func(t *testing.T) {
		assert.True(t, Completed.IsFinal())
		assert.True(t, Failed.IsFinal())
		assert.False(t, Retrying.IsFinal())
		assert.False(t, Blocked.IsFinal())
	})

	t.Run("invalid", func(t *testing.T) {
		assert.Error(t, Status(99).Validate())
		assert.Equal(t, "unknown", Status(99).String())
	})
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("upstream 503: %w", ErrTransient)))
	assert.True(t, IsTransient(fmt.Errorf("executing: %w", context.DeadlineExceeded)))
	assert.False(t, IsTransient(fmt.Errorf("bad payload: %w", ErrValidation)))
	assert.False(t, IsTransient(errors.New("unclassified")))
	assert.False(t, IsTransient(nil))
}

func TestQueueKey(t *testing.T) {
	assert.Equal(t, "jobs:priority", QueueKey("jobs", "priority"))
}
