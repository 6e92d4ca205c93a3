package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	registry, err := NewRegistry(namedJob("inventory-reconcile"), nil)
	require.NoError(t, err)
	require.NoError(t, registry.Register(nil))
	require.NoError(t, registry.Register(namedJob("refund-reconcile")))

	assert.Equal(t, []string{"inventory-reconcile", "refund-reconcile"}, registry.Names())

	jobs := registry.Jobs()
	jobs[0] = namedJob("mutated")
	assert.Equal(t, "inventory-reconcile", registry.Names()[0])
}

func TestRegistryRejectsDuplicateAndBlankNames(t *testing.T) {
	_, err := NewRegistry(namedJob("outbox-retention"), namedJob("outbox-retention"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered twice")

	var zero Registry
	assert.Error(t, zero.Register(namedJob("")))
	require.NoError(t, zero.Register(namedJob("refund-reconcile")))
	assert.Equal(t, []string{"refund-reconcile"}, zero.Names())
}
