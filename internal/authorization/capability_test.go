package authorization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilitySet(t *testing.T) {
	var set CapabilitySet
	set = set.With(CapSalesView).With(CapSalesManage)

	assert.True(t, set.Has(CapSalesView))
	assert.False(t, set.Has(CapFinanceManage))
	assert.NoError(t, set.Require(CapSalesView, CapSalesManage))
	assert.ErrorIs(t, set.Require(CapSalesView, CapFinanceManage), ErrForbidden)
	assert.Equal(t, []string{"sales.manage", "sales.view"}, set.Names())
}

func TestParseCapability(t *testing.T) {
	c, err := ParseCapability(" GitHub.Sync ")
	assert.NoError(t, err)
	assert.Equal(t, CapGitHubSync, c)

	_, err = ParseCapability("root")
	assert.ErrorIs(t, err, ErrUnknownCapability)
}

func TestCapabilitiesContext(t *testing.T) {
	assert.Equal(t, CapabilitySet(0), CapabilitiesFromContext(context.Background()))

	ctx := WithCapabilities(context.Background(), AllCapabilities())
	assert.True(t, CapabilitiesFromContext(ctx).Has(CapUsersManage))
}
