package entitlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/deploycenter/internal/model"
)

func TestAccessResolver_NoOrganization(t *testing.T) {
	result, err := AccessResolver{}.Resolve(context.Background(), &Context{
		Service: &model.Service{ID: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, false, result["can_access"])
	assert.Equal(t, ReasonNoOrganization, result["can_access_reason"])
}

func TestAccessResolver_NoSubscription(t *testing.T) {
	result, err := AccessResolver{}.Resolve(context.Background(), &Context{
		Service:      &model.Service{ID: 1},
		Organization: &model.Organization{ID: "org-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, false, result["can_access"])
	assert.Equal(t, ReasonNotActivated, result["can_access_reason"])
}

func TestAccessResolver_InactiveSubscription(t *testing.T) {
	result, err := AccessResolver{}.Resolve(context.Background(), &Context{
		Service:      &model.Service{ID: 1},
		Organization: &model.Organization{ID: "org-1"},
		Subscription: &model.ServiceSubscription{ID: "sub-1", IsActive: false},
	})
	require.NoError(t, err)
	assert.Equal(t, false, result["can_access"])
	assert.Equal(t, ReasonNotActivated, result["can_access_reason"])
}

func TestAccessResolver_ActiveSubscription(t *testing.T) {
	result, err := AccessResolver{}.Resolve(context.Background(), &Context{
		Service:      &model.Service{ID: 1},
		Organization: &model.Organization{ID: "org-1"},
		Subscription: &model.ServiceSubscription{ID: "sub-1", IsActive: true},
	})
	require.NoError(t, err)
	assert.Equal(t, true, result["can_access"])
	assert.Nil(t, result["can_access_reason"])
}
