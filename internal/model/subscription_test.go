package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoAdmin(t *testing.T) {
	sub := &ServiceSubscription{Metadata: map[string]any{"auto_admin": "all"}}
	v, err := sub.AutoAdmin()
	require.NoError(t, err)
	assert.Equal(t, AutoAdminAll, v)

	sub.Metadata["auto_admin"] = "manual"
	v, err = sub.AutoAdmin()
	require.NoError(t, err)
	assert.Equal(t, AutoAdminManual, v)

	v, err = (&ServiceSubscription{}).AutoAdmin()
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestAutoAdmin_InvalidValue(t *testing.T) {
	sub := &ServiceSubscription{Metadata: map[string]any{"auto_admin": "everyone"}}
	_, err := sub.AutoAdmin()
	assert.Error(t, err)

	sub.Metadata["auto_admin"] = 42
	_, err = sub.AutoAdmin()
	assert.Error(t, err)
}

func TestDomains(t *testing.T) {
	sub := &ServiceSubscription{}
	assert.Nil(t, sub.Domains())

	sub.SetDomains([]string{"ville-test.fr", "mairie-test.fr"})
	assert.Equal(t, []string{"ville-test.fr", "mairie-test.fr"}, sub.Domains())

	sub.SetDomains(nil)
	assert.Empty(t, sub.Domains())
}

func TestIDPID(t *testing.T) {
	sub := &ServiceSubscription{Metadata: map[string]any{"idp_id": "idp-collectivite"}}
	assert.Equal(t, "idp-collectivite", sub.IDPID())

	assert.Empty(t, (&ServiceSubscription{}).IDPID())
}
