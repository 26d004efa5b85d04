package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseKinds = []Kind{
	KindAnonymous,
	KindHaveIBeenPwned,
	KindAdmin,
	KindOpenAPI,
	KindJWT,
	KindBearer,
}

func TestCompose_Unlicensed(t *testing.T) {
	set := Compose(false)

	assert.Equal(t, baseKinds, set.Kinds())
	assert.False(t, set.Has(KindOrganization))

	_, ok := Find[Organization](set)
	assert.False(t, ok)
}

func TestCompose_LicensedAppendsOrganizationOnce(t *testing.T) {
	set := Compose(true)

	kinds := set.Kinds()
	require.Len(t, kinds, len(baseKinds)+1)
	assert.Equal(t, baseKinds, kinds[:len(baseKinds)])
	assert.Equal(t, KindOrganization, kinds[len(kinds)-1])

	count := 0
	for _, k := range kinds {
		if k == KindOrganization {
			count++
		}
	}
	assert.Equal(t, 1, count)

	org, ok := Find[Organization](set)
	require.True(t, ok)
	assert.Equal(t, Organization{OrganizationLimit: 1, MembershipLimit: 1, InvitationLimit: 10000}, org)
}

func TestCompose_Options(t *testing.T) {
	set := Compose(false)

	bearer, ok := Find[Bearer](set)
	require.True(t, ok)
	assert.True(t, bearer.RequireSignature)

	pwned, ok := Find[HaveIBeenPwned](set)
	require.True(t, ok)
	assert.Equal(t, "Password has been found in an online data breach. For account safety, please use a different password.", pwned.CompromisedMessage)
}

func TestSet_AllReturnsCopy(t *testing.T) {
	set := Compose(false)

	all := set.All()
	all[0] = Admin{}

	assert.Equal(t, KindAnonymous, set.Kinds()[0])
}
