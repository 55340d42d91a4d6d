package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lguportal/portal/internal/models"
)

func TestIdentityRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: 7, Role: models.RoleEngineer, IPAddress: "10.0.0.1"})

	id, ok := FromContext(ctx)
	require.True(t, ok)
	require.EqualValues(t, 7, id.UserID)
	require.True(t, id.HasRole(models.RoleEngineer))
	require.False(t, id.HasRole(models.RoleAdmin))
}

func TestFromContextRejectsAnonymous(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	_, ok = FromContext(WithIdentity(context.Background(), Identity{}))
	require.False(t, ok)

	//nolint:staticcheck // nil context is tolerated
	_, ok = FromContext(nil)
	require.False(t, ok)
}

func TestClientFromContextPrefersIdentity(t *testing.T) {
	ctx := WithClient(context.Background(), Client{IPAddress: "1.1.1.1", UserAgent: "curl"})
	require.Equal(t, "1.1.1.1", ClientFromContext(ctx).IPAddress)

	ctx = WithIdentity(ctx, Identity{UserID: 1, IPAddress: "2.2.2.2", UserAgent: "browser"})
	client := ClientFromContext(ctx)
	require.Equal(t, "2.2.2.2", client.IPAddress)
	require.Equal(t, "browser", client.UserAgent)
}
