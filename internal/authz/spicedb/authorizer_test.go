package spicedb

import (
	"context"
	"errors"
	"testing"

	"invoiceapi/internal/auth"
	"invoiceapi/internal/authz"
	"invoiceapi/internal/observability/logging"

	v1pb "github.com/authzed/authzed-go/proto/authzed/api/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

type fakeChecker struct {
	perm v1pb.CheckPermissionResponse_Permissionship
	err  error
	req  *v1pb.CheckPermissionRequest
}

func (f *fakeChecker) CheckPermission(_ context.Context, in *v1pb.CheckPermissionRequest, _ ...grpc.CallOption) (*v1pb.CheckPermissionResponse, error) {
	f.req = in
	if f.err != nil {
		return nil, f.err
	}
	return &v1pb.CheckPermissionResponse{Permissionship: f.perm}, nil
}

func newTestAuthorizer(checker PermissionChecker) *Authorizer {
	return New(Config{
		ResourceType: "platform",
		ResourceID:   "main",
		SubjectType:  "tenant",
	}, checker, logging.NewNopLogger())
}

func TestAuthorize_Allow(t *testing.T) {
	checker := &fakeChecker{perm: v1pb.CheckPermissionResponse_PERMISSIONSHIP_HAS_PERMISSION}
	a := newTestAuthorizer(checker)

	resp := a.Authorize(&authz.Request{
		Principal:  auth.APIKeyPrincipal("ops"),
		Permission: "admin",
		Context:    t.Context(),
	})
	assert.Equal(t, authz.Allow, resp.Decision)

	require.NotNil(t, checker.req)
	assert.Equal(t, "platform", checker.req.GetResource().GetObjectType())
	assert.Equal(t, "main", checker.req.GetResource().GetObjectId())
	assert.Equal(t, "admin", checker.req.GetPermission())
	assert.Equal(t, "tenant", checker.req.GetSubject().GetObject().GetObjectType())
	assert.Equal(t, "ops", checker.req.GetSubject().GetObject().GetObjectId())
}

func TestAuthorize_ResourceOverride(t *testing.T) {
	checker := &fakeChecker{perm: v1pb.CheckPermissionResponse_PERMISSIONSHIP_HAS_PERMISSION}
	a := newTestAuthorizer(checker)

	a.Authorize(&authz.Request{
		Principal:  auth.APIKeyPrincipal("ops"),
		Resource:   "eu-1",
		Permission: "admin",
		Context:    t.Context(),
	})
	assert.Equal(t, "eu-1", checker.req.GetResource().GetObjectId())
}

func TestAuthorize_Deny(t *testing.T) {
	a := newTestAuthorizer(&fakeChecker{perm: v1pb.CheckPermissionResponse_PERMISSIONSHIP_NO_PERMISSION})
	resp := a.Authorize(&authz.Request{Principal: auth.APIKeyPrincipal("demo"), Permission: "admin", Context: t.Context()})
	assert.Equal(t, authz.Deny, resp.Decision)
}

func TestAuthorize_Error(t *testing.T) {
	a := newTestAuthorizer(&fakeChecker{err: errors.New("unavailable")})
	resp := a.Authorize(&authz.Request{Principal: auth.APIKeyPrincipal("demo"), Permission: "admin", Context: t.Context()})
	assert.Equal(t, authz.Error, resp.Decision)
	assert.Error(t, resp.Error)
}

func TestAuthorize_NoPrincipal(t *testing.T) {
	checker := &fakeChecker{}
	a := newTestAuthorizer(checker)
	resp := a.Authorize(&authz.Request{Permission: "admin"})
	assert.Equal(t, authz.Unauthorized, resp.Decision)
	assert.Nil(t, checker.req)
}

func TestBearerToken(t *testing.T) {
	md, err := bearerToken{token: "secret"}.GetRequestMetadata(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", md["authorization"])
	assert.True(t, bearerToken{}.RequireTransportSecurity())
	assert.False(t, bearerToken{insecure: true}.RequireTransportSecurity())
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{Token: "t"})
	assert.Error(t, err)

	_, err = NewClient(Config{Endpoint: "localhost:50051"})
	assert.Error(t, err)

	client, err := NewClient(Config{Endpoint: "localhost:50051", Token: "t", Insecure: true})
	require.NoError(t, err)
	assert.NotNil(t, client)
	var _ PermissionChecker = client
}
