// internal/authz/spicedb/authorizer.go
package spicedb

import (
	"context"

	"invoiceapi/internal/authz"
	"invoiceapi/internal/observability/logging"

	v1pb "github.com/authzed/authzed-go/proto/authzed/api/v1"
	"google.golang.org/grpc"
)

// PermissionChecker is the part of the SpiceDB client the authorizer uses.
// *authzed.Client satisfies it.
type PermissionChecker interface {
	CheckPermission(ctx context.Context, in *v1pb.CheckPermissionRequest, opts ...grpc.CallOption) (*v1pb.CheckPermissionResponse, error)
}

// Authorizer implements authorization using SpiceDB. The principal's tenant
// is the subject of every check.
type Authorizer struct {
	client       PermissionChecker
	resourceType string
	resourceID   string
	subjectType  string
	logger       *logging.Logger
}

// Config holds SpiceDB authorizer configuration
type Config struct {
	// Endpoint is the SpiceDB endpoint
	Endpoint string

	// Insecure indicates whether to use an insecure connection
	Insecure bool

	// Token is the SpiceDB authentication token
	Token string

	// ResourceType is the SpiceDB resource type
	ResourceType string

	// ResourceID is the SpiceDB resource ID
	ResourceID string

	// SubjectType is the SpiceDB subject type
	SubjectType string
}

// New creates a new SpiceDB authorizer
func New(config Config, client PermissionChecker, logger *logging.Logger) *Authorizer {
	return &Authorizer{
		client:       client,
		resourceType: config.ResourceType,
		resourceID:   config.ResourceID,
		subjectType:  config.SubjectType,
		logger:       logger.WithModule("authz.spicedb"),
	}
}

// Name implements authz.Authorizer
func (a *Authorizer) Name() string { return "spicedb" }

// Authorize checks if the principal's tenant has the specified permission on the resource
func (a *Authorizer) Authorize(req *authz.Request) *authz.Response {
	// If no principal, return Unauthorized
	if req.Principal.IsZero() {
		return &authz.Response{
			Decision: authz.Unauthorized,
			Reason:   "No principal provided",
		}
	}

	// Determine resource ID to use
	resourceID := req.Resource
	if resourceID == "" {
		resourceID = a.resourceID
	}

	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}

	checkReq := &v1pb.CheckPermissionRequest{
		Resource: &v1pb.ObjectReference{
			ObjectType: a.resourceType,
			ObjectId:   resourceID,
		},
		Permission: req.Permission,
		Subject: &v1pb.SubjectReference{
			Object: &v1pb.ObjectReference{
				ObjectType: a.subjectType,
				ObjectId:   req.Principal.TenantID(),
			},
		},
	}

	// The request context carries cancellation to SpiceDB
	resp, err := a.client.CheckPermission(ctx, checkReq)
	if err != nil {
		a.logger.Error("Error checking permission with SpiceDB",
			logging.Err(err),
			"tenant_id", req.Principal.TenantID(),
			"resource", resourceID,
			"permission", req.Permission,
		)
		return &authz.Response{
			Decision: authz.Error,
			Reason:   "Error checking permission",
			Error:    err,
		}
	}

	if resp.GetPermissionship() == v1pb.CheckPermissionResponse_PERMISSIONSHIP_HAS_PERMISSION {
		return &authz.Response{
			Decision: authz.Allow,
			Reason:   "Permission granted",
		}
	}

	return &authz.Response{
		Decision: authz.Deny,
		Reason:   "Permission denied",
	}
}

var _ authz.Authorizer = (*Authorizer)(nil)
