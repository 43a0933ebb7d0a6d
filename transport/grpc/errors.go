package grpctransport

import (
	"errors"

	goa "goa.design/goa/v3/pkg"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/latticeplan/htn/planerrors"
)

// grpcError maps err to a grpc/status error, mirroring the teacher's
// runtime/agent/runtime/tool_calls.go, which detects a *goa.ServiceError via
// errors.As to decide retry semantics: here a goa.ServiceError's Fault flag
// decides client-error (InvalidArgument) versus server-fault (Internal). A
// *planerrors.Error without a wrapped ServiceError is mapped from its Kind.
func grpcError(err error) error {
	if err == nil {
		return nil
	}

	var svcErr *goa.ServiceError
	if errors.As(err, &svcErr) {
		if svcErr.Fault {
			return status.Error(codes.Internal, svcErr.Message)
		}
		return status.Error(codes.InvalidArgument, svcErr.Message)
	}

	kind, ok := planerrors.KindOf(err)
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}
	switch kind {
	case planerrors.MalformedMetadata:
		return status.Error(codes.InvalidArgument, err.Error())
	case planerrors.NoApplicableBranch, planerrors.STNInconsistent, planerrors.ActionFailure:
		return status.Error(codes.FailedPrecondition, err.Error())
	case planerrors.InfrastructureFailure:
		return status.Error(codes.Internal, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
