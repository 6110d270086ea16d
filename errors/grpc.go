package errors

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain is the error domain attached to gRPC error details.
const Domain = "github.com/AllianceSoftware/csvpermissions-go"

// ToGRPCStatus converts err to a gRPC status with an errdetails.ErrorInfo
// carrying the domain code and metadata. Non-domain errors map to Internal
// with a generic message.
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		return status.Error(codes.Internal, "an unexpected error occurred")
	}

	st := status.New(appErr.Code.GRPCCode(), appErr.Message)
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(appErr.Code),
		Domain:   Domain,
		Metadata: appErr.Metadata,
	})
	if derr != nil {
		// If we can't attach details, return the basic status
		return st.Err()
	}
	return detailed.Err()
}
