package errors

import (
	stderrors "errors"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToGRPCStatus(t *testing.T) {
	err := WithMetadata(CodeLookupUnknownPermission, "permission app1.x is not known",
		map[string]string{"permission": "app1.x"})

	st, ok := status.FromError(ToGRPCStatus(err))
	if !ok {
		t.Fatal("expected a grpc status")
	}
	if st.Code() != codes.NotFound {
		t.Fatalf("code = %s", st.Code())
	}

	var info *errdetails.ErrorInfo
	for _, detail := range st.Details() {
		if ei, ok := detail.(*errdetails.ErrorInfo); ok {
			info = ei
		}
	}
	if info == nil {
		t.Fatal("expected ErrorInfo detail")
	}
	if info.Reason != string(CodeLookupUnknownPermission) || info.Domain != Domain {
		t.Fatalf("error info = %+v", info)
	}
	if info.Metadata["permission"] != "app1.x" {
		t.Fatalf("metadata = %v", info.Metadata)
	}
}

func TestToGRPCStatusNonDomainError(t *testing.T) {
	st, ok := status.FromError(ToGRPCStatus(stderrors.New("boom")))
	if !ok {
		t.Fatal("expected a grpc status")
	}
	if st.Code() != codes.Internal {
		t.Fatalf("code = %s", st.Code())
	}
}

func TestToGRPCStatusNil(t *testing.T) {
	if ToGRPCStatus(nil) != nil {
		t.Fatal("nil error should stay nil")
	}
}
