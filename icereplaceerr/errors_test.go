package icereplaceerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&AuthError{Err: errors.New("no credentials")}, "resolve caller identity: no credentials"},
		{&CatalogConnectError{Catalog: "s3tablescatalog", URI: "https://glue.us-east-2.amazonaws.com/iceberg", Err: errors.New("403")}, "connect catalog s3tablescatalog"},
		{&TableAlreadyExistsError{Namespace: "myblognamespace", Table: "customers"}, "myblognamespace.customers already exists"},
		{&TableNotFoundError{Namespace: "ns", Table: "missing"}, "ns.missing not found"},
		{&SchemaMismatchError{Table: "ns.customers", Field: "c_unexpected", Reason: "field not declared in schema"}, `field "c_unexpected"`},
		{&WriteConflictError{Table: "ns.customers", Err: errors.New("version moved")}, "write conflict on ns.customers"},
		{&TransportError{Op: "commit snapshot", Err: errors.New("timeout")}, "commit snapshot: timeout"},
		{&ReadError{Table: "ns.customers", Err: errors.New("decode")}, "read ns.customers: decode"},
	}

	for _, tc := range tests {
		if got := tc.err.Error(); !strings.Contains(got, tc.want) {
			t.Errorf("%T.Error() = %q, want substring %q", tc.err, got, tc.want)
		}
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	tests := []error{
		&AuthError{Err: cause},
		&CatalogConnectError{Err: cause},
		&TableNotFoundError{Err: cause},
		&WriteConflictError{Err: cause},
		&TransportError{Op: "op", Err: cause},
		&ReadError{Err: cause},
	}
	for _, err := range tests {
		if !errors.Is(err, cause) {
			t.Errorf("%T does not unwrap to its cause", err)
		}
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"write conflict", &WriteConflictError{Table: "t", Err: errors.New("x")}, true},
		{"transport", &TransportError{Op: "put", Err: errors.New("x")}, true},
		{"wrapped conflict", fmt.Errorf("overwrite: %w", &WriteConflictError{Table: "t"}), true},
		{"schema mismatch", &SchemaMismatchError{Reason: "missing field"}, false},
		{"already exists", &TableAlreadyExistsError{Namespace: "ns", Table: "t"}, false},
		{"not found", &TableNotFoundError{Namespace: "ns", Table: "t"}, false},
		{"plain error", errors.New("x"), false},
		{"deadline inside transport", &TransportError{Op: "scan", Err: context.DeadlineExceeded}, false},
		{"canceled inside conflict", &WriteConflictError{Table: "t", Err: context.Canceled}, false},
		{"nil", nil, false},
	}

	for _, tc := range tests {
		if got := Retryable(tc.err); got != tc.want {
			t.Errorf("%s: Retryable() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBenign(t *testing.T) {
	if !Benign(&TableAlreadyExistsError{Namespace: "ns", Table: "t"}) {
		t.Error("TableAlreadyExistsError should be benign")
	}
	if !Benign(fmt.Errorf("create: %w", &TableAlreadyExistsError{})) {
		t.Error("wrapped TableAlreadyExistsError should be benign")
	}
	if Benign(&TableNotFoundError{Namespace: "ns", Table: "t"}) {
		t.Error("TableNotFoundError must not be benign")
	}
}
