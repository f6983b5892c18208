package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{InvalidEntry(7, ErrAlreadyBilled), "validation_error"},
		{NotFound("project", 9), "not_found_error"},
		{&ConflictError{EntryIDs: []int64{1, 2}}, "conflict_error"},
		{Storage("insert invoice", errors.New("disk full")), "storage_error"},
		{fmt.Errorf("wrapped: %w", NotFound("client", 1)), "not_found_error"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.kind {
			t.Errorf("%v: got %s want %s", tc.err, got, tc.kind)
		}
	}
}

func TestStorageKeepsDomainErrors(t *testing.T) {
	nf := NotFound("invoice", 4)
	if got := Storage("get invoice", nf); got != nf {
		t.Fatalf("domain error should pass through, got %v", got)
	}
	if Storage("noop", nil) != nil {
		t.Fatal("nil must stay nil")
	}
	base := errors.New("locked")
	err := Storage("claim", base)
	if !errors.Is(err, base) {
		t.Fatal("StorageError must unwrap")
	}
}

func TestValidationErrorNamesEntry(t *testing.T) {
	err := InvalidEntry(42, ErrAlreadyBilled)
	if !strings.Contains(err.Error(), "42") {
		t.Fatalf("message should name the entry: %s", err)
	}
	if !errors.Is(err, ErrAlreadyBilled) {
		t.Fatal("cause must unwrap")
	}
	ce := &ConflictError{EntryIDs: []int64{3, 5}, Reason: "in flight"}
	if ce.Error() != "billing conflict: in flight (entries 3,5)" {
		t.Fatalf("got %q", ce.Error())
	}
}

func TestFormatInvoiceNumber(t *testing.T) {
	if got := FormatInvoiceNumber(InvoicePeriod(NewDate(2025, 3, 14)), 7); got != "INV-202503-0007" {
		t.Fatalf("got %s", got)
	}
}
