// Package errors provides examples of structured error handling in sfbridge.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/sfbridge/pkg/errors"
)

// Example demonstrates basic error creation with context details.
func Example() {
	err := errors.New(errors.ErrorTypeNotFound, "object not found").
		WithDetail("object", "Invoice__c").
		WithDetail("status", 404)

	fmt.Println(err.Error())

	// Output:
	// not_found: object not found
}

// ExampleWrap shows how upstream failures are wrapped with a classification.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeConnection, "query request failed").
		WithDetail("object", "Account")

	if errors.IsType(err, errors.ErrorTypeConnection) {
		fmt.Println("This is an upstream transport error")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Original error was unexpected EOF")
	}

	// Output:
	// This is an upstream transport error
	// Original error was unexpected EOF
}

// ExampleHTTPStatus demonstrates the boundary mapping of each classification.
func ExampleHTTPStatus() {
	for _, errType := range []errors.ErrorType{
		errors.ErrorTypeValidation,
		errors.ErrorTypeAuthentication,
		errors.ErrorTypeNotFound,
		errors.ErrorTypeConnection,
		errors.ErrorTypeLoadJob,
		errors.ErrorTypeInternal,
	} {
		fmt.Printf("%s -> %d\n", errType, errors.HTTPStatus(errors.New(errType, "x")))
	}

	// Output:
	// validation -> 400
	// authentication -> 401
	// not_found -> 404
	// connection -> 502
	// load_job -> 502
	// internal -> 500
}

// ExampleTypeOf shows that unclassified errors are treated as internal.
func ExampleTypeOf() {
	fmt.Println(errors.TypeOf(io.EOF))
	fmt.Println(errors.TypeOf(errors.New(errors.ErrorTypeCapability, "unsupported object")))

	// Output:
	// internal
	// capability
}
