package errors_test

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/ajitpratap0/opgate/pkg/errors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := errors.New(errors.ErrorTypeConnection, "failed to connect to database").
		WithDetail("host", "localhost").
		WithDetail("port", 5432)

	fmt.Println(err.Error())

	// Output:
	// connection: failed to connect to database
}

// ExampleWrap shows that wrapped causes stay reachable through errors.Is.
func ExampleWrap() {
	err := errors.Wrap(io.EOF, errors.ErrorTypeQuery, "failed to read result set")

	fmt.Println(errors.IsType(err, errors.ErrorTypeQuery))
	fmt.Println(stderrors.Is(err, io.EOF))

	// Output:
	// true
	// true
}

// ExampleIsPoolExhausted shows how callers detect pool acquisition failures.
func ExampleIsPoolExhausted() {
	err := errors.New(errors.ErrorTypePoolExhausted, "no connector available").
		WithDetail("max_objects", 10)

	fmt.Println(errors.IsPoolExhausted(err))
	fmt.Println(errors.IsPoolUnavailable(err))
	fmt.Println(errors.IsRetryable(err))

	// Output:
	// true
	// false
	// true
}
