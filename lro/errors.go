package lro

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errEmptyOperationName = errors.New("empty operation name")

var errEmptyMethod = errors.New("empty method")

// SubmissionError indicates that the call starting an operation failed. No handle exists. Whether the server acted
// on the request depends on the status code, as with any failed unary call.
type SubmissionError struct {
	// Full gRPC method that was called.
	Method string
	// Underlying transport or status error.
	Cause error
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.Method, e.Cause)
}

func (e *SubmissionError) Unwrap() error {
	return e.Cause
}

// StartedOperationError indicates that the server accepted a submission but its response could not be decoded into
// the method's types. The operation may exist on the server: resubmitting can create a duplicate. When Name is set,
// the operation can still be tracked with [NewUntypedHandle].
type StartedOperationError struct {
	// Full gRPC method that was called.
	Method string
	// Name of the operation the server returned. Empty if the response carried none.
	Name string
	// Decoding error, usually an [UnexpectedResponseError].
	Cause error
}

// Error implements the error interface.
func (e *StartedOperationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("submit %s: server accepted the call but returned an unusable operation: %v", e.Method, e.Cause)
	}
	return fmt.Sprintf("submit %s: operation %s was started but could not be decoded: %v", e.Method, e.Name, e.Cause)
}

func (e *StartedOperationError) Unwrap() error {
	return e.Cause
}

// PollError indicates that a status check failed. The operation itself is unaffected; callers should poll again
// rather than resubmit.
type PollError struct {
	// Name of the polled operation.
	Name  string
	Cause error
}

// Error implements the error interface.
func (e *PollError) Error() string {
	return fmt.Sprintf("poll %s: %v", e.Name, e.Cause)
}

func (e *PollError) Unwrap() error {
	return e.Cause
}

// OperationError is returned when an operation completed and reported failure. It is terminal and never retried.
type OperationError struct {
	// Name of the failed operation.
	Name   string
	Status *Status
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %s failed: %s: %s", e.Name, e.Status.Code, e.Status.Message)
}

// Code returns the status code reported by the server.
func (e *OperationError) Code() codes.Code {
	return e.Status.Code
}

// GRPCStatus allows [status.Code] and [status.FromError] to see through an OperationError.
func (e *OperationError) GRPCStatus() *status.Status {
	return e.Status.GRPCStatus()
}

// TimeoutError is returned when the local waiting budget of [OperationHandle.Await] is exhausted. The operation may
// still be running on the server; calling Await again with the same handle resumes waiting.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
	// Number of polls issued before giving up.
	Polls int
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %s still running after %s (%d polls)", e.Name, e.Timeout, e.Polls)
}

// CanceledError is returned when the caller's context ended while waiting. A cancel request was sent to the server
// on a best effort basis; completion is not guaranteed to have been prevented.
type CanceledError struct {
	Name string
	// The context error that interrupted the wait.
	Cause error
	// Set if the best effort cancel request failed.
	CancelErr error
}

// Error implements the error interface.
func (e *CanceledError) Error() string {
	if e.CancelErr != nil {
		return fmt.Sprintf("operation %s: wait canceled: %v (cancel request failed: %v)", e.Name, e.Cause, e.CancelErr)
	}
	return fmt.Sprintf("operation %s: wait canceled: %v", e.Name, e.Cause)
}

func (e *CanceledError) Unwrap() error {
	return e.Cause
}

// InvalidConfigurationError is returned before any network activity when the caller supplies nonsensical options.
type InvalidConfigurationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalidConfigf(field string, format string, args ...any) error {
	return &InvalidConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransportError wraps failures of direct cancel and delete calls.
type TransportError struct {
	// Either "cancel" or "delete".
	Op    string
	Name  string
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// UnexpectedResponseError indicates the server returned an operation that violates the long-running operation
// contract, such as a done operation without a result.
type UnexpectedResponseError struct {
	Message string
}

// Error implements the error interface.
func (e *UnexpectedResponseError) Error() string {
	return e.Message
}

func newUnexpectedResponseError(format string, args ...any) error {
	return &UnexpectedResponseError{Message: fmt.Sprintf(format, args...)}
}
