// Package errors classifies failures raised while synchronizing a fork.
//
// Every type implements OperationError so callers can recover a stable Kind
// for reports and decide retry eligibility without parsing messages.
package errors
