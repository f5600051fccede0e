// Package retry wraps fallible operations in a classified, exponentially
// backed-off retry loop. Only failures the classifier marks recoverable are
// retried; everything else returns after the first attempt.
package retry
