// Package transfer runs individual file uploads as asynchronous operations
// keyed by Handle. Each transfer owns its open file until it reaches its
// single terminal event, then closes it.
//
// A transfer that the server rejects with 401 does not fail: it parks and
// emits AuthRequired, and whoever owns the token either resubmits it with
// Retry or ends it with Fail. A 401 on the resubmitted request is terminal.
package transfer
