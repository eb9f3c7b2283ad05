// Package providers adapts the gateway's chat request to each AI vendor's
// API. Every vendor is an Adapter held in a Registry; Complete runs one call
// through an adapter with the call's own timeout and maps failures to
// user-facing errors.
//
// Adapters never retry. Retry decisions belong to the dispatcher.
package providers
