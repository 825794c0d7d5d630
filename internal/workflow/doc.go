// Package workflow implements the Temporal workflow definitions of the
// callback service.
//
// Workflows here are deterministic orchestrators. Work that touches the
// outside world runs in activities, and suspension on an external decision
// goes through the suspend package so every wait is driven by a callback
// token and bounded by a timeout.
package workflow
