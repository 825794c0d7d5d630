// Package controlplane provides the ControlPlane implementations that carry a
// resume outcome to the authority holding the suspended step.
//
// Temporal delivers a workflow update to the execution named by the token.
// HTTP posts to a REST control plane. Memory is an in-process authority used
// by tests and local runs.
package controlplane
