// Package api provides the HTTP handlers for the mastery service: serving
// problems, submitting attempts, reporting hints, and reading the per-user
// exercise graph and review queue. Transport stays thin here; all mastery
// semantics live in the services underneath.
package api
