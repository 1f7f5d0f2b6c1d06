// Package domain defines the core business entities of the mastery
// tracking system: exercises, per-user exercise state, problem attempt
// logs, and the attempt error taxonomy. Entities validate themselves on
// construction and are updated immutably (services build a modified copy
// rather than mutating in place).
package domain
