// cmd/quicksilver/commands/shared.go
package commands

// RuntimeVersion is mixed into every cache fingerprint and snapshot
// header so a binary upgrade invalidates stale on-disk artifacts.
const RuntimeVersion = "0.1.0"
