// Package distributionservice implements rule-driven content distribution for
// the Quill monolith.
//
// The module owns distribution rules and records, selects published articles
// per rule, applies the rule transformations, pushes the result to target
// sites and keeps per-article per-site outcome records. Workers cover the
// periodic rule poll, the failed-record retry sweep, terminal-record cleanup
// and outbox relay.
package distributionservice
