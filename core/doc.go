// Package core holds the webhook delivery domain: subscriptions, events,
// statistics, audit entries, configuration and the store contracts. Adapters
// and the delivery engine depend on this package; core depends on neither.
package core
