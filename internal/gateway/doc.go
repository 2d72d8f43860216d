// Package gateway accepts long-lived viewer connections, tracks their
// topic subscriptions, and fans published frames out to every subscriber.
//
// A single actor goroutine owns the topic registry, so all registry
// mutation (connect, subscribe, disconnect) is serialized without a
// shared lock. The slow part of delivery, the network write, happens on
// each session's writer goroutine behind a bounded outbox queue; a slow
// consumer can therefore never stall the publishing path.
package gateway
