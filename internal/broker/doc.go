// Package broker implements the gateway access broker.
//
// An object or service asks for a gateway of a given type; the broker
// consults the registry, picks an ONLINE instance, and returns an
// ephemeral AccessGrant carrying the gateway's address, port and public
// certificate. The caller then connects to the gateway directly; the
// broker only brokers the introduction.
//
// Concurrency contract: requests for distinct caller identities run
// fully in parallel, while a duplicate request for an identity whose
// first request is still in flight is rejected with ErrAccessInProgress.
// Rejection (rather than queueing) is the one consistent policy here:
// a retrying caller gets a fast, explicit signal instead of a silently
// growing queue of its own duplicates.
package broker
