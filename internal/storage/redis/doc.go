// Package redis holds the Redis-backed pieces of EnvioScout: the shared
// connection helper and the dashboard snapshot cache used when several
// server instances sit behind one load balancer.
package redis
