// Package api exposes the HTTP surface of the service: the chat endpoint and
// its history, asynchronous chat jobs, the per-chain dashboard statistics, a
// health probe and the Prometheus scrape endpoint.
package api
