// Package web3 holds the closed table of supported EVM chains, the explorer
// data model shared by every data source, and the Gateway contract that the
// orchestrator talks to.
package web3
