// Package agent contains the chat orchestrator. It classifies each message,
// gathers chain data for the detected intent, renders a prompt from that
// data and hands it to the generation client.
package agent
