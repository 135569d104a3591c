// Package http exposes the service over a JSON HTTP API built on chi.
//
//	POST   /chat                 run one turn
//	GET    /health               liveness
//	GET    /info                 app and version
//	GET    /graph                graph description (?format=mermaid for a flowchart)
//	GET    /sessions             stored conversations
//	GET    /sessions/{id}        one stored conversation
//	DELETE /sessions/{id}        forget a conversation
//	GET    /events?thread_id=... server-sent events with every reply of a thread
package http
