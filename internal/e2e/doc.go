// Package e2e exercises the whole upload, index, search and delete flow in
// process: the gateway router in front of the ingestion and searcher
// handlers, with an in-memory broker feeding the index consumer.
package e2e
