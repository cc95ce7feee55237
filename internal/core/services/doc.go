// Package services contains the core application services of the RAG engine:
// batched embedding with retry and caching, the document indexing pipeline,
// scoped retrieval, token-budgeted context assembly and streaming answer
// generation. Services depend only on the ports in core/ports; all I/O goes
// through adapters.
package services
