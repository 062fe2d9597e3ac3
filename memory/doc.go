// Package memory implements long-term semantic memory for a companion
// agent.
//
// Utterances pass through an importance gate before anything is persisted:
// only candidates judged worth remembering become records. Records are
// append-only and carry an embedding for similarity search, so past
// conversations can be recalled by meaning rather than by keyword.
//
// Architecture:
//   - Store: vector storage backend (chromem-go for the local SDK)
//   - Embedder: text-to-vector conversion (ONNX model locally, mock for tests)
//   - Gate: accept/reject decision for candidate memories (importance package)
//   - LongTermMemory: ties the three together behind Add and Query
//
// Integration:
//   - Before a completion call the engine queries for relevant records and
//     injects them into the conversational buffer.
//   - After a completion call the engine offers the exchange to Add; the
//     gate decides whether it is persisted.
package memory
