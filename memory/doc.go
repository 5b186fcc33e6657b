// Package memory contains the document stores ragflow agents retrieve
// context from. Every store implements core.Retriever: Query turns a text
// into up to k "[id]\ncontent" blocks separated by blank lines, returning an
// empty string when nothing is indexed.
//
// Available stores:
//   - DirectoryStore indexes a local directory into a chromem-go collection,
//     optionally persisted under the workspace directory.
//   - PineconeStore queries (and fills) a Pinecone index.
//   - KeywordStore is a process-local term-overlap index for offline runs
//     and tests.
//
// Stores are filled out of band (LoadDirectory, Index) and are read-only
// while a pipeline runs.
package memory
