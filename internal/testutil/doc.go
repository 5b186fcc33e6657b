// Package testutil provides fakes shared by ragflow tests: agents that record
// their calls, retrievers with canned answers and a deterministic embedding
// function that needs no network.
package testutil
