package retrieval

// RetrievalMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results.
type RetrievalMonitor interface {
	Start(botID, query string)
	AfterQueryEmbedding(dimensions int)
	AfterCandidateLoad(loaded, compatible int)
	Finish(result *Result)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string) {}
func (n *noopMonitor) AfterQueryEmbedding(_ int) {}
func (n *noopMonitor) AfterCandidateLoad(_, _ int) {}
func (n *noopMonitor) Finish(_ *Result) {}
