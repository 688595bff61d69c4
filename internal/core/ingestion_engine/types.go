package ingestion_engine

// DataSourceFile is the metadata of one fetched source document.
//
// DocName:    display name, used to infer the format from its extension.
// SrcURL:     public/source URL recorded on the QueryDocument.
// LocalPath:  where the fetcher wrote the file in the scratch directory.
// RemotePath: canonical remote path (e.g. s3://bucket/key), when applicable.
type DataSourceFile struct {
	DocName    string
	SrcURL     string
	LocalPath  string
	RemotePath string
}

// Build states of the ingestion pipeline. Failed is terminal and reachable
// from every step.
type BuildState string

const (
	StatePending    BuildState = "pending"
	StateFetching   BuildState = "fetching"
	StateChunking   BuildState = "reading_and_chunking"
	StatePersisting BuildState = "persisting"
	StateComplete   BuildState = "complete"
	StateFailed     BuildState = "failed"
)

// IngestConfig tunes the build pipeline.
//
// SentencePadding: sentences included before and after the center sentence
//                  of each chunk; adjacent chunks overlap by 2*padding.
// EmbedBatchSize:  how many chunk texts to embed in one provider call.
type IngestConfig struct {
	SentencePadding int
	EmbedBatchSize  int
}

func (c *IngestConfig) defaults() {
	if c.SentencePadding <= 0 {
		c.SentencePadding = 1
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = 16
	}
}

// BuildReport is returned to the job layer when a build finishes. A build
// that completes with unprocessed documents still succeeded; the list is
// surfaced for operator visibility.
type BuildReport struct {
	State           BuildState
	DocumentCount   int
	ChunkCount      int
	DocsUnprocessed []string
}
