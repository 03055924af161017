package structs

import (
	"pvv/api/models/indexes"
	"sync"
)

// IndexingQueueStructure pairs a search document with the wait group of
// the bulk run it belongs to
type IndexingQueueStructure struct {
	Document  *indexes.Variant
	WaitGroup *sync.WaitGroup
}
