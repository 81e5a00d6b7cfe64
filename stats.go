package histcache

// Stats holds the counters of a collection.
type Stats struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Objects   int      `json:"objects"`
	SizeBytes int64    `json:"sizeBytes"`
	Lookups   uint64   `json:"lookups"`
	Hits      uint64   `json:"hits"`
	Created   uint64   `json:"created"`
	Rejected  uint64   `json:"rejected"`
	Merges    uint64   `json:"merges"`
	Lineage   []string `json:"lineage"`
}
