package model

// Source tells where an accepted record came from
type Source string

const (
	SourceDurable Source = "durable_cache"
	SourceBlob    Source = "blob_cache"
	SourceFetch   Source = "fetch"
)
