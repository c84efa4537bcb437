// Package ingestion prepares and stores the medication catalog.
//
// It covers the offline data path that feeds search:
//   - Extracting unique product names from a CSV export (ReadNames)
//   - Reading and writing vectorized catalogs as name,v0,...,vn rows
//   - Embedding names in batches on a bounded worker pool (Pipeline.Vectorize)
//   - Storing medications and stamping the catalog with the embedding model (Pipeline.Import)
package ingestion
