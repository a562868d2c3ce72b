// Package pagination provides offset pagination state and parallel batch
// fetching for list endpoints that take limit/offset and report a total.
//
// State keeps the page arithmetic: offset = (page-1)*pageSize, and HasMore
// is false once page*pageSize reaches the total.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher[models.Patient](pageFunc, pagination.DefaultConfig())
//	patients, err := fetcher.FetchAll(ctx, "patients")
//
// The batch fetcher:
//   - Fetches the first page to learn the total
//   - Fetches the remaining pages with bounded concurrency (errgroup)
//   - Returns items in list order
//   - Returns partial data together with the first page error
package pagination
