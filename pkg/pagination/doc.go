// Package pagination drives the page loop for the six supported pagination
// conventions: none, offset_limit, page_number, cursor, next_url and
// link_header.
//
// Example usage:
//
//	strategy, err := pagination.New(job.Pagination, pagination.Env{
//		Session: session,
//		Target:  pagination.TargetFromJob(job),
//		Logger:  logger,
//	})
//	records, err := strategy.Fetch(ctx)
//
// Every strategy runs the same loop:
//   - Check the context
//   - Issue the request for the current position
//   - Extract the page's records at data_path
//   - Stop on an empty page, whatever else the response says
//   - Accumulate and evaluate the StopCondition (page cap, record cap, predicate)
//   - Evaluate the convention's own end signal, then advance
//
// Caps are checked after a whole page is accumulated, so the page that
// reaches a cap is always kept in full.
//
// Strategies hold no state between Fetch calls and are not safe for
// concurrent use; a session serves one loop at a time.
package pagination
