package recordstore

import "context"

// FetchAll pages through a collection until it is exhausted and returns
// the concatenated items in page order. Any page failure aborts the whole
// fetch; callers never see a silently truncated list. Retries, if wanted,
// belong to the caller.
func FetchAll[T any](ctx context.Context, c *Client, collection string, opts ListOptions) ([]T, error) {
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	var all []T
	for page := 1; ; page++ {
		opts.Page = page
		opts.PerPage = perPage
		p, err := List[T](ctx, c, collection, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Items...)
		if len(p.Items) < perPage || p.Page >= p.TotalPages {
			return all, nil
		}
	}
}
