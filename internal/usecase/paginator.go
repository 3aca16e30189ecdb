package usecase

import (
	"context"

	"github.com/naka-gawa/daystats/internal/domain"
	"github.com/naka-gawa/daystats/internal/gateway"
)

// collect drives one category's cursor pagination to exhaustion: fetch a
// page, append its events in order, loop with the returned cursor until the
// gateway reports no next page. A page claiming more results without
// advancing the cursor is treated as a malformed response so a misbehaving
// remote cannot loop us forever.
func collect(ctx context.Context, fetcher gateway.Fetcher, login string, category domain.Category, window domain.TimeWindow) ([]domain.Event, error) {
	var events []domain.Event
	cursor := ""
	for {
		page, err := fetcher.FetchPage(ctx, login, category, window, cursor)
		if err != nil {
			return nil, err
		}
		events = append(events, page.Events...)

		if !page.HasNextPage {
			return events, nil
		}
		if page.EndCursor == "" || page.EndCursor == cursor {
			return nil, &gateway.MalformedResponseError{
				Category: category,
				Cursor:   cursor,
				Reason:   "page reports more results but the cursor did not advance",
			}
		}
		cursor = page.EndCursor
	}
}
