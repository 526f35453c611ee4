package yadisk

import (
	"context"
	"fmt"
	"net/http"
)

// ListAll fetches every page of a directory listing and returns the
// merged record. A fresh call always starts over from offset 0; there is
// no partial-listing success, any page error fails the whole call.
func (c *Client) ListAll(ctx context.Context, ref PublicRef, path string) (*DirectoryMetadata, error) {
	var merged *DirectoryMetadata

	offset := 0
	for {
		res, err := c.FetchMetadata(ctx, ref, path, offset, c.pageLimit)
		if err != nil {
			return nil, err
		}
		if res.Dir == nil {
			return nil, &APIError{StatusCode: http.StatusOK, Message: fmt.Sprintf("expected a directory at %q", path)}
		}

		page := res.Dir
		if merged == nil {
			merged = page
		} else {
			merged.Embedded.Items = append(merged.Embedded.Items, page.Embedded.Items...)
			merged.Embedded.Total = page.Embedded.Total
		}

		// A short page means the listing is over even if the reported
		// total claims otherwise.
		if len(merged.Embedded.Items) >= page.Embedded.Total || len(page.Embedded.Items) < c.pageLimit {
			break
		}
		offset += c.pageLimit
	}

	merged.Embedded.Offset = 0
	merged.Embedded.Limit = c.pageLimit
	return merged, nil
}
