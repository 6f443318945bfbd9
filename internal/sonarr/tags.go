package sonarr

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"golift.io/starr"
)

// tagLabels maps tag ids to labels, refreshing the cached tag list when an
// id is not yet known. Ids that stay unknown are dropped.
func (c *Client) tagLabels(ctx context.Context, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	labels, missing := c.cachedLabels(ids)
	if !missing {
		return labels, nil
	}
	if err := c.refreshTags(ctx); err != nil {
		return nil, err
	}
	labels, _ = c.cachedLabels(ids)
	return labels, nil
}

func (c *Client) cachedLabels(ids []int64) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var missing bool
	labels := make([]string, 0, len(ids))
	for _, id := range ids {
		label, ok := c.labels[id]
		if !ok {
			missing = true
			continue
		}
		labels = append(labels, label)
	}
	return labels, missing
}

func (c *Client) refreshTags(ctx context.Context) error {
	raw, err := c.records(ctx, uriTag, nil)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}

	labels := make(map[int64]string, len(raw))
	for _, r := range raw {
		var t starr.Tag
		if err := json.Unmarshal(r, &t); err != nil || t.Label == "" {
			c.log.Debug("ignoring malformed tag entry", "error", err)
			continue
		}
		labels[int64(t.ID)] = t.Label
	}

	c.mu.Lock()
	c.labels = labels
	c.mu.Unlock()
	return nil
}

// ResolveTag returns the id of the tag with the given label.
func (c *Client) ResolveTag(ctx context.Context, label string) (int64, error) {
	if err := c.refreshTags(ctx); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for id, l := range c.labels {
		if l == label {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrTagNotFound, label)
}
