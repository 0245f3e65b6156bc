package datastore

import "context"

// RewriteSlug re-keys every row carrying oldSlug to newSlug across events,
// daily_metrics, and project_telemetry, inside one transaction. This is
// the only mechanism by which the datastore's canonical slug is ever
// re-keyed, driven by the slug map diff in internal/slugs.
func (c *Client) RewriteSlug(ctx context.Context, oldSlug, newSlug string) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE events SET project = $2 WHERE project = $1`, oldSlug, newSlug); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE daily_metrics SET project = $2 WHERE project = $1`, oldSlug, newSlug); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE project_telemetry SET project = $2 WHERE project = $1`, oldSlug, newSlug); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE projects SET content_slug = $2 WHERE content_slug = $1`, oldSlug, newSlug); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
