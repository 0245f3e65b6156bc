package datastore

import "context"

// RegisterProject upserts a project's first-seen/last-active window and
// grows local_names with localName if not already recorded. The slug is
// immutable once recorded except via RewriteSlug.
func (c *Client) RegisterProject(ctx context.Context, slug, localName string, public bool) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO projects (content_slug, local_names, visibility, first_seen, last_active)
		VALUES ($1, ARRAY[$2], $3, now(), now())
		ON CONFLICT (content_slug) DO UPDATE SET
			local_names = CASE
				WHEN $2 = ANY(projects.local_names) THEN projects.local_names
				ELSE array_append(projects.local_names, $2)
			END,
			visibility = $3,
			last_active = now()
	`, slug, localName, public)
	return err
}

// TouchLastActive bumps last_active for every slug in slugs, used by the
// watcher loop's agent-state push for projects with any active agent.
func (c *Client) TouchLastActive(ctx context.Context, slugs []string) error {
	if len(slugs) == 0 {
		return nil
	}
	_, err := c.pool.Exec(ctx, `
		UPDATE projects SET last_active = now() WHERE content_slug = ANY($1)
	`, slugs)
	return err
}
