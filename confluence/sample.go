package confluence

import (
	"context"
	"sort"

	"github.com/quarry-ai/quarry/core"
)

// Default sampling widths, matching the shape of the corpus this tooling
// was built against: shallow structural pages plus the most active ones.
const (
	DefaultTopRoot     = 10
	DefaultTopRecent   = 30
	DefaultTopFrequent = 30
)

// SamplePolicy selects which pages of a space are worth fetching bodies
// for. Zero values fall back to the defaults.
type SamplePolicy struct {
	TopRoot     int // root and first-level pages, in listing order
	TopRecent   int // most recently updated
	TopFrequent int // most frequently updated
}

func (p SamplePolicy) normalize() SamplePolicy {
	if p.TopRoot <= 0 {
		p.TopRoot = DefaultTopRoot
	}
	if p.TopRecent <= 0 {
		p.TopRecent = DefaultTopRecent
	}
	if p.TopFrequent <= 0 {
		p.TopFrequent = DefaultTopFrequent
	}
	return p
}

// Sample applies the policy to page metadata, returning a deduplicated
// selection: shallow pages first, then most recent, then most frequently
// updated. Order of first appearance is preserved.
func Sample(pages []PageMeta, policy SamplePolicy) []PageMeta {
	policy = policy.normalize()

	var shallow []PageMeta
	for _, p := range pages {
		if p.Level <= 1 {
			shallow = append(shallow, p)
			if len(shallow) == policy.TopRoot {
				break
			}
		}
	}

	recent := make([]PageMeta, len(pages))
	copy(recent, pages)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Updated > recent[j].Updated
	})
	if len(recent) > policy.TopRecent {
		recent = recent[:policy.TopRecent]
	}

	frequent := make([]PageMeta, len(pages))
	copy(frequent, pages)
	sort.SliceStable(frequent, func(i, j int) bool {
		return frequent[i].UpdateCount > frequent[j].UpdateCount
	})
	if len(frequent) > policy.TopFrequent {
		frequent = frequent[:policy.TopFrequent]
	}

	seen := make(map[string]bool)
	var sampled []PageMeta
	for _, group := range [][]PageMeta{shallow, recent, frequent} {
		for _, p := range group {
			if p.ID == "" || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			sampled = append(sampled, p)
		}
	}
	return sampled
}

// FetchSpace lists a space's pages, samples them per the policy, and
// fetches bodies for the sampled set. TotalPages records the upstream
// count, which normally exceeds the sample.
func (c *Client) FetchSpace(ctx context.Context, ref SpaceRef, policy SamplePolicy) (*core.Space, error) {
	metas, err := c.Pages(ctx, ref.Key)
	if err != nil {
		return nil, err
	}

	sampled := Sample(metas, policy)
	space := &core.Space{
		Key:        ref.Key,
		Name:       ref.Name,
		TotalPages: len(metas),
		Pages:      make([]core.Page, 0, len(sampled)),
	}

	for _, meta := range sampled {
		body, err := c.PageBody(ctx, meta.ID)
		if err != nil {
			// A page whose body cannot be fetched is sampled without
			// content; ingestion skips empty bodies.
			c.logger.Warn("failed to fetch page body", "space", ref.Key, "page", meta.ID, "err", err)
			body = ""
		}
		space.Pages = append(space.Pages, core.Page{
			ID:          meta.ID,
			Title:       meta.Title,
			Body:        body,
			Updated:     meta.Updated,
			UpdateCount: meta.UpdateCount,
			ParentID:    meta.ParentID,
			Level:       meta.Level,
			SpaceKey:    ref.Key,
		})
	}

	return space, nil
}
