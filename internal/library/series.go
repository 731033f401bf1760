package library

// Correlate groups chronologically adjacent posts that share a title into
// series. It walks from the newest timebound post towards older ones and
// mutates posts in place. Running it again on correlated posts is a no-op.
func Correlate(posts []*Post) {
	var cur *Post
	for _, p := range posts {
		if p.Timebound {
			cur = p
			break
		}
	}
	// The newest post is the one without a newer neighbour.
	for cur != nil && cur.Next != nil {
		cur = cur.Next
	}

	for cur != nil {
		if cur.SubTitle != "" {
			parts := []*Post{cur}
			for cur.Previous != nil && cur.Previous.Title == cur.Title {
				cur = cur.Previous
				parts = append([]*Post{cur}, parts...)
			}
			if len(parts) > 1 {
				group(parts)
			} else {
				ungroup(cur)
			}
		}
		cur = cur.Previous
	}
}

func group(parts []*Post) {
	for i, p := range parts {
		p.Part = i + 1
		p.TotalParts = len(parts)
		p.IsSeriesStart = i == 0
		p.Slug = postSlug(p)
	}
}

// ungroup restores a lone post whose title merely contained the separator.
func ungroup(p *Post) {
	p.Title = p.OriginalTitle
	p.SubTitle = ""
	p.Slug = Slugify(p.OriginalTitle)
	p.Part = 0
	p.TotalParts = 0
	p.IsSeriesStart = false
}
