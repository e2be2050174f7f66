package models

import "time"

// PlaceholderImageURL is substituted for posts stored without a cover image.
const PlaceholderImageURL = "https://static.inkgate.io/images/post-placeholder.png"

// BlogPost is the normalized shape of a document in the blogs collection.
// The store owns the canonical record; everything handed to views is a copy
// that may already be stale by the time it is rendered.
type BlogPost struct {
	ID        string
	Title     string
	Content   string
	ImageURL  string
	CreatedAt *time.Time // nil when the store never assigned one
	Likes     map[string]bool
	PaidUsers []string
}

// LikeCount derives the displayed count from the mapping. The count is never
// stored separately, so it cannot drift from the per-viewer flags.
func (p *BlogPost) LikeCount() int {
	n := 0
	for _, liked := range p.Likes {
		if liked {
			n++
		}
	}
	return n
}

// LikedBy reports whether the viewer currently has a true entry in the
// like mapping. Absent keys and explicit false entries both mean "not liked".
func (p *BlogPost) LikedBy(viewerID string) bool {
	if viewerID == "" {
		return false
	}
	return p.Likes[viewerID]
}

// Copy returns a deep copy so a caller can mutate its view of the post
// without touching the shared cached instance.
func (p *BlogPost) Copy() *BlogPost {
	dup := *p
	dup.Likes = make(map[string]bool, len(p.Likes))
	for id, liked := range p.Likes {
		dup.Likes[id] = liked
	}
	dup.PaidUsers = append([]string(nil), p.PaidUsers...)
	return &dup
}
