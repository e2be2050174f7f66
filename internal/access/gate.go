// Package access decides whether a viewer may see a paywalled post's full
// content, and builds the gated views delivered to clients. Gating is pure:
// it is re-evaluated on every delivery from the data at hand and never cached
// across document versions.
package access

import (
	"sort"
	"strings"
	"unicode/utf8"

	"inkgate/internal/models"
)

// PaymentPrompt replaces the content field of a locked post. Locked delivery
// is all-or-nothing: no truncated preview of the real content ever leaves the
// server, only the listing excerpt.
const PaymentPrompt = "This is premium content. Complete your payment to unlock the full post."

const excerptRunes = 160

// CanViewFullContent reports whether viewerID may read the post's full
// content. True iff the identity is non-empty and present in the paid-user
// set; an anonymous viewer is always locked out, even when the set is empty.
func CanViewFullContent(post *models.BlogPost, viewerID string) bool {
	if viewerID == "" {
		return false
	}
	for _, id := range post.PaidUsers {
		if id == viewerID {
			return true
		}
	}
	return false
}

// PostView is the per-viewer delivery shape of a blog post.
type PostView struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Excerpt       string  `json:"excerpt"`
	Content       string  `json:"content,omitempty"`
	ImageURL      string  `json:"imageUrl"`
	CreatedAt     *string `json:"createdAt"` // RFC 3339, null for "unknown date"
	LikeCount     int     `json:"likeCount"`
	LikedByViewer bool    `json:"likedByViewer"`
	Unlocked      bool    `json:"unlocked"`
	PaymentPrompt string  `json:"paymentPrompt,omitempty"`
}

// ViewFor builds the view of a single post for the given viewer.
func ViewFor(post *models.BlogPost, viewerID string) PostView {
	view := PostView{
		ID:            post.ID,
		Title:         post.Title,
		Excerpt:       Excerpt(post.Content),
		ImageURL:      post.ImageURL,
		LikeCount:     post.LikeCount(),
		LikedByViewer: post.LikedBy(viewerID),
	}
	if post.CreatedAt != nil {
		ts := post.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		view.CreatedAt = &ts
	}
	if CanViewFullContent(post, viewerID) {
		view.Unlocked = true
		view.Content = post.Content
	} else {
		view.PaymentPrompt = PaymentPrompt
	}
	return view
}

// ViewsFor builds the listing for the given viewer, newest first. Posts with
// no creation timestamp sort last, matching their "unknown date" rendering.
func ViewsFor(posts []*models.BlogPost, viewerID string) []PostView {
	ordered := append([]*models.BlogPost(nil), posts...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].CreatedAt, ordered[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	views := make([]PostView, 0, len(ordered))
	for _, post := range ordered {
		views = append(views, ViewFor(post, viewerID))
	}
	return views
}

// Excerpt strips markup from the content blob and truncates it for list
// views. The excerpt is shown to every viewer regardless of paid status.
func Excerpt(content string) string {
	plain := stripTags(content)
	plain = strings.Join(strings.Fields(plain), " ")
	if utf8.RuneCountInString(plain) <= excerptRunes {
		return plain
	}
	runes := []rune(plain)
	return strings.TrimRight(string(runes[:excerptRunes]), " ") + "…"
}

// stripTags drops anything between < and >. The content blob is
// author-supplied HTML; excerpts must never carry markup to clients.
func stripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
