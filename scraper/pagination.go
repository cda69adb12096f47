package scraper

import (
	"fmt"

	"github.com/aman12122/job-crawler/models"
)

// PageState is the cursor for one pagination step. Only the field matching
// the company's pagination kind is meaningful: Offset for offset paging,
// Token for continuation tokens, NextURL for link following.
type PageState struct {
	Offset  int
	Token   string
	NextURL string
}

// PageInfo is what a fetched page tells us about the next one.
type PageInfo struct {
	Count     int    // stubs parsed from this page
	PageSize  int    // stubs requested
	NextToken string // continuation token, if the payload carried one
	NextURL   string // "next" link, if the payload carried one
}

// LoopGuard detects repeated cursors. A repeat means the site's pagination is
// misbehaving; we terminate instead of looping forever, and the run records a
// warning rather than an error.
type LoopGuard struct {
	seen    map[string]struct{}
	tripped bool
}

func NewLoopGuard() *LoopGuard {
	return &LoopGuard{seen: make(map[string]struct{})}
}

// Visit records a cursor and reports whether it was already seen. A repeat
// trips the guard permanently.
func (g *LoopGuard) Visit(cursor string) (repeat bool) {
	if _, ok := g.seen[cursor]; ok {
		g.tripped = true
		return true
	}
	g.seen[cursor] = struct{}{}
	return false
}

func (g *LoopGuard) Tripped() bool {
	return g.tripped
}

// Advance computes the next page state and whether more pages remain, given
// the page just fetched. Dispatch is a plain switch over the pagination kind;
// each variant only reads the state it needs.
func Advance(kind models.PaginationKind, state PageState, info PageInfo, guard *LoopGuard) (PageState, bool) {
	switch kind {
	case models.PaginationOffset:
		// A partial or empty page means the end. Advance by the page size
		// actually requested so offsets stay aligned with the site's paging.
		if info.PageSize <= 0 || info.Count < info.PageSize {
			return state, false
		}
		next := PageState{Offset: state.Offset + info.PageSize}
		if guard.Visit(fmt.Sprintf("offset:%d", next.Offset)) {
			return state, false
		}
		return next, true

	case models.PaginationToken:
		// Absence of the token is end-of-results, not an error. A repeated
		// token is treated the same way, with the guard tripped.
		if info.NextToken == "" || info.NextToken == state.Token {
			if info.NextToken != "" {
				guard.tripped = true
			}
			return state, false
		}
		if guard.Visit("token:" + info.NextToken) {
			return state, false
		}
		return PageState{Token: info.NextToken}, true

	case models.PaginationLink:
		if info.NextURL == "" {
			return state, false
		}
		if guard.Visit("link:" + info.NextURL) {
			return state, false
		}
		return PageState{NextURL: info.NextURL}, true

	default:
		return state, false
	}
}
