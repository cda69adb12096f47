package scraper

import (
	"testing"

	"github.com/aman12122/job-crawler/models"
)

func TestAdvance_OffsetFullPage(t *testing.T) {
	guard := NewLoopGuard()
	next, more := Advance(models.PaginationOffset, PageState{Offset: 0}, PageInfo{Count: 100, PageSize: 100}, guard)
	if !more {
		t.Fatal("full page should continue")
	}
	if next.Offset != 100 {
		t.Fatalf("expected offset 100, got %d", next.Offset)
	}
}

func TestAdvance_OffsetPartialPageEnds(t *testing.T) {
	guard := NewLoopGuard()
	_, more := Advance(models.PaginationOffset, PageState{Offset: 200}, PageInfo{Count: 37, PageSize: 100}, guard)
	if more {
		t.Fatal("partial page should end pagination")
	}
}

func TestAdvance_OffsetEmptyPageEnds(t *testing.T) {
	guard := NewLoopGuard()
	_, more := Advance(models.PaginationOffset, PageState{}, PageInfo{Count: 0, PageSize: 100}, guard)
	if more {
		t.Fatal("empty page should end pagination")
	}
}

func TestAdvance_TokenFlow(t *testing.T) {
	guard := NewLoopGuard()

	next, more := Advance(models.PaginationToken, PageState{}, PageInfo{Count: 100, PageSize: 100, NextToken: "abc"}, guard)
	if !more || next.Token != "abc" {
		t.Fatalf("expected continuation with token abc, got more=%v token=%q", more, next.Token)
	}

	_, more = Advance(models.PaginationToken, next, PageInfo{Count: 40, PageSize: 100}, guard)
	if more {
		t.Fatal("missing token should end pagination")
	}
	if guard.Tripped() {
		t.Fatal("normal end must not trip the guard")
	}
}

func TestAdvance_RepeatedTokenTripsGuard(t *testing.T) {
	guard := NewLoopGuard()

	state, _ := Advance(models.PaginationToken, PageState{}, PageInfo{Count: 100, PageSize: 100, NextToken: "abc"}, guard)
	_, more := Advance(models.PaginationToken, state, PageInfo{Count: 100, PageSize: 100, NextToken: "abc"}, guard)
	if more {
		t.Fatal("repeated token should end pagination")
	}
	if !guard.Tripped() {
		t.Fatal("repeated token should trip the guard")
	}
}

func TestAdvance_LinkFlow(t *testing.T) {
	guard := NewLoopGuard()

	next, more := Advance(models.PaginationLink, PageState{}, PageInfo{NextURL: "https://x.test/p2"}, guard)
	if !more || next.NextURL != "https://x.test/p2" {
		t.Fatalf("expected link continuation, got more=%v url=%q", more, next.NextURL)
	}

	// Same link again means the site is looping.
	_, more = Advance(models.PaginationLink, next, PageInfo{NextURL: "https://x.test/p2"}, guard)
	if more {
		t.Fatal("repeated link should end pagination")
	}
	if !guard.Tripped() {
		t.Fatal("repeated link should trip the guard")
	}
}

func TestAdvance_NoneStopsAfterFirstPage(t *testing.T) {
	guard := NewLoopGuard()
	_, more := Advance(models.PaginationNone, PageState{}, PageInfo{Count: 10, PageSize: 100}, guard)
	if more {
		t.Fatal("pagination kind none should stop after the first page")
	}
}
