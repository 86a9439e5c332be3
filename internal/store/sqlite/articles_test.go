package sqlite

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/quillpress/quill-server/internal/store"
)

func TestCreateArticle_BackReferenceAndTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "usr-1", "alice@example.com")

	a := makeTestArticle("art-1", "usr-1", "Looms", "weaving", "history")
	a.Featured = true
	if err := s.CreateArticle(ctx, a); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}

	owner, err := s.GetUser(ctx, "usr-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !slices.Equal(owner.ArticleIDs, []string{"art-1"}) {
		t.Errorf("ArticleIDs: got %v", owner.ArticleIDs)
	}

	got, err := s.GetArticle(ctx, "art-1")
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if !slices.Equal(got.Tags, []string{"weaving", "history"}) {
		t.Errorf("Tags: got %v", got.Tags)
	}
	if !got.Featured || got.Banner.Width != 640 {
		t.Errorf("unexpected article: %+v", got)
	}
}

func TestCreateArticle_UnknownOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CreateArticle(ctx, makeTestArticle("art-1", "usr-ghost", "Orphan"))
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.GetArticle(ctx, "art-1"); !errors.Is(err, store.ErrArticleNotFound) {
		t.Errorf("article persisted without owner: %v", err)
	}
}

func TestDeleteArticle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "usr-1", "alice@example.com")
	mustCreateArticles(t, s, "usr-1", 2, "go")

	deleted, err := s.DeleteArticle(ctx, "art-usr-1-0")
	if err != nil {
		t.Fatalf("DeleteArticle: %v", err)
	}
	if deleted.Banner.AssetID != "banners/art-usr-1-0" {
		t.Errorf("deleted banner: got %+v", deleted.Banner)
	}

	if _, err := s.GetArticle(ctx, "art-usr-1-0"); !errors.Is(err, store.ErrArticleNotFound) {
		t.Errorf("expected ErrArticleNotFound, got %v", err)
	}

	owner, _ := s.GetUser(ctx, "usr-1")
	if slices.Contains(owner.ArticleIDs, "art-usr-1-0") {
		t.Errorf("back-reference not removed: %v", owner.ArticleIDs)
	}

	n, err := s.CountArticles(ctx, store.ArticleQuery{Tag: "go"})
	if err != nil {
		t.Fatalf("CountArticles: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 tagged article, got %d", n)
	}

	if _, err := s.DeleteArticle(ctx, "art-usr-1-0"); !errors.Is(err, store.ErrArticleNotFound) {
		t.Errorf("second delete: expected ErrArticleNotFound, got %v", err)
	}
}

func TestListArticles_SortAndPage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "usr-1", "alice@example.com")

	for _, title := range []string{"delta", "alpha", "charlie", "bravo"} {
		if err := s.CreateArticle(ctx, makeTestArticle("art-"+title, "usr-1", title, "go")); err != nil {
			t.Fatalf("CreateArticle: %v", err)
		}
	}

	tests := []struct {
		sort store.Sort
		want []string
	}{
		{store.SortLatest, []string{"bravo", "charlie", "alpha", "delta"}},
		{store.SortOldest, []string{"delta", "alpha", "charlie", "bravo"}},
		{store.SortTitleAsc, []string{"alpha", "bravo", "charlie", "delta"}},
		{store.SortTitleDesc, []string{"delta", "charlie", "bravo", "alpha"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.sort), func(t *testing.T) {
			res, err := s.ListArticles(ctx, store.ArticleQuery{Tag: "go", Sort: tt.sort, Page: store.Page{Number: 1, Limit: 10}})
			if err != nil {
				t.Fatalf("ListArticles: %v", err)
			}
			var titles []string
			for _, a := range res.Items {
				titles = append(titles, a.Title)
			}
			if !slices.Equal(titles, tt.want) {
				t.Errorf("got %v, want %v", titles, tt.want)
			}
		})
	}

	res, err := s.ListArticles(ctx, store.ArticleQuery{Sort: store.SortTitleAsc, Page: store.NewPage("2", "3")})
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Title != "delta" || res.HasMore || res.Total != 4 {
		t.Errorf("unexpected second page: %+v", res)
	}
}

func TestTitleOrderAndSearch_FoldUnicode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "usr-1", "alice@example.com")

	for i, title := range []string{"Éz", "apple", "éa", "Zebra"} {
		a := makeTestArticle(fmt.Sprintf("art-%d", i), "usr-1", title)
		if err := s.CreateArticle(ctx, a); err != nil {
			t.Fatalf("CreateArticle: %v", err)
		}
	}

	res, err := s.ListArticles(ctx, store.ArticleQuery{Sort: store.SortTitleAsc, Page: store.Page{Number: 1, Limit: 10}})
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	var titles []string
	for _, a := range res.Items {
		titles = append(titles, a.Title)
	}
	if want := []string{"apple", "Zebra", "éa", "Éz"}; !slices.Equal(titles, want) {
		t.Errorf("title-asc: got %v, want %v", titles, want)
	}

	found, err := s.SearchArticles(ctx, "ÉZ", store.Page{Number: 1, Limit: 10})
	if err != nil {
		t.Fatalf("SearchArticles: %v", err)
	}
	if found.Total != 1 || found.Items[0].Title != "Éz" {
		t.Errorf("search ÉZ: got %+v", found.Items)
	}
}

func TestSearchArticles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "usr-1", "alice@example.com")

	if err := s.CreateArticle(ctx, makeTestArticle("art-1", "usr-1", "Analytical Engines", "history")); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateArticle(ctx, makeTestArticle("art-2", "usr-1", "100% cotton", "weaving")); err != nil {
		t.Fatal(err)
	}

	cases := map[string]int{
		"engine":  1,
		"WEAV":    1,
		"body":    2,
		"100%":    1,
		"0_":      0,
		"nothing": 0,
	}
	for term, want := range cases {
		res, err := s.SearchArticles(ctx, term, store.Page{Number: 1, Limit: 10})
		if err != nil {
			t.Fatalf("SearchArticles(%q): %v", term, err)
		}
		if res.Total != want {
			t.Errorf("SearchArticles(%q): got %d, want %d", term, res.Total, want)
		}
	}
}

func TestRepairBackReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "usr-1", "alice@example.com")
	mustCreateArticles(t, s, "usr-1", 2)

	if _, err := s.db.ExecContext(ctx, `UPDATE users SET article_ids = ? WHERE id = ?`,
		`["art-gone","art-usr-1-1"]`, "usr-1"); err != nil {
		t.Fatalf("overwrite article_ids: %v", err)
	}

	repaired, changes, err := s.RepairBackReferences(ctx, "usr-1")
	if err != nil {
		t.Fatalf("RepairBackReferences: %v", err)
	}
	if changes != 2 {
		t.Errorf("changes: got %d, want 2", changes)
	}
	if !slices.Equal(repaired.ArticleIDs, []string{"art-usr-1-1", "art-usr-1-0"}) {
		t.Errorf("ArticleIDs: got %v", repaired.ArticleIDs)
	}
}

func TestArticleIDsAndHydrate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "usr-1", "alice@example.com")
	mustCreateUser(t, s, "usr-2", "bob@example.com")
	mustCreateArticles(t, s, "usr-1", 3)
	mustCreateArticles(t, s, "usr-2", 2)

	ids, err := s.ArticleIDs(ctx, store.ArticleQuery{OwnerID: "usr-2"})
	if err != nil {
		t.Fatalf("ArticleIDs: %v", err)
	}
	if !slices.Equal(ids, []string{"art-usr-2-0", "art-usr-2-1"}) {
		t.Errorf("ids: got %v", ids)
	}

	got, err := s.GetArticlesByIDs(ctx, []string{"art-usr-1-2", "nope", "art-usr-2-0"})
	if err != nil {
		t.Fatalf("GetArticlesByIDs: %v", err)
	}
	if len(got) != 2 || got[0].ID != "art-usr-1-2" || got[1].ID != "art-usr-2-0" {
		t.Errorf("unexpected hydrate result: %v", got)
	}
}
