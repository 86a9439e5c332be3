package service

import (
	"context"
	"encoding/xml"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"time"

	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/content"
	domainerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/store"
)

// RSS 2.0 document.
type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	Description string        `xml:"description"`
	GUID        rssGUID       `xml:"guid"`
	PubDate     string        `xml:"pubDate"`
	Categories  []string      `xml:"category,omitempty"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// FeedService renders the RSS feed of recent articles.
type FeedService struct {
	store     store.Store
	cfg       config.FeedConfig
	publicURL string
	logger    *slog.Logger
	now       func() time.Time
}

// NewFeedService creates a feed service. publicURL prefixes article links.
func NewFeedService(store store.Store, cfg config.FeedConfig, publicURL string, logger *slog.Logger) *FeedService {
	return &FeedService{
		store:     store,
		cfg:       cfg,
		publicURL: publicURL,
		logger:    logger,
		now:       time.Now,
	}
}

// Feed returns the RSS document for the newest articles. Without any
// articles the feed holds a single placeholder item.
func (s *FeedService) Feed(ctx context.Context) ([]byte, error) {
	page := store.Page{Number: 1, Limit: s.cfg.Items}
	page.Normalize()

	res, err := s.store.ListArticles(ctx, store.ArticleQuery{Sort: store.SortLatest, Page: page})
	if err != nil {
		return nil, storeError(err, "article not found")
	}

	now := s.now().UTC()
	channel := rssChannel{
		Title:         s.cfg.Title,
		Link:          s.publicURL,
		Description:   s.cfg.Description,
		LastBuildDate: now.Format(time.RFC1123Z),
		Items:         make([]rssItem, 0, len(res.Items)),
	}

	for _, a := range res.Items {
		link := s.publicURL + "/articles/" + a.ID
		item := rssItem{
			Title:       a.Title,
			Link:        link,
			Description: content.Excerpt(a.Content, s.cfg.DescriptionLength),
			GUID:        rssGUID{IsPermaLink: true, Value: link},
			PubDate:     a.CreatedAt.UTC().Format(time.RFC1123Z),
			Categories:  a.Tags,
		}
		if a.Banner.URL != "" {
			item.Enclosure = &rssEnclosure{URL: a.Banner.URL, Length: a.Banner.Size, Type: enclosureType(a.Banner.URL)}
		}
		channel.Items = append(channel.Items, item)
	}

	if len(channel.Items) == 0 {
		channel.Items = append(channel.Items, rssItem{
			Title:       "No articles yet",
			Link:        s.publicURL,
			Description: "New articles will appear here once they are published.",
			GUID:        rssGUID{Value: s.publicURL + "/#placeholder"},
			PubDate:     now.Format(time.RFC1123Z),
		})
	}

	out, err := xml.MarshalIndent(rss{Version: "2.0", Channel: channel}, "", "  ")
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to render feed")
	}

	s.logger.Debug("feed rendered", "items", len(res.Items))
	return append([]byte(xml.Header), out...), nil
}

// enclosureType guesses the media type of a banner from its URL.
func enclosureType(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return "image/jpeg"
}
