// Package main seeds a Quill data directory with users and articles from a
// JSONC fixture file.
//
// Usage:
//
//	go run ./cmd/seed --data-path ~/.quill --fixture testdata/seed.jsonc
//
// Users that already exist are reused, so the tool can be run repeatedly.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/quillpress/quill-server/internal/auth"
	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/domain"
	domainerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/logger"
	"github.com/quillpress/quill-server/internal/media"
	"github.com/quillpress/quill-server/internal/service"
	"github.com/quillpress/quill-server/internal/store"
	"github.com/quillpress/quill-server/internal/store/sqlite"
	"github.com/quillpress/quill-server/internal/validation"
)

type fixture struct {
	Users    []fixtureUser    `json:"users"`
	Articles []fixtureArticle `json:"articles"`
}

type fixtureUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Bio      string `json:"bio"`
	Role     string `json:"role"`
}

type fixtureArticle struct {
	Author        string   `json:"author"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	ContentFormat string   `json:"content_format"`
	Tags          []string `json:"tags"`
	Featured      bool     `json:"featured"`
	Banner        string   `json:"banner"` // image path relative to the fixture; generated when empty
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dataPath    string
		fixturePath string
		driver      string
		publicURL   string
	)

	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVar(&dataPath, "data-path", os.ExpandEnv("$HOME/.quill"), "data directory of the server")
	flagSet.StringVarP(&fixturePath, "fixture", "f", "seed.jsonc", "JSONC fixture with users and articles")
	flagSet.StringVar(&driver, "store", config.StoreDriverBadger, "store driver: badger or sqlite")
	flagSet.StringVar(&publicURL, "public-url", "http://localhost:8080", "public base URL used for media links")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	raw, err := os.ReadFile(fixturePath)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var fx fixture
	if err := json.Unmarshal(jsonc.ToJSON(raw), &fx); err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}

	log := logger.New(logger.Config{Environment: "development", Level: slog.LevelInfo})
	ctx := context.Background()

	st, err := openStore(ctx, driver, dataPath, log.Logger)
	if err != nil {
		return err
	}
	defer st.Close()

	key, err := auth.LoadOrGenerateKey(dataPath)
	if err != nil {
		return err
	}
	tokens, err := auth.NewPasetoService(key, auth.DefaultTokenDuration)
	if err != nil {
		return err
	}

	host, err := media.NewLocalHost(filepath.Join(dataPath, "media"), publicURL+"/media", log.Logger)
	if err != nil {
		return err
	}
	deleter := media.NewDeleter(host, 16, log.Logger)
	defer deleter.Shutdown()

	mediaClient := service.NewMediaClient(host, deleter, log.Logger)
	v := validation.New()
	authService := service.NewAuthService(st, tokens, mediaClient, v, log.Logger)
	articles := service.NewArticleService(st, mediaClient, nil, v, log.Logger)

	users := make(map[string]*domain.User, len(fx.Users))
	for _, u := range fx.Users {
		user, err := ensureUser(ctx, st, authService, u)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.Email, err)
		}
		users[u.Email] = user
		log.Info("user ready", "email", u.Email, "id", user.ID, "role", user.Role)
	}

	baseDir := filepath.Dir(fixturePath)
	for i, a := range fx.Articles {
		author, ok := users[a.Author]
		if !ok {
			return fmt.Errorf("article %q: unknown author %q", a.Title, a.Author)
		}

		banner, err := loadBanner(baseDir, a.Banner, uint8(i*37))
		if err != nil {
			return fmt.Errorf("article %q: %w", a.Title, err)
		}

		view, err := articles.Create(ctx, author, service.CreateArticleRequest{
			Title:         a.Title,
			Content:       a.Content,
			ContentFormat: a.ContentFormat,
			Tags:          a.Tags,
			Featured:      a.Featured,
			Banner:        banner,
		})
		if err != nil {
			return fmt.Errorf("article %q: %w", a.Title, err)
		}

		// Later articles of the same author need the updated back-references.
		if refreshed, err := st.GetUser(ctx, author.ID); err == nil {
			users[a.Author] = refreshed
		}
		log.Info("article created", "id", view.ID, "title", view.Title)
	}

	log.Info("seed complete", "users", len(users), "articles", len(fx.Articles))
	return nil
}

func openStore(ctx context.Context, driver, dataPath string, log *slog.Logger) (store.Store, error) {
	switch driver {
	case config.StoreDriverSQLite:
		return sqlite.Open(ctx, filepath.Join(dataPath, "quill.db"), log)
	case config.StoreDriverBadger:
		return store.New(filepath.Join(dataPath, "db"), log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// ensureUser registers u, or loads it when the email is already taken.
// Admin accounts cannot self-register and must already exist.
func ensureUser(ctx context.Context, st store.Store, authService *service.AuthService, u fixtureUser) (*domain.User, error) {
	res, err := authService.Register(ctx, service.RegisterRequest{
		Email:    u.Email,
		Password: u.Password,
		Name:     u.Name,
		Bio:      u.Bio,
		Role:     u.Role,
	})
	switch {
	case err == nil:
		return st.GetUser(ctx, res.User.ID)
	case domainerrors.Is(err, domainerrors.ErrConflict):
		return st.GetUserByEmail(ctx, u.Email)
	default:
		return nil, err
	}
}

func loadBanner(baseDir, path string, shade uint8) (*service.ImageFile, error) {
	if path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read banner: %w", err)
		}
		return &service.ImageFile{Data: data, Filename: filepath.Base(path)}, nil
	}

	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	for x := range 64 {
		for y := range 36 {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x * 4), B: uint8(y * 7), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &service.ImageFile{Data: buf.Bytes(), Filename: "banner.png"}, nil
}
