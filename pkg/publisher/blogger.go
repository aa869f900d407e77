package publisher

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	blogger "google.golang.org/api/blogger/v3"
	"google.golang.org/api/option"
)

// Config is the Blogger publisher configuration loaded from TOML.
type Config struct {
	// BlogID of the target blog
	BlogID string `toml:"blog_id"`
	// ClientID and ClientSecret of the Google OAuth application
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	// RedirectURL registered for the OAuth application
	RedirectURL string `toml:"redirect_url"`
}

// OAuth2 builds the authorization-code flow configuration used both to
// obtain the initial refresh token and to mint access tokens from it.
func (c Config) OAuth2() oauth2.Config {
	return oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       []string{blogger.BloggerScope},
		Endpoint:     google.Endpoint,
	}
}

// Blogger publishes posts to a single blog via the Blogger v3 API.
type Blogger struct {
	service *blogger.Service
	blogID  string
}

var _ Publisher = (*Blogger)(nil)

// NewBlogger builds a Blogger client from the stored refresh token. Access
// tokens are minted and renewed by the token source as needed.
func NewBlogger(ctx context.Context, cfg Config, refreshToken string) (*Blogger, error) {
	if cfg.BlogID == "" {
		return nil, errors.New("blog id can't be empty")
	}

	conf := cfg.OAuth2()
	source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	service, err := blogger.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create blogger client")
	}

	return &Blogger{service: service, blogID: cfg.BlogID}, nil
}

func (b *Blogger) Publish(ctx context.Context, post Post) (string, error) {
	log.WithField("title", post.Title).Debug("creating blogger post")

	created, err := b.service.Posts.Insert(b.blogID, &blogger.Post{
		Title:   post.Title,
		Content: post.Content,
		Labels:  post.Labels,
	}).Context(ctx).Do()
	if err != nil {
		return "", errors.Wrap(err, "failed to create post")
	}

	return created.Id, nil
}
