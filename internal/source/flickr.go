package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/starford/travelogue/internal/models"
)

// DefaultFlickrEndpoint is the public Flickr REST endpoint.
const DefaultFlickrEndpoint = "https://api.flickr.com/services/rest/"

// Flickr error codes that change how a failure is classified.
const (
	flickrNotFound           = 1
	flickrServiceUnavailable = 105
)

// FlickrConfig holds the Flickr client settings.
type FlickrConfig struct {
	Endpoint string
	APIKey   string
	UserID   string
	Timeout  time.Duration
}

// Flickr reads collections (tags) and photosets (posts) of one user.
type Flickr struct {
	cfg    FlickrConfig
	client *http.Client
}

// NewFlickr creates a Flickr source. A nil client selects one with
// cfg.Timeout.
func NewFlickr(cfg FlickrConfig, client *http.Client) *Flickr {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultFlickrEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Flickr{cfg: cfg, client: client}
}

type flickrStatus struct {
	Stat    string `json:"stat"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type flickrContent struct {
	Content string `json:"_content"`
}

// flexInt accepts both 12 and "12"; Flickr uses either depending on method.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("flickr: bad number %s", b)
	}
	*n = flexInt(v)
	return nil
}

type flickrCollection struct {
	Title       string             `json:"title"`
	Collections []flickrCollection `json:"collection"`
	Sets        []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"set"`
}

type flickrTreeResponse struct {
	flickrStatus
	Collections struct {
		Collection []flickrCollection `json:"collection"`
	} `json:"collections"`
}

type flickrSetResponse struct {
	flickrStatus
	Photoset struct {
		ID          string        `json:"id"`
		Primary     string        `json:"primary"`
		Secret      string        `json:"secret"`
		Server      string        `json:"server"`
		Photos      flexInt       `json:"photos"`
		Title       flickrContent `json:"title"`
		Description flickrContent `json:"description"`
		DateCreate  flexInt       `json:"date_create"`
	} `json:"photoset"`
}

type flickrTagsResponse struct {
	flickrStatus
	Who struct {
		Tags struct {
			Tag []struct {
				Clean string          `json:"clean"`
				Raw   []flickrContent `json:"raw"`
			} `json:"tag"`
		} `json:"tags"`
	} `json:"who"`
}

// CollectionTree maps the user's collections to tags and their sets to posts.
func (f *Flickr) CollectionTree(ctx context.Context) (*models.Tree, error) {
	var resp flickrTreeResponse
	err := f.call(ctx, OpCollectionTree, "", "flickr.collections.getTree", url.Values{
		"user_id": {f.cfg.UserID},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &models.Tree{Tags: convertCollections(resp.Collections.Collection)}, nil
}

func convertCollections(in []flickrCollection) []models.TagSource {
	out := make([]models.TagSource, 0, len(in))
	for _, c := range in {
		tag := models.TagSource{Title: c.Title}
		if len(c.Collections) > 0 {
			tag.Tags = convertCollections(c.Collections)
		}
		for _, s := range c.Sets {
			tag.Posts = append(tag.Posts, models.PostSummary{ID: s.ID, Title: s.Title})
		}
		out = append(out, tag)
	}
	return out
}

// PostDetail loads a photoset's description, creation time, size and thumbnail.
func (f *Flickr) PostDetail(ctx context.Context, id string) (*models.PostDetail, error) {
	var resp flickrSetResponse
	err := f.call(ctx, OpPostDetail, id, "flickr.photosets.getInfo", url.Values{
		"photoset_id": {id},
		"user_id":     {f.cfg.UserID},
	}, &resp)
	if err != nil {
		return nil, err
	}
	set := resp.Photoset
	detail := &models.PostDetail{
		Description: set.Description.Content,
		PhotoCount:  int(set.Photos),
	}
	if set.DateCreate > 0 {
		detail.CreatedOn = time.Unix(int64(set.DateCreate), 0).UTC()
	}
	if set.Primary != "" && set.Server != "" {
		detail.ThumbnailURL = fmt.Sprintf("https://live.staticflickr.com/%s/%s_%s_q.jpg", set.Server, set.Primary, set.Secret)
	}
	return detail, nil
}

// PhotoTags lists every photo tag the user has applied.
func (f *Flickr) PhotoTags(ctx context.Context) ([]models.PhotoTag, error) {
	var resp flickrTagsResponse
	err := f.call(ctx, OpPhotoTags, "", "flickr.tags.getListUserRaw", url.Values{
		"user_id": {f.cfg.UserID},
	}, &resp)
	if err != nil {
		return nil, err
	}
	tags := make([]models.PhotoTag, 0, len(resp.Who.Tags.Tag))
	for _, t := range resp.Who.Tags.Tag {
		raw := t.Clean
		if len(t.Raw) > 0 && t.Raw[0].Content != "" {
			raw = t.Raw[0].Content
		}
		tags = append(tags, models.PhotoTag{CleanName: t.Clean, RawName: raw})
	}
	return tags, nil
}

// statusCarrier is satisfied by every response through flickrStatus.
type statusCarrier interface{ status() flickrStatus }

func (s flickrStatus) status() flickrStatus { return s }

func (f *Flickr) call(ctx context.Context, op, id, method string, params url.Values, out statusCarrier) error {
	params.Set("method", method)
	params.Set("api_key", f.cfg.APIKey)
	params.Set("format", "json")
	params.Set("nojsoncallback", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return permanent(op, id, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return transient(op, id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transient(op, id, err)
	}

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return transient(op, id, fmt.Errorf("http status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return permanent(op, id, fmt.Errorf("http status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return transient(op, id, fmt.Errorf("decode %s: %w", method, err))
	}

	st := out.status()
	if st.Stat == "ok" {
		return nil
	}
	apiErr := fmt.Errorf("flickr %d: %s", st.Code, st.Message)
	switch st.Code {
	case flickrNotFound:
		return permanent(op, id, apiErr)
	case flickrServiceUnavailable:
		return transient(op, id, apiErr)
	}
	if st.Stat == "" {
		return transient(op, id, errors.New("flickr: response without stat"))
	}
	return transient(op, id, apiErr)
}
