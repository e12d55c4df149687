package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

const (
	resizedSpriteSize = 128 // px; bullet origins live in this space
	originYBias       = 20  // px; pushes diff centres down toward the barrel tips
)

// ErrServiceStatus is wrapped by errors for non-2xx service responses
var ErrServiceStatus = errors.New("service returned error status")

// AssetService calls the external ship generation, sprite and naming services
type AssetService struct {
	client *http.Client
	urls   ServicesConfig
}

// NewAssetService creates an AssetService with the configured endpoints
func NewAssetService(cfg ServicesConfig) *AssetService {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AssetService{
		client: &http.Client{Timeout: timeout},
		urls:   cfg,
	}
}

// GenerateResult is the ship generation response
type GenerateResult struct {
	ImageURL string
	Sprites  SpriteSet
}

type generateResponse struct {
	ImageURL string               `json:"imageUrl"`
	Sprites  map[string]SpriteRef `json:"sprites"`
	Message  string               `json:"message"`
}

// GenerateShip asks the generator for a ship matching prompt
func (a *AssetService) GenerateShip(ctx context.Context, prompt string) (GenerateResult, error) {
	var resp generateResponse
	status, err := a.postJSON(ctx, a.urls.GenerateShipURL, map[string]string{"prompt": prompt}, nil, &resp)
	if err != nil {
		if errors.Is(err, ErrServiceStatus) && strings.TrimSpace(resp.Message) != "" {
			return GenerateResult{}, errors.New(strings.TrimSpace(resp.Message))
		}
		if errors.Is(err, ErrServiceStatus) {
			return GenerateResult{}, fmt.Errorf("generation failed (status %d)", status)
		}
		return GenerateResult{}, err
	}
	res := GenerateResult{Sprites: ParseSpriteSet(resp.Sprites)}
	res.ImageURL = res.Sprites.Preferred()
	if res.ImageURL == "" {
		res.ImageURL = resp.ImageURL
	}
	return res, nil
}

// ExpandSpriteSheet asks for the full four-variant sheet derived from one image
func (a *AssetService) ExpandSpriteSheet(ctx context.Context, imageURL string) (SpriteSet, error) {
	var resp generateResponse
	if _, err := a.postJSON(ctx, a.urls.GenerateSpriteSheetURL, map[string]string{"imageUrl": imageURL}, nil, &resp); err != nil {
		return SpriteSet{}, err
	}
	return ParseSpriteSet(resp.Sprites), nil
}

type resizeRequest struct {
	ImageURLs []string `json:"imageUrls"`
	MaxWidth  int      `json:"maxWidth"`
	MaxHeight int      `json:"maxHeight"`
}

type resizeResponse struct {
	Items []struct {
		SourceURL  string `json:"sourceUrl"`
		ResizedURL string `json:"resizedUrl"`
	} `json:"items"`
}

// ResizeSprites returns the set with every URL replaced by its resized copy.
// Variants the service did not resize are left empty.
func (a *AssetService) ResizeSprites(ctx context.Context, sprites SpriteSet) (SpriteSet, error) {
	urls := sprites.URLs()
	if len(urls) == 0 {
		return SpriteSet{}, nil
	}
	var resp resizeResponse
	req := resizeRequest{ImageURLs: urls, MaxWidth: resizedSpriteSize, MaxHeight: resizedSpriteSize}
	if _, err := a.postJSON(ctx, a.urls.ResizeSpritesURL, req, nil, &resp); err != nil {
		return SpriteSet{}, err
	}
	resized := make(map[string]string, len(resp.Items))
	for _, it := range resp.Items {
		if it.SourceURL != "" && it.ResizedURL != "" {
			resized[it.SourceURL] = it.ResizedURL
		}
	}
	var out SpriteSet
	for i, src := range sprites {
		if src != "" {
			out[i] = resized[src]
		}
	}
	return out, nil
}

// DiffBox is a changed region between two images, in source pixels
type DiffBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DiffResult is the diff bounding box response
type DiffResult struct {
	Boxes       []DiffBox `json:"boxes"`
	ImageWidth  float64   `json:"imageWidth"`
	ImageHeight float64   `json:"imageHeight"`
}

type diffRequest struct {
	ImageURLA        string  `json:"imageUrlA"`
	ImageURLB        string  `json:"imageUrlB"`
	Threshold        float64 `json:"threshold"`
	MinBoxArea       int     `json:"minBoxArea"`
	MinClusterPixels int     `json:"minClusterPixels"`
}

// DiffBoundingBoxes returns the regions that differ between two images
func (a *AssetService) DiffBoundingBoxes(ctx context.Context, imageA, imageB string) (DiffResult, error) {
	var resp DiffResult
	req := diffRequest{
		ImageURLA:        imageA,
		ImageURLB:        imageB,
		Threshold:        0.03,
		MinBoxArea:       500,
		MinClusterPixels: 500,
	}
	if _, err := a.postJSON(ctx, a.urls.DiffBoundingBoxURL, req, nil, &resp); err != nil {
		return DiffResult{}, err
	}
	return resp, nil
}

// BulletOrigins derives muzzle offsets from the muzzle-off/muzzle-on sprite
// diff: each box centre relative to the image centre, scaled to the resized
// sprite and biased down toward the barrel.
func (a *AssetService) BulletOrigins(ctx context.Context, sprites SpriteSet) ([]r2.Vec, error) {
	off, on := sprites[ThrustOnMuzzleOff], sprites[ThrustOnMuzzleOn]
	if off == "" || on == "" {
		return nil, nil
	}
	diff, err := a.DiffBoundingBoxes(ctx, off, on)
	if err != nil {
		return nil, err
	}
	return bulletOriginsFromDiff(diff), nil
}

func bulletOriginsFromDiff(d DiffResult) []r2.Vec {
	if d.ImageWidth <= 0 || d.ImageHeight <= 0 || len(d.Boxes) == 0 {
		return nil
	}
	cx, cy := d.ImageWidth/2, d.ImageHeight/2
	sx, sy := resizedSpriteSize/d.ImageWidth, resizedSpriteSize/d.ImageHeight
	out := make([]r2.Vec, 0, len(d.Boxes))
	for _, b := range d.Boxes {
		ox := b.X + b.Width/2 - cx
		oy := b.Y + b.Height/2 - cy
		out = append(out, r2.Vec{X: ox * sx, Y: oy*sy + originYBias})
	}
	return out
}

// NameShip asks for a display name for the prompt
func (a *AssetService) NameShip(ctx context.Context, prompt string) (string, error) {
	var resp struct {
		Name string `json:"name"`
	}
	if _, err := a.postJSON(ctx, a.urls.NameShipURL, map[string]string{"prompt": prompt}, nil, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Name), nil
}

// Quota is the per-IP ship generation allowance
type Quota struct {
	IP        string `json:"ip"`
	Remaining int    `json:"remaining"`
	Cap       int    `json:"cap"`
}

// RemainingShips returns how many more ships the client IP may generate
func (a *AssetService) RemainingShips(ctx context.Context, clientIP string) (Quota, error) {
	var q Quota
	if _, err := a.getJSON(ctx, a.urls.ShipsQuotaURL, clientIPHeader(clientIP), &q); err != nil {
		return Quota{}, err
	}
	return q, nil
}

func clientIPHeader(ip string) http.Header {
	h := http.Header{}
	if ip != "" {
		h.Set("X-Client-Ip", ip)
	}
	return h
}

func (a *AssetService) postJSON(ctx context.Context, endpoint string, body interface{}, header http.Header, out interface{}) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, header, out)
}

func (a *AssetService) getJSON(ctx context.Context, endpoint string, header http.Header, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return a.do(req, header, out)
}

// do sends req and decodes the JSON body into out even on error statuses,
// so callers can surface the service's message
func (a *AssetService) do(req *http.Request, header http.Header, out interface{}) (int, error) {
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", req.Method, redactURL(req.URL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	if len(body) > 0 && out != nil {
		// Parse failures are tolerated; out keeps its zero value.
		_ = json.Unmarshal(body, out)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("%s %s: %w (%d)", req.Method, redactURL(req.URL), ErrServiceStatus, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func redactURL(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}
