package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	pageLimit  = 500
	maxRetries = 3
)

// ErrNotFound is returned when the catalog has no object with the requested id.
var ErrNotFound = errors.New("object not found")

// APIError is a non-200 response from the catalog.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// Client talks to an image catalog over its JSON API. It implements Source.
//
// Metadata requests (images, datasets, ROIs) are retried up to three times on
// transport errors, 429 and 5xx responses. Statistics requests are never
// retried: a failure there aborts the export.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retryDelay time.Duration
}

// NewClient creates a catalog client for baseURL (e.g. "https://omero.example.org").
// An empty token sends unauthenticated requests.
func NewClient(baseURL, token string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 10,
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout:   5 * time.Minute,
			Transport: transport,
		},
		retryDelay: 2 * time.Second,
	}
}

type objectResponse[T any] struct {
	Data T `json:"data"`
}

type listResponse[T any] struct {
	Data []T `json:"data"`
	Meta struct {
		Offset     int `json:"offset"`
		Limit      int `json:"limit"`
		TotalCount int `json:"totalCount"`
	} `json:"meta"`
}

type imageJSON struct {
	ID     int64  `json:"@id"`
	Name   string `json:"Name"`
	Pixels struct {
		SizeC         int     `json:"SizeC"`
		SizeZ         int     `json:"SizeZ"`
		SizeT         int     `json:"SizeT"`
		PhysicalSizeX *Length `json:"PhysicalSizeX"`
		PhysicalSizeY *Length `json:"PhysicalSizeY"`
		Channels      []struct {
			Name string `json:"Name"`
		} `json:"Channels"`
	} `json:"Pixels"`
}

func (j imageJSON) image() Image {
	img := Image{
		ID:         j.ID,
		Name:       j.Name,
		SizeC:      j.Pixels.SizeC,
		SizeZ:      j.Pixels.SizeZ,
		SizeT:      j.Pixels.SizeT,
		PixelSizeX: j.Pixels.PhysicalSizeX,
		PixelSizeY: j.Pixels.PhysicalSizeY,
	}
	for _, ch := range j.Pixels.Channels {
		img.Channels = append(img.Channels, ch.Name)
	}
	return img
}

type roiJSON struct {
	ID     int64       `json:"@id"`
	Shapes []shapeJSON `json:"shapes"`
}

type shapeJSON struct {
	ID      int64   `json:"@id"`
	Type    string  `json:"@type"`
	Text    *string `json:"Text"`
	TheZ    *int    `json:"TheZ"`
	TheT    *int    `json:"TheT"`
	X       float64 `json:"X"`
	Y       float64 `json:"Y"`
	Width   float64 `json:"Width"`
	Height  float64 `json:"Height"`
	RadiusX float64 `json:"RadiusX"`
	RadiusY float64 `json:"RadiusY"`
	X1      float64 `json:"X1"`
	Y1      float64 `json:"Y1"`
	X2      float64 `json:"X2"`
	Y2      float64 `json:"Y2"`
	Points  string  `json:"Points"`
}

func (j shapeJSON) shape() Shape {
	return Shape{
		ID:       j.ID,
		Kind:     ParseShapeKind(j.Type),
		TypeName: j.Type,
		Text:     j.Text,
		TheZ:     j.TheZ,
		TheT:     j.TheT,
		X:        j.X,
		Y:        j.Y,
		Width:    j.Width,
		Height:   j.Height,
		RadiusX:  j.RadiusX,
		RadiusY:  j.RadiusY,
		X1:       j.X1,
		Y1:       j.Y1,
		X2:       j.X2,
		Y2:       j.Y2,
		Points:   j.Points,
	}
}

// Images fetches each image by id. Ids the catalog does not know are skipped.
func (c *Client) Images(ids []int64) ([]Image, error) {
	images := make([]Image, 0, len(ids))
	for _, id := range ids {
		var resp objectResponse[imageJSON]
		err := c.getJSON(fmt.Sprintf("/api/v0/m/images/%d/", id), nil, true, &resp)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch image %d: %w", id, err)
		}
		images = append(images, resp.Data.image())
	}
	return images, nil
}

// DatasetImages lists the images contained in each dataset, in dataset order.
func (c *Client) DatasetImages(datasetIDs []int64) ([]Image, error) {
	var images []Image
	for _, id := range datasetIDs {
		page, err := fetchAll[imageJSON](c, fmt.Sprintf("/api/v0/m/datasets/%d/images/", id), nil)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch dataset %d images: %w", id, err)
		}
		for _, j := range page {
			images = append(images, j.image())
		}
	}
	return images, nil
}

// ROIs lists every ROI on the image together with its shapes.
func (c *Client) ROIs(imageID int64) ([]ROI, error) {
	query := url.Values{}
	query.Set("image", strconv.FormatInt(imageID, 10))

	page, err := fetchAll[roiJSON](c, "/api/v0/m/rois/", query)
	if err != nil {
		return nil, fmt.Errorf("fetch ROIs of image %d: %w", imageID, err)
	}

	rois := make([]ROI, 0, len(page))
	for _, j := range page {
		roi := ROI{ID: j.ID, ImageID: imageID}
		for _, s := range j.Shapes {
			roi.Shapes = append(roi.Shapes, s.shape())
		}
		rois = append(rois, roi)
	}
	return rois, nil
}

// ShapeStats requests the statistics of one shape on one plane for all
// requested channels in a single call.
func (c *Client) ShapeStats(req StatsRequest) (*ShapeStats, error) {
	channels := make([]string, len(req.Channels))
	for i, ch := range req.Channels {
		channels[i] = strconv.Itoa(ch)
	}
	query := url.Values{}
	query.Set("theZ", strconv.Itoa(req.Z))
	query.Set("theT", strconv.Itoa(req.T))
	query.Set("channels", strings.Join(channels, ","))

	var resp objectResponse[ShapeStats]
	if err := c.getJSON(fmt.Sprintf("/api/v0/m/shapes/%d/stats/", req.Shape.ID), query, false, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// fetchAll follows offset pagination until every item has been read.
func fetchAll[T any](c *Client, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}

	var all []T
	for offset := 0; ; {
		query.Set("limit", strconv.Itoa(pageLimit))
		query.Set("offset", strconv.Itoa(offset))

		var resp listResponse[T]
		if err := c.getJSON(path, query, true, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)

		offset += len(resp.Data)
		if len(resp.Data) == 0 || offset >= resp.Meta.TotalCount {
			return all, nil
		}
	}
}

// getJSON performs a GET against the API and decodes the body into out.
// With retry set, transport errors, 429 and 5xx responses are retried with a
// linear backoff.
func (c *Client) getJSON(path string, query url.Values, retry bool, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	attempts := 1
	if retry {
		attempts = maxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := c.do(u)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			return nil
		}

		lastErr = err
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode != http.StatusTooManyRequests && apiErr.StatusCode < 500 {
			return err
		}
		if errors.Is(err, ErrNotFound) {
			return err
		}
		if attempt < attempts {
			time.Sleep(time.Duration(attempt) * c.retryDelay)
		}
	}

	return lastErr
}

func (c *Client) do(u string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
	case resp.StatusCode != http.StatusOK:
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
