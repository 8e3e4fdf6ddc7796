// Package maptile downloads and decodes OpenStreetMap raster tiles.
package maptile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Andrcraft9/Vulkan-Project/render"
)

const (
	// DefaultBaseURL is the public OpenStreetMap tile server.
	DefaultBaseURL = "https://tile.openstreetmap.org"

	// DefaultUserAgent identifies this client to the tile server. The public
	// server rejects requests without a User-Agent.
	DefaultUserAgent = "vulkan-project-map/0.1"
)

// Tile addresses one slippy map tile. X grows east, Y grows south and both
// run from 0 to 2^Zoom-1.
type Tile struct {
	Zoom int
	X    int
	Y    int
}

// Client fetches map tiles over HTTP. The zero value uses the OpenStreetMap
// tile server, the default User-Agent, http.DefaultClient and slog.Default.
type Client struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// URL returns the request URL for a tile.
func (c *Client) URL(tile Tile) string {
	return fmt.Sprintf("%s/%d/%d/%d.png", c.baseURL(), tile.Zoom, tile.X, tile.Y)
}

// Fetch downloads one tile and decodes it into image data.
func (c *Client) Fetch(ctx context.Context, tile Tile) (*render.ImageData, error) {
	url := c.URL(tile)
	c.logger().Info("requesting a tile", "url", url)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("User-Agent", c.userAgent())

	response, err := c.httpClient().Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("failed to request the tile %s: status %s!", url, response.Status)
	}

	imageData, err := render.DecodeImageData(response.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode the tile %s", url)
	}

	c.logger().Info("decoded a tile", "url", url,
		"width", imageData.Width, "height", imageData.Height, "channels", imageData.Channels)
	return imageData, nil
}

// FetchRegion downloads a width by height block of tiles whose north west
// corner is topLeft. Tiles are fetched concurrently and returned in row
// major order; the first error cancels the remaining requests.
func (c *Client) FetchRegion(ctx context.Context, topLeft Tile, width int, height int) ([]*render.ImageData, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("failed to request the tile region: %dx%d tiles!", width, height)
	}

	tiles := make([]*render.ImageData, width*height)
	group, groupCtx := errgroup.WithContext(ctx)
	for row := 0; row < height; row++ {
		for column := 0; column < width; column++ {
			row, column := row, column
			group.Go(func() error {
				imageData, err := c.Fetch(groupCtx, Tile{
					Zoom: topLeft.Zoom,
					X:    topLeft.X + column,
					Y:    topLeft.Y + row,
				})
				if err != nil {
					return err
				}

				tiles[row*width+column] = imageData
				return nil
			})
		}
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}
	return tiles, nil
}

// TileAt returns the tile containing the coordinate at the given zoom,
// clamped to the valid tile range.
func TileAt(lat float64, lon float64, zoom int) Tile {
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180

	x := int(math.Floor((lon + 180) / 360 * n))
	y := int(math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n))

	limit := int(n) - 1
	return Tile{Zoom: zoom, X: clamp(x, 0, limit), Y: clamp(y, 0, limit)}
}

func clamp(value int, low int, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return DefaultUserAgent
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
