// Package assets loads the two images of a set and measures them.
package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/corona10/goimagehash"
	"golang.org/x/sync/errgroup"

	"github.com/MJE43/photohunt/internal/dataset"
	"github.com/MJE43/photohunt/internal/engine"
)

// maxImageBytes caps a single remote image download.
const maxImageBytes = 32 << 20

// IdenticalDistance is the perceptual-hash distance at or below which a
// pair is reported as visually identical.
const IdenticalDistance = 0

// UnrelatedDistance is the distance above which the two images are unlikely
// to be the same scene.
const UnrelatedDistance = 24

// ErrImageLoad wraps every failure to fetch or decode an image.
var ErrImageLoad = errors.New("assets: image load failed")

// Pair is the measured result of loading both images of a set.
type Pair struct {
	Left     engine.Size `json:"left"`
	Right    engine.Size `json:"right"`
	Distance int         `json:"distance"`
	Warnings []string    `json:"warnings,omitempty"`
}

// Loader fetches images from a local root or over HTTP.
type Loader struct {
	Root    string
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewLoader(root, baseURL string, timeout time.Duration, logger *slog.Logger) *Loader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		Root:    root,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{},
		Timeout: timeout,
		Logger:  logger,
	}
}

// LoadPair loads both images concurrently. Each image has its own timeout and
// the pair fails if either image fails.
func (l *Loader) LoadPair(ctx context.Context, set dataset.Set) (Pair, error) {
	var left, right image.Image

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		img, err := l.load(gctx, set.Image1)
		left = img
		return err
	})
	g.Go(func() error {
		img, err := l.load(gctx, set.Image2)
		right = img
		return err
	})
	if err := g.Wait(); err != nil {
		return Pair{}, err
	}

	p := Pair{Left: sizeOf(left), Right: sizeOf(right)}
	p.Warnings = append(p.Warnings, boundsWarnings(set, p.Left, p.Right)...)

	dist, err := perceptualDistance(left, right)
	if err != nil {
		l.Logger.Debug("perceptual hash skipped", "set", set.ID, "error", err)
	} else {
		p.Distance = dist
		switch {
		case dist <= IdenticalDistance:
			p.Warnings = append(p.Warnings, "images are perceptually identical")
		case dist > UnrelatedDistance:
			p.Warnings = append(p.Warnings, fmt.Sprintf("images look unrelated (hash distance %d)", dist))
		}
	}
	for _, w := range p.Warnings {
		l.Logger.Warn("image pair check", "set", set.ID, "warning", w)
	}
	return p, nil
}

func (l *Loader) load(ctx context.Context, ref string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	rc, err := l.open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrImageLoad, ref, err)
	}
	defer rc.Close()

	type result struct {
		img image.Image
		err error
	}
	done := make(chan result, 1)
	go func() {
		img, _, err := image.Decode(rc)
		done <- result{img, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrImageLoad, ref, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %s: decode: %w", ErrImageLoad, ref, r.err)
		}
		return r.img, nil
	}
}

func (l *Loader) open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if ref == "" {
		return nil, errors.New("empty image reference")
	}
	url := ref
	if !isRemote(ref) && l.BaseURL != "" {
		url = l.BaseURL + "/" + strings.TrimLeft(ref, "/")
	}
	if isRemote(url) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.Client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}
		return readCloser{io.LimitReader(resp.Body, maxImageBytes), resp.Body}, nil
	}
	return os.Open(filepath.Join(l.Root, filepath.FromSlash(ref)))
}

type readCloser struct {
	io.Reader
	io.Closer
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func sizeOf(img image.Image) engine.Size {
	b := img.Bounds()
	return engine.Size{Width: b.Dx(), Height: b.Dy()}
}

func perceptualDistance(a, b image.Image) (int, error) {
	ha, err := goimagehash.PerceptionHash(a)
	if err != nil {
		return 0, err
	}
	hb, err := goimagehash.PerceptionHash(b)
	if err != nil {
		return 0, err
	}
	return ha.Distance(hb)
}

// boundsWarnings flags differences that fall outside either image.
func boundsWarnings(set dataset.Set, left, right engine.Size) []string {
	var out []string
	if left != right {
		out = append(out, fmt.Sprintf("image sizes differ: %dx%d vs %dx%d", left.Width, left.Height, right.Width, right.Height))
	}
	for i, d := range set.Differences {
		for _, sz := range []engine.Size{left, right} {
			if d.X+d.Width > float64(sz.Width) || d.Y+d.Height > float64(sz.Height) {
				out = append(out, fmt.Sprintf("difference %d exceeds %dx%d image", i+1, sz.Width, sz.Height))
				break
			}
		}
	}
	return out
}
