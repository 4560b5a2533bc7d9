// Package preview produces compressed display copies of uploaded design images.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxHeight = 280
	DefaultMaxWidth  = 350
	DefaultQuality   = 85

	// DefaultMaxPixels caps decoding at about 179 megapixels.
	DefaultMaxPixels = 178956970

	// OutputFormat is the encoding of every preview.
	OutputFormat = "JPEG"

	maxConcurrentPreviews = 4
)

var (
	ErrEmptyImage    = errors.New("empty image data")
	ErrTooManyPixels = errors.New("image exceeds the pixel limit")
)

// Options bounds the preview size. Zero fields take the defaults.
type Options struct {
	MaxHeight int
	MaxWidth  int
	Quality   int
	MaxPixels int64 // Largest width*height that is decoded
}

func (o Options) withDefaults() Options {
	if o.MaxHeight <= 0 {
		o.MaxHeight = DefaultMaxHeight
	}
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultMaxWidth
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	return o
}

// File is one uploaded image.
type File struct {
	Name string
	Data []byte
}

// Result describes a generated preview and its compression statistics.
type Result struct {
	Name            string
	SourceFormat    string // Decoder name of the upload, e.g. "png"
	Format          string
	Width           int
	Height          int
	OriginalBytes   int
	CompressedBytes int
	Flattened       bool // Alpha channel was dropped
	Data            []byte
}

func (r *Result) OriginalKB() float64 {
	return float64(r.OriginalBytes) / 1024
}

func (r *Result) CompressedKB() float64 {
	return float64(r.CompressedBytes) / 1024
}

// CompressionPct is the size reduction relative to the upload, negative when
// the preview is larger.
func (r *Result) CompressionPct() float64 {
	if r.OriginalBytes == 0 {
		return 0
	}
	return float64(r.OriginalBytes-r.CompressedBytes) / float64(r.OriginalBytes) * 100
}

// Caption is the two-line summary shown under a preview.
func (r *Result) Caption() string {
	return fmt.Sprintf("Original: %.1f KB → Compressed: %.1f KB (%.1f%% smaller)\nFormat: %s | Dimensions: %dx%d",
		r.OriginalKB(), r.CompressedKB(), r.CompressionPct(), r.Format, r.Width, r.Height)
}

// Preview decodes an image, drops any alpha channel, scales it to the display
// bounds and re-encodes it as JPEG.
func Preview(name string, data []byte, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > opts.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d is more than %d pixels", ErrTooManyPixels, cfg.Width, cfg.Height, opts.MaxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img, flattened := dropAlpha(img)

	b := img.Bounds()
	width, height := TargetSize(b.Dx(), b.Dy(), opts.MaxWidth, opts.MaxHeight)
	resized := imaging.Resize(img, width, height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(opts.Quality)); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}

	return &Result{
		Name:            name,
		SourceFormat:    format,
		Format:          OutputFormat,
		Width:           width,
		Height:          height,
		OriginalBytes:   len(data),
		CompressedBytes: buf.Len(),
		Flattened:       flattened,
		Data:            buf.Bytes(),
	}, nil
}

// TargetSize scales to maxHeight first and only then clamps the width to
// maxWidth, truncating fractional pixels. Images smaller than the bounds are
// scaled up. Neither dimension drops below one pixel.
func TargetSize(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}

	ratio := float64(maxHeight) / float64(height)
	newWidth := int(float64(width) * ratio)
	newHeight := maxHeight

	if newWidth > maxWidth {
		newWidth = maxWidth
		ratio = float64(newWidth) / float64(width)
		newHeight = int(float64(height) * ratio)
	}

	return max(newWidth, 1), max(newHeight, 1)
}

// dropAlpha discards transparency by forcing every pixel opaque while keeping
// the stored color channels. Nothing is composited onto a background.
func dropAlpha(img image.Image) (image.Image, bool) {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img, false
	}

	nrgba := imaging.Clone(img)
	for i := 3; i < len(nrgba.Pix); i += 4 {
		nrgba.Pix[i] = 0xff
	}
	return nrgba, true
}

// Item is the outcome for one file of a batch: a preview or an error.
type Item struct {
	Name   string
	Result *Result
	Err    error
}

// Warning is the inline message shown in place of a failed preview.
func (i Item) Warning() string {
	if i.Err == nil {
		return ""
	}
	return fmt.Sprintf("Error processing image %s: %v", i.Name, i.Err)
}

// PreviewAll previews every file. A failing file is recorded on its item and
// the rest continue. Items keep the input order.
func PreviewAll(ctx context.Context, files []File, opts Options) []Item {
	items := make([]Item, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPreviews)
	for i := range files {
		g.Go(func() error {
			f := files[i]
			items[i].Name = f.Name
			if err := ctx.Err(); err != nil {
				items[i].Err = err
				return nil
			}

			result, err := Preview(f.Name, f.Data, opts)
			if err != nil {
				log.Warn().Str("file", f.Name).Err(err).Msg("failed to generate preview")
				items[i].Err = err
				return nil
			}
			items[i].Result = result
			return nil
		})
	}
	_ = g.Wait()

	return items
}
