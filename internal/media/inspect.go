package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"net/http"

	"github.com/bbrks/go-blurhash"
	_ "golang.org/x/image/webp" // Register WebP decoder

	domainerrors "github.com/quillpress/quill-server/internal/errors"
)

// blurHashSize is the longest edge of the thumbnail the hash is computed from.
const blurHashSize = 64

var extByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageInfo describes an uploaded image.
type ImageInfo struct {
	ContentType string
	Ext         string
	Width       int
	Height      int
	Size        int64
	BlurHash    string
}

// Inspect sniffs the format of data and decodes it.
// Anything other than jpeg, png, gif, or webp is a validation error.
func Inspect(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, domainerrors.Validation("image is empty")
	}

	contentType := http.DetectContentType(data)
	ext, ok := extByContentType[contentType]
	if !ok {
		return ImageInfo{}, domainerrors.Validationf("unsupported image type %s", contentType)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, domainerrors.Validation("image could not be decoded").WithCause(err)
	}

	bounds := img.Bounds()
	info := ImageInfo{
		ContentType: contentType,
		Ext:         ext,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Size:        int64(len(data)),
	}

	// 4 horizontal, 3 vertical components.
	hash, err := blurhash.Encode(4, 3, thumbnail(img))
	if err != nil {
		return info, fmt.Errorf("encode blurhash: %w", err)
	}
	info.BlurHash = hash
	return info, nil
}

// thumbnail scales img down with nearest-neighbor sampling.
func thumbnail(img image.Image) image.Image {
	bounds := img.Bounds()
	srcWidth, srcHeight := bounds.Dx(), bounds.Dy()

	if srcWidth <= blurHashSize && srcHeight <= blurHashSize {
		return img
	}

	var dstWidth, dstHeight int
	if srcWidth > srcHeight {
		dstWidth = blurHashSize
		dstHeight = max((srcHeight*blurHashSize)/srcWidth, 1)
	} else {
		dstHeight = blurHashSize
		dstWidth = max((srcWidth*blurHashSize)/srcHeight, 1)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstWidth, dstHeight))
	xRatio := float64(srcWidth) / float64(dstWidth)
	yRatio := float64(srcHeight) / float64(dstHeight)

	for y := range dstHeight {
		for x := range dstWidth {
			srcX := int(float64(x) * xRatio)
			srcY := int(float64(y) * yRatio)
			dst.Set(x, y, img.At(bounds.Min.X+srcX, bounds.Min.Y+srcY))
		}
	}
	return dst
}
