package imgutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var ErrEmptyImage = errors.New("imgutil: empty image data")

// EncodePNG は画像データ（JPEG, GIF, WebP 等）を可逆な PNG 形式に変換します。
// 入力がすでに PNG の場合はそのまま返します。
func EncodePNG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if http.DetectContentType(data) == "image/png" {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("画像のデコードに失敗しました: %w", err)
	}
	return encode(img)
}

// Dimensions は画像全体をデコードせずに幅と高さを返します。
func Dimensions(data []byte) (int, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrEmptyImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Resize は画像を指定サイズに拡縮し、PNG として返します。
// アスペクト比は保持しません。
func Resize(data []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", width, height)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("画像のデコードに失敗しました: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return encode(dst)
}

func encode(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
