package output

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/shouni/z-image-cli/pkg/domain"
	"github.com/shouni/z-image-cli/pkg/imgutil"
)

const (
	DefaultDir = "images"
	// FilenameLayout は秒単位のローカル時刻です。同じ秒内の実行は後勝ちで上書きされます。
	FilenameLayout = "20060102_150405"
)

// Writer は生成画像を PNG として出力ディレクトリに保存します。
type Writer struct {
	out remoteio.OutputWriter
	dir string
	now func() time.Time
}

type Option func(*Writer)

// WithClock はファイル名に使う時刻の取得元を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// NewWriter は書き込み先の OutputWriter を注入して Writer を初期化します。
// ローカルのディレクトリ作成（既存なら何もしない）は OutputWriter が行います。
func NewWriter(out remoteio.OutputWriter, dir string, opts ...Option) (*Writer, error) {
	if out == nil {
		return nil, fmt.Errorf("out (remoteio.OutputWriter) is required")
	}
	if dir == "" {
		dir = DefaultDir
	}
	w := &Writer{out: out, dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Write はタイムスタンプ名で画像を書き出し、そのパスを返します。
func (w *Writer) Write(ctx context.Context, img *domain.GeneratedImage) (string, error) {
	if img == nil {
		return "", fmt.Errorf("image is required")
	}

	data, err := imgutil.EncodePNG(img.Data)
	if err != nil {
		return "", fmt.Errorf("PNGへの変換に失敗しました: %w", err)
	}

	path := filepath.Join(w.dir, w.now().Local().Format(FilenameLayout)+".png")
	if err := w.out.Write(ctx, path, bytes.NewReader(data), "image/png"); err != nil {
		return "", fmt.Errorf("画像の保存に失敗しました: %w", err)
	}
	return path, nil
}
