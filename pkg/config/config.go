package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

const (
	DefaultWidth  = 1024
	DefaultHeight = 1024

	// DefaultPrompt は --prompt 未指定時に使われるサンプルプロンプトです。
	DefaultPrompt = "Young Chinese woman in red Hanfu, intricate embroidery. Impeccable makeup, red floral forehead pattern. " +
		"Elaborate high bun, golden phoenix headdress, red flowers, beads. Holds round folding fan with lady, trees, bird. " +
		"Neon lightning-bolt lamp (⚡️), bright yellow glow, above extended left palm. " +
		"Soft-lit outdoor night background, silhouetted tiered pagoda (西安大雁塔), blurred colorful distant lights."
)

var (
	ErrPromptFileNotFound = errors.New("prompt file not found")
	ErrInvalidDimensions  = errors.New("width and height must be positive")
	ErrEmptyPrompt        = errors.New("prompt is empty")
)

// Options はコマンドラインから受け取った未解決の値です。
type Options struct {
	Prompt     string
	PromptFile string
	Width      int
	Height     int
}

// Config は1回の実行で使う解決済みの設定です。生成後は変更しません。
type Config struct {
	Prompt string
	Width  int
	Height int
}

// DefaultOptions はフラグのデフォルト値を返します。
func DefaultOptions() Options {
	return Options{
		Prompt: DefaultPrompt,
		Width:  DefaultWidth,
		Height: DefaultHeight,
	}
}

// Resolve は Options を1つの Config にまとめます。
// PromptFile が指定されていれば reader 経由で読んだ内容（前後の空白を除去）が Prompt より優先されます。
func Resolve(ctx context.Context, reader remoteio.InputReader, opts Options) (Config, error) {
	prompt := opts.Prompt
	if opts.PromptFile != "" {
		if reader == nil {
			return Config{}, fmt.Errorf("reader is required")
		}
		p, err := readPromptFile(ctx, reader, opts.PromptFile)
		if err != nil {
			return Config{}, err
		}
		prompt = p
	}

	if opts.Width <= 0 || opts.Height <= 0 {
		return Config{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, opts.Width, opts.Height)
	}
	if prompt == "" {
		return Config{}, ErrEmptyPrompt
	}

	return Config{
		Prompt: prompt,
		Width:  opts.Width,
		Height: opts.Height,
	}, nil
}

func readPromptFile(ctx context.Context, reader remoteio.InputReader, path string) (string, error) {
	rc, err := reader.Open(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrPromptFileNotFound, path)
		}
		return "", fmt.Errorf("プロンプトファイルのオープンに失敗しました: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("プロンプトファイルの読み込みに失敗しました: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
