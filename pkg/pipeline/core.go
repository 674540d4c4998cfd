package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shouni/z-image-cli/pkg/domain"
	"github.com/shouni/z-image-cli/pkg/imgutil"
)

// toGeneratedImage は生成結果を要求サイズに合わせてドメインモデルへマッピングします。
// バックエンドが異なるサイズを返した場合は要求サイズへ拡縮します。
func toGeneratedImage(ctx context.Context, data []byte, req domain.GenerationRequest) (*domain.GeneratedImage, error) {
	if len(data) == 0 {
		return nil, ErrNoImage
	}

	w, h, err := imgutil.Dimensions(data)
	if err != nil {
		return nil, fmt.Errorf("生成画像のデコードに失敗しました: %w", err)
	}
	if w != req.Width || h != req.Height {
		slog.InfoContext(ctx, "生成画像を要求サイズに合わせます",
			"got", fmt.Sprintf("%dx%d", w, h), "want", req.Size())
		if data, err = imgutil.Resize(data, req.Width, req.Height); err != nil {
			return nil, err
		}
	}

	return &domain.GeneratedImage{
		Data:     data,
		MimeType: http.DetectContentType(data),
		UsedSeed: req.Seed,
	}, nil
}

func decodeB64(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrNoImage
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("画像データのデコードに失敗しました: %w", err)
	}
	return data, nil
}

// seedToPtrInt32 は int64 のシードを SDK 用の *int32 に変換します。
// int32 の範囲を超える値は上位ビットが切り捨てられます。
func seedToPtrInt32(seed int64) *int32 {
	val := int32(seed)
	return &val
}
