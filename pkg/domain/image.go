package domain

import "fmt"

// GenerationRequest は1回の実行で1度だけ発行される画像生成要求です。
// 解決済みの設定から作られ、Pipeline.Generate に一度だけ渡されます。
type GenerationRequest struct {
	Prompt            string
	Width             int
	Height            int
	NumInferenceSteps int
	GuidanceScale     float64
	Seed              int64
}

// GeneratedImage はパイプラインが返した画像データとそのメタデータです。
// ファイルに書き出されるまで Output Writer が所有します。
type GeneratedImage struct {
	Data     []byte
	MimeType string
	UsedSeed int64 // 戻り値は情報欠落を防ぐため int64
}

// Size は要求された出力サイズを "WxH" 形式で返します。
func (r GenerationRequest) Size() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}
