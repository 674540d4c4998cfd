package cmd

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shouni/go-remote-io/pkg/remoteio"
	"github.com/spf13/cobra"

	"github.com/shouni/z-image-cli/pkg/config"
	"github.com/shouni/z-image-cli/pkg/generator"
	"github.com/shouni/z-image-cli/pkg/output"
	"github.com/shouni/z-image-cli/pkg/pipeline"
)

// deps はテストで差し替える外部依存です。
type deps struct {
	newLoader func(ctx context.Context, b config.Backend) (pipeline.Loader, error)
	reader    remoteio.InputReader
	writer    remoteio.OutputWriter
	outputDir string
	now       func() time.Time
}

// defaultDeps はローカルファイルシステム用の reader/writer を使います。
// GCS/S3 クライアントは渡さないため、gs:// や s3:// のパスはエラーになります。
func defaultDeps() deps {
	return deps{
		newLoader: pipeline.NewLoader,
		reader:    remoteio.NewUniversalInputReader(nil, nil),
		writer:    remoteio.NewUniversalIOWriter(nil, nil),
		outputDir: output.DefaultDir,
		now:       time.Now,
	}
}

// NewRootCmd はルートコマンドを組み立てます。
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultDeps())
}

func newRootCmd(d deps) *cobra.Command {
	opts := config.DefaultOptions()
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "z-image",
		Short: "Generate images with Z-Image",
		Long: `Generate a single image from a text prompt with a pretrained diffusion pipeline
and save it as images/YYYYMMDD_HHMMSS.png.

Examples:
  $ z-image -p "a red fox" -W 512 -H 768
  $ z-image --prompt-file prompt.txt
  $ ZIMAGE_BACKEND=gemini z-image -p "a red fox"`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(verbose)
			return run(cmd.Context(), d, opts, configPath)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Prompt, "prompt", "p", opts.Prompt, "Text prompt for image generation")
	f.StringVar(&opts.PromptFile, "prompt-file", "", "Path to a file containing the prompt text (takes precedence over --prompt)")
	f.IntVarP(&opts.Width, "width", "W", opts.Width, "Width of the generated image")
	f.IntVarP(&opts.Height, "height", "H", opts.Height, "Height of the generated image")
	f.StringVar(&configPath, "config", "", "Path to a YAML file with backend settings")
	f.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func run(ctx context.Context, d deps, opts config.Options, configPath string) error {
	// プロンプトファイルの確認はモデルのロードより先に行う
	cfg, err := config.Resolve(ctx, d.reader, opts)
	if err != nil {
		return err
	}

	backend, err := config.LoadBackend(configPath)
	if err != nil {
		return err
	}
	slog.Debug("バックエンド設定", "backend", backend.Kind, "endpoint", backend.Endpoint, "model", backend.Model)

	loader, err := d.newLoader(ctx, backend)
	if err != nil {
		return err
	}
	inv, err := generator.NewInvoker(loader, backend.Model)
	if err != nil {
		return err
	}

	img, err := inv.Generate(ctx, cfg)
	if err != nil {
		return err
	}

	writer, err := output.NewWriter(d.writer, d.outputDir, output.WithClock(d.now))
	if err != nil {
		return err
	}
	path, err := writer.Write(ctx, img)
	if err != nil {
		return err
	}
	slog.Info("画像を保存しました", "path", path)
	return nil
}

func setupLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// Execute はルートコマンドを実行し、エラー時は終了コード1で終了します。
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
