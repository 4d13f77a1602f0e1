package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"

	"github.com/shouni/go-utils/urlpath"
)

// SaveImage はセッション内の index 番目の画像を PNG として保存し、保存先パスを返すのだ。
// name が空なら generated_image_{index}.png になるのだ。
func (g *Generator) SaveImage(ctx context.Context, index int, name string) (string, error) {
	img, err := g.Session().Image(index)
	if err != nil {
		slog.ErrorContext(ctx, "無効な画像インデックスなのだ", "index", index)
		return "", err
	}
	if name == "" {
		name = fmt.Sprintf("generated_image_%d.png", index)
	}

	data, err := EncodePNG(img.Base64)
	if err != nil {
		slog.ErrorContext(ctx, "画像の変換に失敗したのだ", "index", index, "error", err)
		return "", err
	}

	path, err := urlpath.ResolvePath(g.opts.OutputDir, name)
	if err != nil {
		return "", err
	}
	if err := g.writer.Write(ctx, path, bytes.NewReader(data), "image/png"); err != nil {
		slog.ErrorContext(ctx, "画像の保存に失敗したのだ", "path", path, "error", err)
		return "", fmt.Errorf("画像の書き込みに失敗しました %s: %w", path, err)
	}

	slog.InfoContext(ctx, "画像を保存したのだ", "path", path)
	return path, nil
}

// EncodePNG は Base64 の画像をデコードし、PNG に正規化したバイト列を返します。
func EncodePNG(b64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("base64のデコードに失敗しました: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("画像のデコードに失敗しました: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("PNGエンコードに失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}
