package nn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	getter "github.com/hashicorp/go-getter"
)

// Fetch downloads a weights file into dir and returns its local path.
// src is any go-getter source: a local path, http(s) URL, s3::, gcs:: or
// git:: address. Files already present in dir are reused.
func Fetch(ctx context.Context, src, dir string) (string, error) {
	if src == "" {
		return "", fmt.Errorf("fetch: empty source")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("fetch: create cache dir: %w", err)
	}

	sum := sha256.Sum256([]byte(src))
	dst := filepath.Join(dir, hex.EncodeToString(sum[:8])+".safetensors")
	if _, err := os.Stat(dst); err == nil {
		slog.Debug("model cache hit", "src", src, "path", dst)
		return dst, nil
	}

	pwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	slog.Info("downloading model", "src", src, "path", dst)

	// Download next to dst and rename so a cancelled fetch never leaves a
	// truncated file in the cache.
	tmp := dst + ".part"
	client := &getter.Client{
		Ctx:     ctx,
		Src:     src,
		Dst:     tmp,
		Pwd:     pwd,
		Mode:    getter.ClientModeFile,
		Getters: cacheGetters(),
	}
	if err := client.Get(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("fetch %s: %w", src, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	return dst, nil
}

// cacheGetters copies local files instead of symlinking them, so the cache
// outlives its source.
func cacheGetters() map[string]getter.Getter {
	getters := make(map[string]getter.Getter, len(getter.Getters))
	for k, v := range getter.Getters {
		getters[k] = v
	}
	getters["file"] = &getter.FileGetter{Copy: true}
	return getters
}
