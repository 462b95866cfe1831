package ffmpeg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func fakeEnv(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func notOnPath(string) (string, error) {
	return "", errors.New("not found")
}

func TestLocatePrefersEnvOverride(t *testing.T) {
	lookPath := func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	}
	paths, err := locate(fakeEnv(map[string]string{
		envFFmpegPath:  "/opt/ff/ffmpeg",
		envFFprobePath: "/opt/ff/ffprobe",
	}), lookPath)
	if err != nil {
		t.Fatalf("locate returned error: %v", err)
	}
	if paths.FFmpeg != "/opt/ff/ffmpeg" || paths.FFprobe != "/opt/ff/ffprobe" {
		t.Errorf("unexpected paths: %+v", paths)
	}
}

func TestLocateFallsBackToPath(t *testing.T) {
	lookPath := func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	}
	paths, err := locate(fakeEnv(map[string]string{
		envFFmpegPath: "/opt/ff/ffmpeg",
	}), lookPath)
	if err != nil {
		t.Fatalf("locate returned error: %v", err)
	}
	if paths.FFmpeg != "/opt/ff/ffmpeg" || paths.FFprobe != "/usr/bin/ffprobe" {
		t.Errorf("unexpected paths: %+v", paths)
	}
}

func TestLocateUsesCacheDir(t *testing.T) {
	cache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cache)

	dir := cacheInstallDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"ffmpeg", "ffprobe"} {
		p := filepath.Join(dir, name+executableSuffix())
		if err := os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	paths, err := locate(fakeEnv(nil), notOnPath)
	if err != nil {
		t.Fatalf("locate returned error: %v", err)
	}
	if filepath.Dir(paths.FFmpeg) != dir || filepath.Dir(paths.FFprobe) != dir {
		t.Errorf("expected cached binaries under %s, got %+v", dir, paths)
	}
}

func TestLocateNotFound(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	_, err := locate(fakeEnv(nil), notOnPath)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
