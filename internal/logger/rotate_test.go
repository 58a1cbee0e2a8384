package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingFile(t *testing.T) {
	t.Run("AppendsWithoutRotationBelowLimit", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "app.log")

		w, err := newRotatingFile(path, 1024, 3)
		require.NoError(t, err)

		_, err = w.Write([]byte("hello\n"))
		require.NoError(t, err)
		_, err = w.Write([]byte("world\n"))
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "hello\nworld\n", string(data))

		_, err = os.Stat(path + ".1")
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("RotatesWhenLimitExceeded", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "app.log")

		w, err := newRotatingFile(path, 10, 2)
		require.NoError(t, err)

		_, err = w.Write([]byte("0123456789"))
		require.NoError(t, err)

		// Next write pushes past the limit and triggers rotation first
		_, err = w.Write([]byte("abc"))
		require.NoError(t, err)

		current, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "abc", string(current))

		backup, err := os.ReadFile(path + ".1")
		require.NoError(t, err)
		assert.Equal(t, "0123456789", string(backup))
	})

	t.Run("KeepsAtMostMaxBackups", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "app.log")

		w, err := newRotatingFile(path, 4, 2)
		require.NoError(t, err)

		for _, chunk := range []string{"aaaa", "bbbb", "cccc", "dddd"} {
			_, err = w.Write([]byte(chunk))
			require.NoError(t, err)
		}

		// aaaa and bbbb rotated out; only the two newest backups remain
		b1, err := os.ReadFile(path + ".1")
		require.NoError(t, err)
		assert.Equal(t, "cccc", string(b1))

		b2, err := os.ReadFile(path + ".2")
		require.NoError(t, err)
		assert.Equal(t, "bbbb", string(b2))

		_, err = os.Stat(path + ".3")
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("ZeroMaxSizeNeverRotates", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "app.log")

		w, err := newRotatingFile(path, 0, 3)
		require.NoError(t, err)

		big := bytes.Repeat([]byte("x"), 4096)
		_, err = w.Write(big)
		require.NoError(t, err)
		_, err = w.Write(big)
		require.NoError(t, err)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, int64(8192), info.Size())

		_, err = os.Stat(path + ".1")
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("ResumesSizeFromExistingFile", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "app.log")
		require.NoError(t, os.WriteFile(path, []byte("12345678"), 0644))

		w, err := newRotatingFile(path, 10, 1)
		require.NoError(t, err)

		// 8 existing + 5 new > 10: must rotate before writing
		_, err = w.Write([]byte("fresh"))
		require.NoError(t, err)

		current, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "fresh", string(current))

		backup, err := os.ReadFile(path + ".1")
		require.NoError(t, err)
		assert.Equal(t, "12345678", string(backup))
	})
}
