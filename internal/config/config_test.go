package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/teamroom")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 24*time.Hour, cfg.JWTTTL)
	require.Equal(t, int64(10485760), cfg.MaxUploadSize)
	require.Equal(t, "120-M", cfg.RateLimit)
	require.Contains(t, cfg.AllowedExtensions, ".pdf")
	require.Contains(t, cfg.AllowedExtensions, ".txt")
}

func TestLoadParsesAllowedExtensions(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ALLOWED_EXTENSIONS", " .PDF, .txt ,.Png")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{".pdf", ".txt", ".png"}, cfg.AllowedExtensions)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	// t.Setenv восстановит переменную после теста, Unsetenv убирает её
	// на время самого теста
	t.Setenv("JWT_SECRET", "placeholder")
	os.Unsetenv("JWT_SECRET")

	_, err := Load()
	require.Error(t, err)
}
