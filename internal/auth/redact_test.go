package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactURL(t *testing.T) {
	t.Parallel()

	got := RedactURL("https://dashboard.hologram.io/api/1/csr/rdm?apikey=s3cr3t&deviceid=42&orgid=7")
	assert.NotContains(t, got, "s3cr3t")
	assert.Contains(t, got, "apikey=REDACTED")
	assert.Contains(t, got, "deviceid=42")
	assert.Contains(t, got, "orgid=7")
}

func TestRedactURLWithoutKey(t *testing.T) {
	t.Parallel()

	in := "https://dashboard.hologram.io/api/1/csr/rdm?deviceid=42"
	assert.Equal(t, in, RedactURL(in))
}

func TestRedactURLUnparsable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "http://[::1", RedactURL("http://[::1?apikey=s3cr3t"))
}

func TestRedactKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "******1234", RedactKey("abcdef1234"))
	assert.Equal(t, "***", RedactKey("abc"))
	assert.Equal(t, "", RedactKey(""))
}
