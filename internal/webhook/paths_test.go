package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/backmassage/mediasweep/internal/config"
)

func TestMapPath(t *testing.T) {
	mappings := []config.PathMapping{
		{From: "/media", To: "/data/media"},
		{From: "/media/tv/", To: "/data/media/TV Shows"},
	}
	tests := []struct {
		in, want string
	}{
		{"/media/Movies/a.mkv", "/data/media/Movies/a.mkv"},
		{"/media/tv/Show/e.mkv", "/data/media/TV Shows/Show/e.mkv"},
		{"/mediaextra/a.mkv", "/mediaextra/a.mkv"},
		{"/other/a.mkv", "/other/a.mkv"},
		{"/media", "/data/media"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MapPath(mappings, tt.in))
		})
	}
}

func TestMapPath_NoMappings(t *testing.T) {
	assert.Equal(t, "/x/y.mkv", MapPath(nil, "/x/y.mkv"))
}

func TestEpisodePath(t *testing.T) {
	assert.Equal(t, "/tv/Show/Season 01/e.mkv", episodePath("/tv/Show", `Season 01\e.mkv`))
	assert.Equal(t, "/tv/Show/e.mkv", episodePath("/tv/Show/", "e.mkv"))
}
