package mediaserver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vmunix/prefetcharr/internal/media"
)

func TestFilter_Match(t *testing.T) {
	alice := media.User{ID: "u-1", Name: "alice"}

	tests := []struct {
		name    string
		filter  Filter
		user    media.User
		library string
		want    bool
	}{
		{"empty filter allows all", Filter{}, alice, "", true},
		{"user by id", Filter{Users: []string{"u-1"}}, alice, "TV", true},
		{"user by name", Filter{Users: []string{"alice"}}, alice, "TV", true},
		{"user not listed", Filter{Users: []string{"bob"}}, alice, "TV", false},
		{"library listed", Filter{Libraries: []string{"TV"}}, alice, "TV", true},
		{"library not listed", Filter{Libraries: []string{"Anime"}}, alice, "TV", false},
		{"unknown library rejected", Filter{Libraries: []string{"TV"}}, alice, "", false},
		{"both must pass", Filter{Users: []string{"alice"}, Libraries: []string{"Anime"}}, alice, "TV", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(tt.user, tt.library))
		})
	}
}

func TestSession_Position(t *testing.T) {
	s := Session{Season: Int(1), Episode: Int(1)}
	pos, ok := s.Position()
	assert.True(t, ok)
	assert.Equal(t, media.EpisodeRef{Season: 1, Episode: 1}, pos)
	assert.True(t, s.IsPilot())

	s = Session{Season: Int(2)}
	_, ok = s.Position()
	assert.False(t, ok)
	assert.False(t, s.IsPilot())

	s = Session{Season: Int(3), Episode: Int(4), Pilot: true}
	assert.True(t, s.IsPilot(), "explicit flag wins")
}

func TestClassifyStatus(t *testing.T) {
	assert.NoError(t, ClassifyStatus(200, "200 OK"))
	assert.True(t, errors.Is(ClassifyStatus(401, "401 Unauthorized"), ErrAuth))
	assert.True(t, errors.Is(ClassifyStatus(403, "403 Forbidden"), ErrAuth))
	assert.True(t, errors.Is(ClassifyStatus(503, "503 Service Unavailable"), ErrUnreachable))

	err := ClassifyStatus(404, "404 Not Found")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrAuth))
	assert.False(t, errors.Is(err, ErrUnreachable))
}
