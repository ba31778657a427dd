package modid

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNxmURL_Expired(t *testing.T) {
	raw := "nxm://SkyrimSE/mods/8850/files/27772?key=XnbXtdAspojLzUAn7x-Grw&expires=1583065790&user_id=1234321"
	now := time.Unix(1700000000, 0)

	_, err := ParseNxmURL(raw, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExpired))
}

func TestParseNxmURL_GameAliasNormalisation(t *testing.T) {
	now := time.Unix(1000, 0)

	cases := []struct {
		host string
		want string
	}{
		{"SkyrimSE", "skyrimspecialedition"},
		{"falloutnv", "newvegas"},
		{"Morrowind", "morrowind"},
	}

	for _, tc := range cases {
		raw := "nxm://" + tc.host + "/mods/1/files/2?key=k&expires=9999999999&user_id=1"

		got, err := ParseNxmURL(raw, now)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.GameDomain)
	}
}

func TestParseNxmURL_Malformed(t *testing.T) {
	now := time.Unix(1000, 0)

	cases := []string{
		"http://skyrim/mods/1/files/2?key=k&expires=9999999999&user_id=1",
		"nxm://skyrim/mods/1/files/2",
		"nxm://skyrim/mods/abc/files/2?key=k&expires=9999999999&user_id=1",
	}

	for _, raw := range cases {
		_, err := ParseNxmURL(raw, now)
		require.Error(t, err)
	}
}

func TestNxmURL_RoundTrip(t *testing.T) {
	now := time.Unix(1000, 0)
	raw := "nxm://morrowind/mods/39350/files/82041?key=abc123&expires=9999999999&user_id=42"

	parsed, err := ParseNxmURL(raw, now)
	require.NoError(t, err)

	reparsed, err := ParseNxmURL(parsed.Serialize(), now)
	require.NoError(t, err)
	assert.Equal(t, parsed, reparsed)
}
