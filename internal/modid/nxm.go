package modid

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrExpired is returned when a mod-protocol URL's expiry timestamp has
// already passed at parse time.
var ErrExpired = errors.New("modid: nxm url has expired")

// ErrMalformed is returned for any mod-protocol URL that does not match the
// expected nxm://<game>/mods/<mod_id>/files/<file_id>?key=&expires=&user_id=
// shape.
var ErrMalformed = errors.New("modid: malformed nxm url")

// NxmURL is a parsed mod-protocol URL, the only handoff path from the
// website into the tool (GLOSSARY).
type NxmURL struct {
	FileIdentity
	Key     string
	Expires int64
	UserID  uint32
}

// gameAliases maps the two known legacy nxm-link host names to their
// canonical API game domains (S2 in spec.md §8). Every other host is
// lower-cased verbatim.
var gameAliases = map[string]string{
	"skyrimse":  "skyrimspecialedition",
	"falloutnv": "newvegas",
}

// NormalizeGameDomain lower-cases a game domain and remaps the two known
// legacy nxm-link aliases.
func NormalizeGameDomain(host string) string {
	lower := strings.ToLower(host)
	if canonical, ok := gameAliases[lower]; ok {
		return canonical
	}

	return lower
}

// ParseNxmURL parses a nxm://<game>/mods/<mod_id>/files/<file_id>?key=&expires=&user_id=
// URL and validates it has not expired. now is injected so callers can test
// expiry deterministically without depending on the wall clock.
func ParseNxmURL(raw string, now time.Time) (NxmURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return NxmURL{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if u.Scheme != "nxm" {
		return NxmURL{}, fmt.Errorf("%w: scheme %q, want nxm", ErrMalformed, u.Scheme)
	}

	if u.Host == "" {
		return NxmURL{}, fmt.Errorf("%w: missing game domain", ErrMalformed)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) != 4 || segments[0] != "mods" || segments[2] != "files" {
		return NxmURL{}, fmt.Errorf("%w: path %q", ErrMalformed, u.Path)
	}

	modID, err := strconv.ParseUint(segments[1], 10, 32)
	if err != nil {
		return NxmURL{}, fmt.Errorf("%w: mod_id %q: %w", ErrMalformed, segments[1], err)
	}

	fileID, err := strconv.ParseUint(segments[3], 10, 64)
	if err != nil {
		return NxmURL{}, fmt.Errorf("%w: file_id %q: %w", ErrMalformed, segments[3], err)
	}

	q := u.Query()

	key := q.Get("key")
	if key == "" {
		return NxmURL{}, fmt.Errorf("%w: missing key", ErrMalformed)
	}

	expiresRaw := q.Get("expires")

	expires, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil {
		return NxmURL{}, fmt.Errorf("%w: expires %q: %w", ErrMalformed, expiresRaw, err)
	}

	userIDRaw := q.Get("user_id")

	userID, err := strconv.ParseUint(userIDRaw, 10, 32)
	if err != nil {
		return NxmURL{}, fmt.Errorf("%w: user_id %q: %w", ErrMalformed, userIDRaw, err)
	}

	parsed := NxmURL{
		FileIdentity: FileIdentity{
			GameDomain: NormalizeGameDomain(u.Host),
			ModID:      uint32(modID),
			FileID:     fileID,
		},
		Key:     key,
		Expires: expires,
		UserID:  uint32(userID),
	}

	if parsed.Expires <= now.Unix() {
		return NxmURL{}, ErrExpired
	}

	return parsed, nil
}

// Query returns the key/expires/user_id query string, as forwarded verbatim
// to the download-link API endpoint (spec.md §6).
func (n NxmURL) Query() string {
	v := url.Values{}
	v.Set("key", n.Key)
	v.Set("expires", strconv.FormatInt(n.Expires, 10))
	v.Set("user_id", strconv.FormatUint(uint64(n.UserID), 10))

	return v.Encode()
}

// Serialize renders the NxmURL back into its nxm:// wire form. Used for the
// round-trip property in spec.md §8 (S-5).
func (n NxmURL) Serialize() string {
	return fmt.Sprintf("nxm://%s/mods/%d/files/%d?%s", n.GameDomain, n.ModID, n.FileID, n.Query())
}
