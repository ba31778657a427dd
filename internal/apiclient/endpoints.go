package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/dandels/dmodman-core/internal/metaindex"
	"github.com/dandels/dmodman-core/internal/modid"
)

// DownloadLink is one entry of the download_link.json response (§6).
type DownloadLink struct {
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	URI       string `json:"URI"`
}

// UpdatedEntry is one entry of the updated.json response, used by the
// 28-day cadence shortcut (§4.3, §6).
type UpdatedEntry struct {
	ModID             uint32 `json:"mod_id"`
	LatestFileUpdate  int64  `json:"latest_file_update"`
	LatestModActivity int64  `json:"latest_mod_activity"`
}

type fileListWire struct {
	Files []struct {
		FileID            uint64 `json:"file_id"`
		Name              string `json:"name"`
		Version           string `json:"version"`
		CategoryID        uint32 `json:"category_id"`
		UploadedTimestamp int64  `json:"uploaded_timestamp"`
	} `json:"files"`
	FileUpdates []struct {
		OldFileID         uint64 `json:"old_file_id"`
		NewFileID         uint64 `json:"new_file_id"`
		OldFileName       string `json:"old_file_name"`
		NewFileName       string `json:"new_file_name"`
		UploadedTimestamp int64  `json:"uploaded_timestamp"`
	} `json:"file_updates"`
}

type modInfoWire struct {
	ModID   uint32 `json:"mod_id"`
	Name    string `json:"name"`
	Summary string `json:"summary"`
	Version string `json:"version"`
	Updated int64  `json:"updated_timestamp"`
}

type md5SearchWire struct {
	Mod         modInfoWire `json:"mod"`
	FileDetails struct {
		FileID uint64 `json:"file_id"`
		ModID  uint32 `json:"mod_id"`
		Md5    string `json:"md5"`
	} `json:"file_details"`
}

// decodeJSON unmarshals into v, wrapping any failure as ErrSchemaMismatch
// per §7's RemoteSchemaMismatch taxonomy entry.
func decodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
	}

	return nil
}

// DownloadLinks fetches the CDN locations for one file (§4.2 step 3). query
// is the raw "key=...&expires=...&user_id=..." string forwarded verbatim
// from the mod-protocol URL (§6).
func (c *Client) DownloadLinks(ctx context.Context, id modid.FileIdentity, query string) ([]DownloadLink, error) {
	path := fmt.Sprintf("/games/%s/mods/%d/files/%d/download_link.json", id.GameDomain, id.ModID, id.FileID)
	if query != "" {
		path += "?" + query
	}

	body, err := c.getBody(ctx, path)
	if err != nil {
		return nil, err
	}

	var links []DownloadLink
	if err := decodeJSON(body, &links); err != nil {
		return nil, err
	}

	return links, nil
}

// FileList fetches the files.json listing for a mod (§4.3, §6).
func (c *Client) FileList(ctx context.Context, game string, modID uint32) (*metaindex.FileList, error) {
	path := fmt.Sprintf("/games/%s/mods/%d/files.json", game, modID)

	body, err := c.getBody(ctx, path)
	if err != nil {
		return nil, err
	}

	var wire fileListWire
	if err := decodeJSON(body, &wire); err != nil {
		return nil, err
	}

	fl := &metaindex.FileList{}

	// The API doesn't guarantee either slice arrives in timestamp order;
	// insert through the sorted-insertion helpers rather than trusting wire
	// order, since the update checker's backward-scan window requires both
	// non-decreasing in UploadedTimestamp.
	for _, f := range wire.Files {
		fl.InsertFile(metaindex.FileDetails{
			FileID:            f.FileID,
			Name:              f.Name,
			Version:           f.Version,
			CategoryID:        f.CategoryID,
			UploadedTimestamp: f.UploadedTimestamp,
		})
	}

	for _, u := range wire.FileUpdates {
		fl.InsertUpdate(metaindex.FileUpdate{
			OldFileID:         u.OldFileID,
			NewFileID:         u.NewFileID,
			OldName:           u.OldFileName,
			NewName:           u.NewFileName,
			UploadedTimestamp: u.UploadedTimestamp,
		})
	}

	return fl, nil
}

// ModInfo fetches per-mod metadata (§6).
func (c *Client) ModInfo(ctx context.Context, game string, modID uint32) (*metaindex.ModInfo, error) {
	path := fmt.Sprintf("/games/%s/mods/%d.json", game, modID)

	body, err := c.getBody(ctx, path)
	if err != nil {
		return nil, err
	}

	var wire modInfoWire
	if err := decodeJSON(body, &wire); err != nil {
		return nil, err
	}

	return &metaindex.ModInfo{
		ModID:       wire.ModID,
		Name:        wire.Name,
		Summary:     wire.Summary,
		Version:     wire.Version,
		UpdatedTime: wire.Updated,
	}, nil
}

// Md5Search looks up files by content hash (§6). Returns one result per
// mod/file combination sharing that hash.
func (c *Client) Md5Search(ctx context.Context, game, md5 string) ([]metaindex.Md5Result, error) {
	path := fmt.Sprintf("/games/%s/mods/md5_search/%s.json", game, md5)

	body, err := c.getBody(ctx, path)
	if err != nil {
		return nil, err
	}

	var wire []md5SearchWire
	if err := decodeJSON(body, &wire); err != nil {
		return nil, err
	}

	results := make([]metaindex.Md5Result, 0, len(wire))

	for _, w := range wire {
		results = append(results, metaindex.Md5Result{
			FileIdentity: modid.FileIdentity{GameDomain: game, ModID: w.FileDetails.ModID, FileID: w.FileDetails.FileID},
			Md5:          w.FileDetails.Md5,
		})
	}

	return results, nil
}

// Updated fetches the consolidated "recent activity" listing for a game,
// used by the 28-day cadence shortcut (§4.3).
func (c *Client) Updated(ctx context.Context, game string, period string) ([]UpdatedEntry, error) {
	path := fmt.Sprintf("/games/%s/mods/updated.json?period=%s", game, url.QueryEscape(period))

	body, err := c.getBody(ctx, path)
	if err != nil {
		return nil, err
	}

	var entries []UpdatedEntry
	if err := decodeJSON(body, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

// getBody performs a GET and returns the fully-read response body.
func (c *Client) getBody(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: reading response body: %w", err)
	}

	return data, nil
}
