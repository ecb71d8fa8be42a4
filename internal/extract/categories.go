// Package extract scans capture entries for the storefront endpoints that
// carry catalog data and turns their nested payloads into flat records.
// Extraction is maximally tolerant: a single malformed entry is skipped
// and counted, never fatal.
package extract

import (
	"encoding/json"
	"net/url"
	"strings"

	"samstore/ingest/internal/domain"
	"samstore/ingest/internal/har"

	log "github.com/sirupsen/logrus"
)

const (
	homePortalPath     = "/home/portal/v3/get"
	queryChildrenPath  = "/goods-portal/grouping/queryChildren"
	navModuleType      = "kingkong"
	firstCategoryParam = "firstCategoryId"
)

// CategoryResult is the deduplicated flat category set discovered in one
// capture, plus the count of entries dropped because their bodies failed
// to parse.
type CategoryResult struct {
	Categories []domain.Category
	Skipped    int
}

// categorySet keeps insertion order with an explicit seen guard: the
// first record for an id wins, later occurrences are discarded.
type categorySet struct {
	ordered []domain.Category
	seen    map[string]struct{}
}

func newCategorySet() *categorySet {
	return &categorySet{seen: make(map[string]struct{})}
}

func (s *categorySet) add(c domain.Category) {
	if _, ok := s.seen[c.ID]; ok {
		return
	}
	s.seen[c.ID] = struct{}{}
	s.ordered = append(s.ordered, c)
}

// FlattenCategories converts a nested subtree into flat records by
// depth-first pre-order traversal. Each node gets the supplied parent id
// and sort order = offset + its index among siblings; children recurse
// with the node as parent and a zero offset, so sort order is stable
// within a sibling list only. Nodes without an id are skipped: they can
// neither be linked nor deduplicated.
func FlattenCategories(nodes []domain.CategoryNode, parentID *string, sortOffset int) []domain.Category {
	var results []domain.Category
	for i, node := range nodes {
		if node.GroupingID == "" {
			log.Warnf("Skipping category node without id (title=%q)", node.Title)
			continue
		}
		results = append(results, domain.Category{
			ID:        node.GroupingID,
			ParentID:  parentID,
			Name:      node.Title,
			Level:     node.Level,
			ImageURL:  optionalString(node.Image),
			SortOrder: sortOffset + i,
		})
		if len(node.Children) > 0 {
			pid := node.GroupingID
			results = append(results, FlattenCategories(node.Children, &pid, 0)...)
		}
	}
	return results
}

// home portal response: moduleList carries a module per home-screen
// block; the navigation module's content is itself a JSON string.
type homeResponse struct {
	Data struct {
		ModuleList []struct {
			ModuleType    string `json:"moduleType"`
			ModuleContent string `json:"moduleContent"`
		} `json:"moduleList"`
	} `json:"data"`
}

type navModuleContent struct {
	Data []struct {
		Title    string `json:"title"`
		PicURL   string `json:"picUrl"`
		JumpLink string `json:"jumpLink"`
	} `json:"data"`
}

type childrenRequest struct {
	GroupingID string `json:"groupingId"`
}

type childrenResponse struct {
	Data []domain.CategoryNode `json:"data"`
}

// Categories assembles the complete discoverable category set from a
// capture: level-1 categories from the home portal entry first, then
// every queryChildren subtree in capture order, merged first-wins by id.
// A capture with no category traffic yields an empty set, not an error.
func Categories(entries []har.Entry) CategoryResult {
	set := newCategorySet()
	skipped := 0

	for _, entry := range entries {
		if !strings.Contains(entry.RequestURL, homePortalPath) || entry.ResponseBody == "" {
			continue
		}
		if !collectTopLevel(entry, set) {
			skipped++
		}
		break // a capture holds a single home portal snapshot
	}

	for _, entry := range entries {
		if !strings.Contains(entry.RequestURL, queryChildrenPath) {
			continue
		}
		if entry.RequestBody == "" || entry.ResponseBody == "" {
			log.Debugf("Skipping queryChildren entry without body: %s", entry.RequestURL)
			continue
		}

		var req childrenRequest
		if err := json.Unmarshal([]byte(entry.RequestBody), &req); err != nil {
			log.Warnf("Skipping queryChildren entry, bad request body: %v", err)
			skipped++
			continue
		}
		var resp childrenResponse
		if err := json.Unmarshal([]byte(entry.ResponseBody), &resp); err != nil {
			log.Warnf("Skipping queryChildren entry for parent %s, bad response body: %v", req.GroupingID, err)
			skipped++
			continue
		}

		var parentID *string
		if req.GroupingID != "" {
			parentID = &req.GroupingID
		}
		for _, c := range FlattenCategories(resp.Data, parentID, 0) {
			set.add(c)
		}
	}

	log.Debugf("Discovered %d categories (%d entries skipped)", len(set.ordered), skipped)
	return CategoryResult{Categories: set.ordered, Skipped: skipped}
}

// collectTopLevel extracts the level-1 categories from the home portal
// entry. Reports false when the entry's JSON could not be parsed.
func collectTopLevel(entry har.Entry, set *categorySet) bool {
	var home homeResponse
	if err := json.Unmarshal([]byte(entry.ResponseBody), &home); err != nil {
		log.Warnf("Skipping home portal entry, bad response body: %v", err)
		return false
	}

	for _, module := range home.Data.ModuleList {
		if module.ModuleType != navModuleType {
			continue
		}
		var content navModuleContent
		if err := json.Unmarshal([]byte(module.ModuleContent), &content); err != nil {
			log.Warnf("Skipping navigation module, bad content: %v", err)
			return false
		}
		for i, cat := range content.Data {
			id := firstQueryParam(cat.JumpLink, firstCategoryParam)
			if id == "" {
				// Without a stable id the category cannot anchor
				// descendants; tolerated data-quality gap.
				log.Debugf("Skipping top-level category %q without %s", cat.Title, firstCategoryParam)
				continue
			}
			set.add(domain.Category{
				ID:        id,
				ParentID:  nil,
				Name:      cat.Title,
				Level:     1,
				ImageURL:  optionalString(cat.PicURL),
				SortOrder: i,
			})
		}
		return true
	}
	return true
}

// firstQueryParam returns the first value of key in the query string of
// link, or "" when the link has no query or the key is absent.
func firstQueryParam(link, key string) string {
	idx := strings.Index(link, "?")
	if idx < 0 {
		return ""
	}
	values, err := url.ParseQuery(link[idx+1:])
	if err != nil {
		return ""
	}
	return values.Get(key)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
