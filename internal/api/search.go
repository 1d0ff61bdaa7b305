package api

import (
	"fmt"
	"net/url"
	"strconv"
)

// DefaultSuggestionLimit bounds per-keystroke entity searches.
const DefaultSuggestionLimit = 10

// SearchEntities returns entities whose code or name matches the prefix.
func (c *Client) SearchEntities(query string, limit int) ([]EntitySuggestion, error) {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	params := QueryParams{
		"q":     query,
		"limit": strconv.Itoa(limit),
	}
	data, err := c.get(buildQuery("/api/v1/search/entities", params))
	if err != nil {
		return nil, err
	}
	return decodeList[EntitySuggestion](data)
}

// SearchProperties returns the properties of an entity matching the prefix.
func (c *Client) SearchProperties(entityCode, query string) ([]PropertySuggestion, error) {
	path := fmt.Sprintf("/api/v1/search/entities/%s/properties", url.PathEscape(entityCode))
	data, err := c.get(buildQuery(path, QueryParams{"q": query}))
	if err != nil {
		return nil, err
	}
	return decodeList[PropertySuggestion](data)
}
