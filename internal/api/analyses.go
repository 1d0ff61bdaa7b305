package api

import (
	"fmt"
	"net/url"
)

// --- Analysis Methods ---

func (c *Client) ListAnalyses() ([]Analysis, error) {
	data, err := c.get("/api/v1/analyses")
	if err != nil {
		return nil, err
	}
	return decodeList[Analysis](data)
}

func (c *Client) GetAnalysis(id string) (*Analysis, error) {
	data, err := c.get(fmt.Sprintf("/api/v1/analyses/%s", url.PathEscape(id)))
	if err != nil {
		return nil, err
	}
	return decodeOne[Analysis](data)
}

func (c *Client) CreateAnalysis(input CreateAnalysisInput) (*Analysis, error) {
	data, err := c.post("/api/v1/analyses", input)
	if err != nil {
		return nil, err
	}
	return decodeOne[Analysis](data)
}

func (c *Client) UpdateAnalysis(id string, input UpdateAnalysisInput) (*Analysis, error) {
	if input.Bindings == nil {
		input.Bindings = map[string]string{}
	}
	data, err := c.patch(fmt.Sprintf("/api/v1/analyses/%s", url.PathEscape(id)), input)
	if err != nil {
		return nil, err
	}
	return decodeOne[Analysis](data)
}

func (c *Client) DeleteAnalysis(id string) error {
	_, err := c.del(fmt.Sprintf("/api/v1/analyses/%s", url.PathEscape(id)))
	return err
}

// EvaluateAnalysis asks the backend to recompute the analysis outputs.
func (c *Client) EvaluateAnalysis(id string) (*Analysis, error) {
	data, err := c.post(fmt.Sprintf("/api/v1/analyses/%s/evaluate", url.PathEscape(id)), nil)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return decodeOne[Analysis](data)
}
