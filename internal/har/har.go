// Package har reads HTTP Archive captures of the third-party storefront.
// A capture is the only ingestion source: the pipeline never talks to the
// storefront directly.
package har

import (
	"encoding/json"
	"fmt"
)

// Entry is one recorded request/response pair. Optional bodies are empty
// strings when the capture does not carry them; downstream filters skip
// entries lacking the data they need.
type Entry struct {
	RequestURL   string
	RequestBody  string
	ResponseBody string
}

// FormatError reports a capture document that cannot be parsed at all.
// It aborts the whole ingestion call.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid capture document: %v", e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

type document struct {
	Log struct {
		Entries []struct {
			Request struct {
				URL      string `json:"url"`
				PostData *struct {
					Text string `json:"text"`
				} `json:"postData"`
			} `json:"request"`
			Response struct {
				Content *struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"response"`
		} `json:"entries"`
	} `json:"log"`
}

// Parse decodes raw capture bytes into the ordered entry list.
func Parse(data []byte) ([]Entry, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Err: err}
	}

	entries := make([]Entry, 0, len(doc.Log.Entries))
	for _, e := range doc.Log.Entries {
		entry := Entry{RequestURL: e.Request.URL}
		if e.Request.PostData != nil {
			entry.RequestBody = e.Request.PostData.Text
		}
		if e.Response.Content != nil {
			entry.ResponseBody = e.Response.Content.Text
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
