// Package inspect implements streaming XML discovery for operators: it
// inventories the element paths found under a repeated record tag, with
// per-path counts, example texts, and attribute value frequencies. It is the
// tool of choice when a new schema version lands and the flattening
// projection needs to be checked against reality.
//
// Only fully-closed records are counted, so the tool is tolerant to
// truncated inputs (e.g. the first N bytes of a large document).
package inspect

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

const (
	maxExampleTexts     = 3
	maxAttrValueSamples = 5
)

// PathAgg aggregates statistics for one element path relative to the record tag.
type PathAgg struct {
	TotalCount   int                       `json:"total_count"`
	RecordsWith  int                       `json:"records_with"`
	MaxPerRecord int                       `json:"max_per_record"`
	ExampleTexts []string                  `json:"example_texts,omitempty"`
	AttrExamples map[string]map[string]int `json:"attr_examples,omitempty"` // attr -> value -> count
}

// Report is the discovery result for one document.
type Report struct {
	RecordTag    string             `json:"record_tag"`
	TotalRecords int                `json:"total_records"`
	Paths        map[string]PathAgg `json:"paths"`
}

// SortedPaths returns the report's paths in lexical order.
func (r Report) SortedPaths() []string {
	out := make([]string, 0, len(r.Paths))
	for p := range r.Paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Discover scans r and inventories all element paths under the elements
// whose local name is recordTag. Truncated tails do not affect counts.
func Discover(r io.Reader, recordTag string) (Report, error) {
	if strings.TrimSpace(recordTag) == "" {
		return Report{}, fmt.Errorf("inspect: record tag is required")
	}
	dec := xml.NewDecoder(r)
	dec.Strict = false

	rep := Report{RecordTag: recordTag, Paths: map[string]PathAgg{}}

	var stack []frame
	inRecord := false
	recordDepth := 0

	// Per-record counts, merged into the report only when the record closes.
	var perRecord map[string]int
	var perRecordAttrs map[string][]xml.Attr
	var perRecordTexts map[string]string

	for {
		tok, err := dec.Token()
		if err == io.EOF || (err != nil && strings.Contains(err.Error(), "unexpected EOF")) {
			break
		}
		if err != nil {
			return rep, fmt.Errorf("inspect: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !inRecord && t.Name.Local == recordTag {
				inRecord = true
				recordDepth = len(stack)
				perRecord = map[string]int{}
				perRecordAttrs = map[string][]xml.Attr{}
				perRecordTexts = map[string]string{}
				stack = append(stack, frame{name: t.Name.Local})
				continue
			}
			stack = append(stack, frame{name: t.Name.Local, attrs: t.Attr})
			if inRecord {
				path := joinPath(stack[recordDepth+1:])
				perRecord[path]++
				perRecordAttrs[path] = append(perRecordAttrs[path], t.Attr...)
			}
		case xml.CharData:
			if len(stack) > 0 {
				top := &stack[len(stack)-1]
				top.text = append(top.text, t...)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !inRecord {
				continue
			}
			if len(stack) == recordDepth {
				// Record closed: merge its aggregates.
				inRecord = false
				rep.TotalRecords++
				mergeRecord(&rep, perRecord, perRecordAttrs, perRecordTexts)
				continue
			}
			path := joinPath(stack[recordDepth+1:]) + "/" + top.name
			path = strings.TrimPrefix(path, "/")
			if text := strings.TrimSpace(string(top.text)); text != "" {
				if _, ok := perRecordTexts[path]; !ok {
					perRecordTexts[path] = text
				}
			}
		}
	}
	return rep, nil
}

// frame is one open element on the decode stack.
type frame struct {
	name  string
	attrs []xml.Attr
	text  []byte
}

// joinPath renders the open-element names as a slash-separated path.
func joinPath(frames []frame) string {
	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = f.name
	}
	return strings.Join(parts, "/")
}

func mergeRecord(rep *Report, counts map[string]int, attrs map[string][]xml.Attr, texts map[string]string) {
	for path, n := range counts {
		agg := rep.Paths[path]
		agg.TotalCount += n
		agg.RecordsWith++
		if n > agg.MaxPerRecord {
			agg.MaxPerRecord = n
		}
		if text, ok := texts[path]; ok && len(agg.ExampleTexts) < maxExampleTexts {
			agg.ExampleTexts = append(agg.ExampleTexts, text)
		}
		for _, a := range attrs[path] {
			if agg.AttrExamples == nil {
				agg.AttrExamples = map[string]map[string]int{}
			}
			vals := agg.AttrExamples[a.Name.Local]
			if vals == nil {
				vals = map[string]int{}
				agg.AttrExamples[a.Name.Local] = vals
			}
			if len(vals) < maxAttrValueSamples || vals[a.Value] > 0 {
				vals[a.Value]++
			}
		}
		rep.Paths[path] = agg
	}
}
