package capture

import (
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/http"
	"github.com/abdul-hamid-achik/hitchain/packages/jsonutil"
	"github.com/tidwall/gjson"
)

type Location int

const (
	Body Location = iota
	Header
	Status
)

func (l Location) String() string {
	switch l {
	case Header:
		return "header"
	case Status:
		return "status"
	default:
		return "body"
	}
}

// Capture stores the value found at Source under Key.
type Capture struct {
	Key    string
	Source string
	In     Location
	// Optional captures that find nothing are skipped instead of failing.
	Optional bool
}

func (c Capture) String() string {
	switch c.In {
	case Status:
		return c.Key + " <- status"
	case Header:
		return c.Key + " <- header " + c.Source
	default:
		if c.Source == "" {
			return c.Key + " <- body"
		}
		return c.Key + " <- body." + c.Source
	}
}

type Extractor struct {
	response *http.Response
	bodyJSON gjson.Result
	isJSON   bool
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{
		response: resp,
	}
	if resp.IsJSON() {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
		e.isJSON = true
	}
	return e
}

func (e *Extractor) Extract(c Capture) (any, bool) {
	switch c.In {
	case Body:
		return e.extractFromBody(c.Source)
	case Header:
		return e.extractFromHeader(c.Source)
	case Status:
		return e.response.StatusCode, true
	default:
		return nil, false
	}
}

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.isJSON {
		if path == "" {
			return e.response.BodyString(), true
		}
		return nil, false
	}

	if path == "" {
		return jsonutil.FromResult(e.bodyJSON), true
	}

	path = strings.TrimPrefix(bracketIndex.ReplaceAllString(path, ".$1"), ".")
	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return jsonutil.FromResult(result), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	value := e.response.Header(name)
	if value == "" {
		return nil, false
	}
	return value, true
}

// ExtractAll returns the values found and the captures that found nothing,
// in declaration order.
func ExtractAll(resp *http.Response, captures []Capture) (map[string]any, []Capture) {
	extractor := NewExtractor(resp)
	results := make(map[string]any)
	var missing []Capture

	for _, c := range captures {
		if value, ok := extractor.Extract(c); ok {
			results[c.Key] = value
		} else if !c.Optional {
			missing = append(missing, c)
		}
	}

	return results, missing
}
