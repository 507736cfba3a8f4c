// Package diagram parses the product's diagram markup into typed graph
// entities. All diagram inputs for a snapshot flow through here; the diff
// core never sees raw markup.
package diagram

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/iriusrisk/iriusrisk-cli-sub001/model"
	modelerrors "github.com/iriusrisk/iriusrisk-cli-sub001/pkg/errors"
)

// ParseResult holds the architecture entities extracted from one diagram.
type ParseResult struct {
	Components []model.Component
	Dataflows  []model.Dataflow
	TrustZones []model.TrustZone
}

// mxGraphModel mirrors the raw markup: a flat cell list where vertices are
// components or trust zones and edges are dataflows. Nesting is expressed
// through the parent attribute only.
type mxGraphModel struct {
	XMLName xml.Name `xml:"mxGraphModel"`
	Root    struct {
		Cells []mxCell `xml:"mxCell"`
	} `xml:"root"`
}

type mxCell struct {
	ID     string `xml:"id,attr"`
	Value  string `xml:"value,attr"`
	Style  string `xml:"style,attr"`
	Parent string `xml:"parent,attr"`
	Vertex string `xml:"vertex,attr"`
	Edge   string `xml:"edge,attr"`
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
	Tags   string `xml:"tags,attr"`
}

const trustZoneStyle = "trustZone"

// Parser converts diagram markup into model entities.
type Parser struct{}

// NewParser creates a diagram parser.
func NewParser() *Parser { return &Parser{} }

// Parse decodes one diagram document. Malformed markup, a cell without an
// id, or an edge without both endpoints is a parse error; referential
// integrity of parent/source/target ids is not checked here.
func (p *Parser) Parse(markup []byte) (*ParseResult, error) {
	if len(markup) == 0 {
		return nil, modelerrors.NewParseError("empty diagram markup", nil)
	}

	var doc mxGraphModel
	if err := xml.Unmarshal(markup, &doc); err != nil {
		return nil, modelerrors.NewParseError("failed to decode diagram markup", err)
	}

	result := &ParseResult{
		Components: make([]model.Component, 0),
		Dataflows:  make([]model.Dataflow, 0),
		TrustZones: make([]model.TrustZone, 0),
	}

	for _, cell := range doc.Root.Cells {
		switch {
		case cell.Edge == "1":
			flow, err := p.parseDataflow(cell)
			if err != nil {
				return nil, err
			}
			result.Dataflows = append(result.Dataflows, flow)
		case cell.Vertex == "1":
			if cell.ID == "" {
				return nil, modelerrors.NewParseError("vertex cell without id", nil)
			}
			style := parseStyle(cell.Style)
			if style.class == trustZoneStyle {
				result.TrustZones = append(result.TrustZones, model.TrustZone{
					ID:          cell.ID,
					Name:        cell.Value,
					TrustRating: style.intParam("trustRating"),
				})
				continue
			}
			result.Components = append(result.Components, model.Component{
				ID:     cell.ID,
				Name:   cell.Value,
				Style:  style.class,
				Parent: cell.Parent,
				Tags:   splitTags(cell.Tags),
			})
		default:
			// Layer/root cells carry no model content.
		}
	}

	return result, nil
}

func (p *Parser) parseDataflow(cell mxCell) (model.Dataflow, error) {
	if cell.ID == "" {
		return model.Dataflow{}, modelerrors.NewParseError("edge cell without id", nil)
	}
	if cell.Source == "" || cell.Target == "" {
		return model.Dataflow{}, modelerrors.NewParseError(
			fmt.Sprintf("edge %q missing source or target", cell.ID), nil)
	}
	style := parseStyle(cell.Style)
	return model.Dataflow{
		ID:            cell.ID,
		Name:          cell.Value,
		Source:        cell.Source,
		Destination:   cell.Target,
		Bidirectional: style.boolParam("bidirectional"),
		Tags:          splitTags(cell.Tags),
	}, nil
}

// cellStyle is a decoded style string: a leading class name followed by
// semicolon-separated key=value parameters.
type cellStyle struct {
	class  string
	params map[string]string
}

func parseStyle(raw string) cellStyle {
	style := cellStyle{params: make(map[string]string)}
	for i, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			if i == 0 {
				style.class = part
			}
			continue
		}
		style.params[key] = value
	}
	return style
}

func (s cellStyle) intParam(key string) int {
	n, _ := strconv.Atoi(s.params[key])
	return n
}

func (s cellStyle) boolParam(key string) bool {
	return s.params[key] == "1" || s.params[key] == "true"
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
