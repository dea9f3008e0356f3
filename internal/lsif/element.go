// Package lsif decodes newline-delimited graph element dumps: one vertex or
// edge per line, in the shape LSIF-style indexers emit.
package lsif

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Element types.
const (
	VertexElement = "vertex"
	EdgeElement   = "edge"
)

// Vertex labels.
const (
	LabelDocument         = "document"
	LabelRange            = "range"
	LabelResultSet        = "resultSet"
	LabelMoniker          = "moniker"
	LabelDefinitionResult = "definitionResult"
	LabelReferenceResult  = "referenceResult"
	LabelHoverResult      = "hoverResult"
	LabelMetaData         = "metaData"
)

// Edge labels.
const (
	EdgeContains   = "contains"
	EdgeNext       = "next"
	EdgeMoniker    = "moniker"
	EdgeDefinition = "textDocument/definition"
	EdgeReferences = "textDocument/references"
	EdgeHover      = "textDocument/hover"
	EdgeItem       = "item"
)

// Properties an item edge may carry.
const (
	PropertyDefinitions     = "definitions"
	PropertyReferences      = "references"
	PropertyDeclarations    = "declarations"
	PropertyImplementations = "implementations"
)

var vertexLabels = map[string]bool{
	LabelDocument:         true,
	LabelRange:            true,
	LabelResultSet:        true,
	LabelMoniker:          true,
	LabelDefinitionResult: true,
	LabelReferenceResult:  true,
	LabelHoverResult:      true,
	LabelMetaData:         true,
}

var edgeLabels = map[string]bool{
	EdgeContains:   true,
	EdgeNext:       true,
	EdgeMoniker:    true,
	EdgeDefinition: true,
	EdgeReferences: true,
	EdgeHover:      true,
	EdgeItem:       true,
}

// MalformedElementError reports a record that could not be decoded or failed
// validation. Element is the 1-based ordinal of the record within the stream.
//
// The underlying cause can be accessed via errors.Unwrap.
type MalformedElementError struct {
	Element int
	Err     error
}

func (e *MalformedElementError) Error() string {
	return fmt.Sprintf("malformed element %d: %v", e.Element, e.Err)
}

func (e *MalformedElementError) Unwrap() error { return e.Err }

// Position is a zero-based line/character offset within a document.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Document describes one source file of the indexed project.
type Document struct {
	URI        string
	LanguageID string
}

// Range is a span between two positions, owned by exactly one document via a
// contains edge.
type Range struct {
	Start Position
	End   Position
}

// Moniker is a stable, index-independent symbol name.
type Moniker struct {
	Scheme     string
	Identifier string
	Kind       string
}

// Hover carries the flattened markup content of a hoverResult vertex.
type Hover struct {
	Contents string
}

// MetaData is the dump header: format version, project root, and the tool
// that produced the dump.
type MetaData struct {
	Version     string
	ProjectRoot string
	ToolName    string
	ToolVersion string
}

// Edge connects OutV to one or more InVs under the element's label.
// Property is set only on item edges.
type Edge struct {
	OutV     string
	InVs     []string
	Property string
}

// Element is one decoded dump record. For a known (Type, Label) pair exactly
// one payload field is set, except for the payload-free labels (resultSet,
// definitionResult, referenceResult). Unknown pairs carry no payload and
// report Known() == false; callers skip them.
type Element struct {
	ID    string
	Type  string
	Label string

	Document *Document
	Range    *Range
	Moniker  *Moniker
	Hover    *Hover
	Meta     *MetaData
	Edge     *Edge
}

// Known reports whether the (Type, Label) pair is part of the dump vocabulary.
func (e *Element) Known() bool {
	switch e.Type {
	case VertexElement:
		return vertexLabels[e.Label]
	case EdgeElement:
		return edgeLabels[e.Label]
	}
	return false
}

// rawElement is the loose wire shape; decodeElement narrows it into a typed
// Element per (type, label).
type rawElement struct {
	ID          json.RawMessage   `json:"id"`
	Type        string            `json:"type"`
	Label       string            `json:"label"`
	URI         string            `json:"uri"`
	LanguageID  string            `json:"languageId"`
	Start       *Position         `json:"start"`
	End         *Position         `json:"end"`
	Scheme      string            `json:"scheme"`
	Identifier  string            `json:"identifier"`
	Kind        string            `json:"kind"`
	Result      json.RawMessage   `json:"result"`
	Version     string            `json:"version"`
	ProjectRoot string            `json:"projectRoot"`
	ToolInfo    *rawToolInfo      `json:"toolInfo"`
	OutV        json.RawMessage   `json:"outV"`
	InV         json.RawMessage   `json:"inV"`
	InVs        []json.RawMessage `json:"inVs"`
	Property    string            `json:"property"`
}

type rawToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func decodeElement(data []byte) (*Element, error) {
	var raw rawElement
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	switch raw.Type {
	case VertexElement:
		return decodeVertex(&raw)
	case EdgeElement:
		return decodeEdge(&raw)
	case "":
		return nil, errors.New("missing element type")
	default:
		return nil, fmt.Errorf("unsupported element type %q", raw.Type)
	}
}

func decodeVertex(raw *rawElement) (*Element, error) {
	el := &Element{Type: VertexElement, Label: raw.Label}
	if !vertexLabels[raw.Label] {
		if raw.Label == "" {
			return nil, errors.New("missing vertex label")
		}
		// Unknown label: keep whatever id is present for the skip log.
		el.ID, _ = idString(raw.ID)
		return el, nil
	}

	id, err := idString(raw.ID)
	if err != nil {
		return nil, fmt.Errorf("vertex %s: %w", raw.Label, err)
	}
	el.ID = id

	switch raw.Label {
	case LabelDocument:
		if raw.URI == "" {
			return nil, fmt.Errorf("document %s: missing uri", id)
		}
		el.Document = &Document{URI: raw.URI, LanguageID: raw.LanguageID}
	case LabelRange:
		r, err := decodeRange(raw)
		if err != nil {
			return nil, fmt.Errorf("range %s: %w", id, err)
		}
		el.Range = r
	case LabelResultSet, LabelDefinitionResult, LabelReferenceResult:
		// Payload-free: the label is the whole story.
	case LabelMoniker:
		if raw.Scheme == "" || raw.Identifier == "" {
			return nil, fmt.Errorf("moniker %s: missing scheme or identifier", id)
		}
		el.Moniker = &Moniker{Scheme: raw.Scheme, Identifier: raw.Identifier, Kind: raw.Kind}
	case LabelHoverResult:
		contents, err := flattenHover(raw.Result)
		if err != nil {
			return nil, fmt.Errorf("hoverResult %s: %w", id, err)
		}
		el.Hover = &Hover{Contents: contents}
	case LabelMetaData:
		md := &MetaData{Version: raw.Version, ProjectRoot: raw.ProjectRoot}
		if raw.ToolInfo != nil {
			md.ToolName = raw.ToolInfo.Name
			md.ToolVersion = raw.ToolInfo.Version
		}
		el.Meta = md
	}
	return el, nil
}

func decodeEdge(raw *rawElement) (*Element, error) {
	el := &Element{Type: EdgeElement, Label: raw.Label}
	if !edgeLabels[raw.Label] {
		if raw.Label == "" {
			return nil, errors.New("missing edge label")
		}
		el.ID, _ = idString(raw.ID)
		return el, nil
	}

	// Edge ids carry no identity the store relies on; tolerate their absence.
	if len(raw.ID) > 0 {
		if id, err := idString(raw.ID); err == nil {
			el.ID = id
		}
	}

	outV, err := idString(raw.OutV)
	if err != nil {
		return nil, fmt.Errorf("edge %s: outV: %w", raw.Label, err)
	}
	inVs, err := edgeTargets(raw)
	if err != nil {
		return nil, fmt.Errorf("edge %s: %w", raw.Label, err)
	}

	e := &Edge{OutV: outV, InVs: inVs}
	if raw.Label == EdgeItem {
		switch raw.Property {
		case PropertyDefinitions, PropertyReferences, PropertyDeclarations, PropertyImplementations:
			e.Property = raw.Property
		case "":
			return nil, errors.New("item edge: missing property")
		default:
			return nil, fmt.Errorf("item edge: unsupported property %q", raw.Property)
		}
	}
	el.Edge = e
	return el, nil
}

func decodeRange(raw *rawElement) (*Range, error) {
	if raw.Start == nil || raw.End == nil {
		return nil, errors.New("missing start or end")
	}
	r := &Range{Start: *raw.Start, End: *raw.End}
	if r.Start.Line < 0 || r.Start.Character < 0 || r.End.Line < 0 || r.End.Character < 0 {
		return nil, errors.New("negative position")
	}
	if r.Start.Line > r.End.Line ||
		(r.Start.Line == r.End.Line && r.Start.Character > r.End.Character) {
		return nil, errors.New("start after end")
	}
	return r, nil
}

// idString normalizes a vertex/edge id, which producers emit as either a JSON
// number or a string, into its string form.
func idString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("missing id")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", errors.New("empty id")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("unsupported id %s", raw)
}

// edgeTargets normalizes the single-target (inV) and multi-target (inVs)
// forms into one id list.
func edgeTargets(raw *rawElement) ([]string, error) {
	if len(raw.InVs) > 0 {
		ids := make([]string, 0, len(raw.InVs))
		for _, rv := range raw.InVs {
			id, err := idString(rv)
			if err != nil {
				return nil, fmt.Errorf("inVs: %w", err)
			}
			ids = append(ids, id)
		}
		return ids, nil
	}
	if len(raw.InV) > 0 {
		id, err := idString(raw.InV)
		if err != nil {
			return nil, fmt.Errorf("inV: %w", err)
		}
		return []string{id}, nil
	}
	return nil, errors.New("missing inV/inVs")
}

// flattenHover extracts result.contents from a hoverResult vertex.
func flattenHover(result json.RawMessage) (string, error) {
	if len(result) == 0 {
		return "", errors.New("missing result")
	}
	var wrapper struct {
		Contents json.RawMessage `json:"contents"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return "", fmt.Errorf("invalid result: %w", err)
	}
	if len(wrapper.Contents) == 0 {
		return "", errors.New("missing result.contents")
	}
	return flattenContents(wrapper.Contents)
}

// flattenContents folds the hover content shapes producers emit (bare string,
// MarkupContent/MarkedString object, or an array mixing both) into one string.
func flattenContents(raw json.RawMessage) (string, error) {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return "", errors.New("empty contents")
	}
	switch b[0] {
	case '{':
		var obj struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return "", fmt.Errorf("invalid contents: %w", err)
		}
		return obj.Value, nil
	case '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(b, &parts); err != nil {
			return "", fmt.Errorf("invalid contents: %w", err)
		}
		var out []string
		for _, p := range parts {
			s, err := flattenContents(p)
			if err != nil {
				return "", err
			}
			if s != "" {
				out = append(out, s)
			}
		}
		return strings.Join(out, "\n\n"), nil
	default:
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", fmt.Errorf("invalid contents: %w", err)
		}
		return s, nil
	}
}
