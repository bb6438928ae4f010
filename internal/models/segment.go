package models

import "time"

// OffsetKind identifies the coordinate space of a Segment's offsets.
type OffsetKind string

const (
	OffsetKindText    OffsetKind = "text"
	OffsetKindHTML    OffsetKind = "html"
	OffsetKindSeconds OffsetKind = "seconds"
)

// SegmentStatus tracks a segment's place in its own edit lifecycle.
type SegmentStatus string

const (
	SegmentStatusRaw        SegmentStatus = "raw"
	SegmentStatusFinal      SegmentStatus = "final"
	SegmentStatusSuperseded SegmentStatus = "superseded"
)

// Segment is an atomic excerpt of a Document's prose.
type Segment struct {
	ID             string            `json:"id"`
	DocumentID     string            `json:"document_id"`
	Text           string            `json:"text"`
	ContentHTML    string            `json:"content_html,omitempty"`
	StartOffset    *int              `json:"start_offset,omitempty"`
	EndOffset      *int              `json:"end_offset,omitempty"`
	OffsetKind     OffsetKind        `json:"offset_kind"`
	SegmentStatus  SegmentStatus     `json:"segment_status"`
	Version        int               `json:"version"`
	Labels         []string          `json:"labels,omitempty"`
	Provenance     map[string]string `json:"provenance,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
