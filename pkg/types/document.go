// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DocumentKind groups source formats by the engines that can render them.
type DocumentKind string

const (
	KindWord    DocumentKind = "word"
	KindExcel   DocumentKind = "excel"
	KindImage   DocumentKind = "image"
	KindUnknown DocumentKind = "unknown"
)

// Document is a validated source file ready for conversion.
type Document struct {
	// Path is the absolute path to the source file.
	Path string `json:"path" yaml:"path"`

	// Kind is the detected document kind.
	Kind DocumentKind `json:"kind" yaml:"kind"`

	// Ext is the lower-cased extension including the dot (e.g. ".docx").
	Ext string `json:"ext" yaml:"ext"`

	// Size is the file size in bytes.
	Size int64 `json:"size" yaml:"size"`
}

// ConversionStatus indicates the outcome of converting one document.
type ConversionStatus string

const (
	ConversionDone    ConversionStatus = "converted"
	ConversionSkipped ConversionStatus = "skipped"
	ConversionFailed  ConversionStatus = "failed"
)

// Attempt records one engine invocation within a fallback plan.
type Attempt struct {
	Engine   string        `json:"engine" yaml:"engine"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Succeeded reports whether the attempt produced a PDF.
func (a Attempt) Succeeded() bool {
	return a.Error == ""
}

// ConversionRecord describes a finished conversion, successful or not.
// It is what the history store persists and what batch reports list.
type ConversionRecord struct {
	// ID is a ULID assigned when the conversion starts.
	ID string `json:"id" yaml:"id"`

	Source string       `json:"source" yaml:"source"`
	Output string       `json:"output,omitempty" yaml:"output,omitempty"`
	Kind   DocumentKind `json:"kind" yaml:"kind"`

	// Engine is the engine that produced the output; empty on failure.
	Engine string           `json:"engine,omitempty" yaml:"engine,omitempty"`
	Status ConversionStatus `json:"status" yaml:"status"`

	Attempts []Attempt `json:"attempts,omitempty" yaml:"attempts,omitempty"`

	// Pages is the page count of the produced PDF, when verified.
	Pages      int   `json:"pages,omitempty" yaml:"pages,omitempty"`
	OutputSize int64 `json:"output_size,omitempty" yaml:"output_size,omitempty"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Duration returns the wall-clock time of the conversion.
func (r ConversionRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
