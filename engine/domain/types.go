// Package domain defines the core types shared across the sync and
// indexing pipeline: device records, snapshot metadata, and work items.
package domain

import "time"

// DeviceMeta holds the six metadata columns published in the FDA
// AI/ML-enabled device spreadsheet.
type DeviceMeta struct {
	SubmissionID string `json:"submission_id"`
	DecisionDate string `json:"decision_date"`
	DeviceName   string `json:"device_name"`
	Company      string `json:"company"`
	Panel        string `json:"panel"`
	ProductCode  string `json:"product_code"`
}

// DeviceRecord is one persisted device submission: snapshot metadata
// joined with extracted document content. SubmissionID is the sole
// identity; writes are upserts keyed on it.
type DeviceRecord struct {
	DeviceMeta
	PDFPath       string    `json:"pdf_path"`
	PDFPages      int       `json:"pdf_pages"`
	ExtractedText string    `json:"extracted_text"`
	IngestedAt    time.Time `json:"ingested_at"`

	// Enrichment fields are written by the external classifier, never
	// by this pipeline.
	ImagingModality     string `json:"imaging_modality,omitempty"`
	BodyRegion          string `json:"body_region,omitempty"`
	ClinicalApplication string `json:"clinical_application,omitempty"`
	TagsVersion         string `json:"ai_tags_version,omitempty"`
}

// Reason explains why a submission was scheduled for processing.
type Reason string

const (
	ReasonNew                 Reason = "new"
	ReasonMissingDocument     Reason = "missing-document"
	ReasonCorruptedExtraction Reason = "corrupted-extraction"
)

// WorkItem is one unit of ingestion work for a single run. Work items
// are never persisted; a later run re-derives them from stored state.
type WorkItem struct {
	Meta   DeviceMeta `json:"meta"`
	Reason Reason     `json:"reason"`
}
