package domain

import (
	"fmt"
	"strings"
)

// MinExtractedText is the minimum extracted-text length for a record to
// count as usable. Shorter text means the PDF was image-only or the
// extraction silently produced garbage.
const MinExtractedText = 100

// Usable reports whether the record's extraction succeeded well enough
// to feed chunking and embedding.
func (r DeviceRecord) Usable() bool {
	return len(r.ExtractedText) >= MinExtractedText
}

// ValidateMeta checks a snapshot row before it enters the pipeline.
func ValidateMeta(m DeviceMeta) error {
	if strings.TrimSpace(m.SubmissionID) == "" {
		return fmt.Errorf("validate: submission id is empty")
	}
	if strings.TrimSpace(m.DeviceName) == "" {
		return fmt.Errorf("validate: device name is empty for %s", m.SubmissionID)
	}
	return nil
}
