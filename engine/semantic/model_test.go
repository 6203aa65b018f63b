package semantic

import (
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
)

func TestToPayload(t *testing.T) {
	r := Record{
		ChunkID:      "K251406_3",
		Text:         "indications for use",
		SubmissionID: "K251406",
		DeviceName:   "CardioScan AI",
		Company:      "Acme Medical",
		Panel:        "Radiology",
		DecisionDate: "2025-03-14",
		ProductCode:  "QAS",
		ChunkIndex:   3,
	}

	p := toPayload(r)
	if got := p["submission_number"].GetStringValue(); got != "K251406" {
		t.Errorf("submission_number = %q", got)
	}
	if got := p["content"].GetStringValue(); got != "indications for use" {
		t.Errorf("content = %q", got)
	}
	if got := p["chunk_index"].GetIntegerValue(); got != 3 {
		t.Errorf("chunk_index = %d", got)
	}
}

func TestFromScored_DistanceAndMeta(t *testing.T) {
	p := &pb.ScoredPoint{
		Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "some-uuid"}},
		Score: 0.75, // cosine similarity
		Payload: map[string]*pb.Value{
			"content":           strVal("chunk text"),
			"chunk_id":          strVal("K251406_0"),
			"device_name":       strVal("CardioScan AI"),
			"chunk_index":       intVal(0),
			"submission_number": strVal("K251406"),
		},
	}

	h := fromScored(p)
	if h.Text != "chunk text" || h.ChunkID != "K251406_0" {
		t.Errorf("hit = %+v", h)
	}
	if h.Distance != 0.25 {
		t.Errorf("distance = %v, want 0.25", h.Distance)
	}
	if h.Meta["device_name"] != "CardioScan AI" || h.Meta["chunk_index"] != "0" {
		t.Errorf("meta = %v", h.Meta)
	}
	if _, ok := h.Meta["content"]; ok {
		t.Error("content duplicated into meta")
	}
}
