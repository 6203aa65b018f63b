package semantic

import (
	"strconv"

	pb "github.com/qdrant/go-client/qdrant"
)

// Record is one chunk ready for the index: the deterministic point id,
// its vector, the chunk text, and metadata denormalized from the
// device record for payload filtering.
type Record struct {
	PointID      string // UUID derived from the chunk id
	ChunkID      string // {submission_number}_{chunk_index}
	Vector       []float32
	Text         string
	SubmissionID string
	DeviceName   string
	Company      string
	Panel        string
	DecisionDate string
	ProductCode  string
	ChunkIndex   int
}

// Hit is one nearest-neighbour search result. Distance is cosine
// distance (1 - similarity score); smaller is closer.
type Hit struct {
	PointID  string            `json:"point_id"`
	ChunkID  string            `json:"chunk_id"`
	Distance float32           `json:"distance"`
	Text     string            `json:"text"`
	Meta     map[string]string `json:"meta"`
}

func toPayload(r Record) map[string]*pb.Value {
	return map[string]*pb.Value{
		"chunk_id":          strVal(r.ChunkID),
		"content":           strVal(r.Text),
		"submission_number": strVal(r.SubmissionID),
		"device_name":       strVal(r.DeviceName),
		"company":           strVal(r.Company),
		"panel":             strVal(r.Panel),
		"decision_date":     strVal(r.DecisionDate),
		"product_code":      strVal(r.ProductCode),
		"chunk_index":       intVal(r.ChunkIndex),
	}
}

func fromScored(p *pb.ScoredPoint) Hit {
	h := Hit{
		PointID:  p.GetId().GetUuid(),
		Distance: 1 - p.GetScore(),
		Meta:     make(map[string]string),
	}
	for k, val := range p.GetPayload() {
		switch k {
		case "content":
			h.Text = val.GetStringValue()
		case "chunk_id":
			h.ChunkID = val.GetStringValue()
		case "chunk_index":
			h.Meta[k] = strconv.FormatInt(val.GetIntegerValue(), 10)
		default:
			h.Meta[k] = val.GetStringValue()
		}
	}
	return h
}

func strVal(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intVal(n int) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(n)}}
}
