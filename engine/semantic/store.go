package semantic

import (
	"context"
	"fmt"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// scrollPageSize bounds one scroll request when fetching records.
const scrollPageSize = 256

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	return v.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	d := uint64(dims)
	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     d,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// Insert upserts chunk records. Record IDs are content-addressed upstream,
// so a concurrent double-insert of identical content converges on one point.
func (v *VectorStore) Insert(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: recordPayload(r),
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// HasVideo reports whether any point exists for the video.
func (v *VectorStore) HasVideo(ctx context.Context, videoID string) (bool, error) {
	n, err := v.Count(ctx, videoID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of points, optionally scoped to one video.
func (v *VectorStore) Count(ctx context.Context, videoID string) (int, error) {
	exact := true
	req := &pb.CountPoints{
		CollectionName: v.collection,
		Exact:          &exact,
	}
	if videoID != "" {
		req.Filter = &pb.Filter{Must: []*pb.Condition{fieldMatch("video_id", videoID)}}
	}
	resp, err := v.points.Count(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("semantic: count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// StoredTexts returns all (chunk_index, text) pairs for a video, payload
// only, so no vectors cross the wire for a dedup check.
func (v *VectorStore) StoredTexts(ctx context.Context, videoID string) ([]StoredText, error) {
	var out []StoredText
	err := v.scroll(ctx, videoID, false, func(p *pb.RetrievedPoint) {
		payload := p.GetPayload()
		out = append(out, StoredText{
			Index: int(payload["chunk_index"].GetIntegerValue()),
			Text:  payload["content"].GetStringValue(),
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Records fetches all records with vectors, optionally scoped to one video.
func (v *VectorStore) Records(ctx context.Context, videoID string) ([]ChunkRecord, error) {
	var out []ChunkRecord
	err := v.scroll(ctx, videoID, true, func(p *pb.RetrievedPoint) {
		out = append(out, recordFromPoint(p))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteVideo removes all points for a video.
func (v *VectorStore) DeleteVideo(ctx context.Context, videoID string) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{fieldMatch("video_id", videoID)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete by video_id %s: %w", videoID, err)
	}
	return nil
}

// scroll pages through all points in scope, invoking visit per point.
func (v *VectorStore) scroll(ctx context.Context, videoID string, withVectors bool, visit func(*pb.RetrievedPoint)) error {
	limit := uint32(scrollPageSize)
	req := &pb.ScrollPoints{
		CollectionName: v.collection,
		Limit:          &limit,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if withVectors {
		req.WithVectors = &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}}
	}
	if videoID != "" {
		req.Filter = &pb.Filter{Must: []*pb.Condition{fieldMatch("video_id", videoID)}}
	}

	for {
		resp, err := v.points.Scroll(ctx, req)
		if err != nil {
			return fmt.Errorf("semantic: scroll: %w", err)
		}
		for _, p := range resp.GetResult() {
			visit(p)
		}
		next := resp.GetNextPageOffset()
		if next == nil || len(resp.GetResult()) == 0 {
			return nil
		}
		req.Offset = next
	}
}

func recordPayload(r ChunkRecord) map[string]*pb.Value {
	return map[string]*pb.Value{
		"content":         {Kind: &pb.Value_StringValue{StringValue: r.Text}},
		"video_id":        {Kind: &pb.Value_StringValue{StringValue: r.VideoID}},
		"chunk_index":     {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.ChunkIndex)}},
		"start_timestamp": {Kind: &pb.Value_DoubleValue{DoubleValue: r.Start}},
		"end_timestamp":   {Kind: &pb.Value_DoubleValue{DoubleValue: r.End}},
		"word_count":      {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.WordCount)}},
		"character_count": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.CharCount)}},
		"content_hash":    {Kind: &pb.Value_StringValue{StringValue: r.ContentHash}},
		"strategy":        {Kind: &pb.Value_StringValue{StringValue: r.Strategy}},
		"created_at":      {Kind: &pb.Value_IntegerValue{IntegerValue: r.CreatedAt.Unix()}},
	}
}

func recordFromPoint(p *pb.RetrievedPoint) ChunkRecord {
	payload := p.GetPayload()
	r := ChunkRecord{
		ID:          p.GetId().GetUuid(),
		VideoID:     payload["video_id"].GetStringValue(),
		Text:        payload["content"].GetStringValue(),
		ChunkIndex:  int(payload["chunk_index"].GetIntegerValue()),
		Start:       payload["start_timestamp"].GetDoubleValue(),
		End:         payload["end_timestamp"].GetDoubleValue(),
		WordCount:   int(payload["word_count"].GetIntegerValue()),
		CharCount:   int(payload["character_count"].GetIntegerValue()),
		ContentHash: payload["content_hash"].GetStringValue(),
		Strategy:    payload["strategy"].GetStringValue(),
		CreatedAt:   time.Unix(payload["created_at"].GetIntegerValue(), 0),
	}
	if data := p.GetVectors().GetVector().GetData(); len(data) > 0 {
		r.Embedding = Vector(data)
	}
	return r
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
