// Package qdrant implements store.Store on a Qdrant collection over gRPC.
// Survey reports are kept in the point payload alongside flattened metadata;
// cosine distance is configured at collection creation, so Qdrant scores are
// already cosine similarities.
package qdrant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sitewise-ai/sitewise/internal/store"
)

// Payload keys reserved for record fields; everything else is metadata.
const (
	keyDocument  = "document"
	keyStatus    = "status"
	keySurveyID  = "survey_id"
	keyTimestamp = "timestamp"
)

// Namespace for deriving point UUIDs from caller-supplied survey ids.
var pointNamespace = uuid.MustParse("0b7f5a9e-3d1c-4f6a-9b2e-8c4d5e6f7a81")

const scrollPageSize = 256

// Store is a Qdrant-backed survey store.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dims        int
}

// New dials Qdrant and ensures the survey collection exists with the given
// vector width. Calling New against an existing collection is idempotent.
func New(ctx context.Context, host string, port int, collection string, dims int) (*Store, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}

	s := &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dims:        dims,
	}
	if err := s.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(s.dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection %s: %w", s.collection, err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, rec store.Record) error {
	if len(rec.Embedding) != s.dims {
		return fmt.Errorf("%w: got %d, collection %s expects %d",
			store.ErrDimensionMismatch, len(rec.Embedding), s.collection, s.dims)
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	payload := map[string]*pb.Value{
		keyDocument:  stringValue(rec.Document),
		keyStatus:    stringValue(string(rec.Status)),
		keySurveyID:  stringValue(rec.ID),
		keyTimestamp: stringValue(ts.UTC().Format(time.RFC3339)),
	}
	for k, v := range rec.Metadata {
		payload[k] = stringValue(v)
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id:      pointID(rec.ID),
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: rec.Embedding}}},
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, embedding []float32, k int, status store.Status) ([]store.Result, error) {
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         embedding,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if status != store.StatusAny {
		req.Filter = &pb.Filter{Must: []*pb.Condition{fieldMatch(keyStatus, string(status))}}
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	results := make([]store.Result, len(resp.GetResult()))
	for i, pt := range resp.GetResult() {
		r := store.Result{
			SurveyID:   pt.GetId().GetUuid(),
			Similarity: pt.GetScore(),
			Metadata:   make(map[string]string),
		}
		for key, val := range pt.GetPayload() {
			switch key {
			case keyDocument:
				r.Analysis = val.GetStringValue()
			case keySurveyID:
				r.SurveyID = val.GetStringValue()
			case keyStatus, keyTimestamp:
			default:
				r.Metadata[key] = val.GetStringValue()
			}
		}
		results[i] = r
	}
	return results, nil
}

func (s *Store) Get(ctx context.Context, id string) (store.Record, error) {
	resp, err := s.points.Get(ctx, &pb.GetPoints{
		CollectionName: s.collection,
		Ids:            []*pb.PointId{pointID(id)},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
	})
	if err != nil {
		return store.Record{}, fmt.Errorf("qdrant get %s: %w", id, err)
	}
	if len(resp.GetResult()) == 0 {
		return store.Record{}, store.ErrNotFound
	}
	return recordFromPoint(resp.GetResult()[0]), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID(id)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete %s: %w", id, err)
	}
	return nil
}

// Stats scrolls the whole collection and counts statuses, so the numbers stay
// consistent with deletions rather than tracking an incremental counter.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var statuses []store.Status
	var offset *pb.PointId

	for {
		limit := uint32(scrollPageSize)
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return store.Stats{}, fmt.Errorf("qdrant scroll: %w", err)
		}
		for _, pt := range resp.GetResult() {
			statuses = append(statuses, store.Status(pt.GetPayload()[keyStatus].GetStringValue()))
		}
		offset = resp.GetNextPageOffset()
		if offset == nil || len(resp.GetResult()) == 0 {
			break
		}
	}
	return store.ComputeStats(statuses), nil
}

// Reset drops and recreates the collection.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection})
	if err != nil && !strings.Contains(err.Error(), "doesn't exist") {
		return fmt.Errorf("qdrant delete collection %s: %w", s.collection, err)
	}
	return s.ensureCollection(ctx)
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func recordFromPoint(pt *pb.RetrievedPoint) store.Record {
	rec := store.Record{
		ID:       pt.GetId().GetUuid(),
		Metadata: make(map[string]string),
	}
	if v := pt.GetVectors().GetVector(); v != nil {
		rec.Embedding = v.GetData()
	}
	for key, val := range pt.GetPayload() {
		switch key {
		case keyDocument:
			rec.Document = val.GetStringValue()
		case keyStatus:
			rec.Status = store.Status(val.GetStringValue())
		case keySurveyID:
			rec.ID = val.GetStringValue()
		case keyTimestamp:
			if ts, err := time.Parse(time.RFC3339, val.GetStringValue()); err == nil {
				rec.Timestamp = ts
			}
		default:
			rec.Metadata[key] = val.GetStringValue()
		}
	}
	return rec
}

// pointID maps a survey id onto a Qdrant point id. Qdrant only accepts UUIDs
// (or uints) as point ids, while callers may supply arbitrary strings, so
// non-UUID ids are hashed into a stable UUIDv5; the original id travels in
// the payload under keySurveyID.
func pointID(id string) *pb.PointId {
	if uuid.Validate(id) != nil {
		id = uuid.NewSHA1(pointNamespace, []byte(id)).String()
	}
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}

var _ store.Store = (*Store)(nil)
