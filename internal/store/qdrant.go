package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys on qdrant points.
const (
	qdrantPayloadDocID = "doc_id"
	qdrantPayloadBody  = "body"
)

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	VectorSize uint64
	APIKey     string
	UseTLS     bool
}

// QdrantStore is a VectorStore backed by a Qdrant collection. Qdrant point
// IDs must be UUIDs or integers, so each document ID maps to a name-based
// UUID and the original ID travels in the payload.
type QdrantStore struct {
	client *qdrant.Client
	cfg    QdrantConfig
}

var _ VectorStore = (*QdrantStore)(nil)

// NewQdrantStore connects and ensures the collection exists.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	s := &QdrantStore{client: client, cfg: cfg}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}
	return nil
}

// PointID derives the deterministic qdrant point UUID for a document ID.
func PointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(docID)).String()
}

// qdrantPayload flattens a record into primitive payload values.
func qdrantPayload(r VectorRecord) map[string]any {
	payload := map[string]any{
		qdrantPayloadDocID: r.ID,
		qdrantPayloadBody:  r.Body,
		"filename":         r.Metadata.Filename,
		"file_type":        string(r.Metadata.FileType),
		"chunk_index":      int64(r.Metadata.ChunkIndex),
	}
	if r.Metadata.Page > 0 {
		payload["page"] = int64(r.Metadata.Page)
	}
	for k, v := range r.Metadata.Extra {
		if _, reserved := payload[k]; !reserved {
			payload[k] = widenPrimitive(v)
		}
	}
	return payload
}

// widenPrimitive converts sized integer and float types to int64/float64.
func widenPrimitive(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// Upsert stores records, replacing points with the same document ID.
func (s *QdrantStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		if err := ValidateExtra(r.Metadata.Extra); err != nil {
			return err
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(r.ID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(qdrantPayload(r)),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Query performs a cosine similarity search.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, k int) ([]VectorHit, error) {
	if k <= 0 {
		return []VectorHit{}, nil
	}

	limit := uint64(k)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	hits := make([]VectorHit, 0, len(results))
	for _, r := range results {
		p := r.GetPayload()
		id := p[qdrantPayloadDocID].GetStringValue()
		if id == "" {
			continue
		}
		hits = append(hits, VectorHit{
			ID:    id,
			Body:  p[qdrantPayloadBody].GetStringValue(),
			Score: r.GetScore(),
		})
	}
	return hits, nil
}

// Bodies fetches point payloads for ids and returns their body text.
func (s *QdrantStore) Bodies(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(PointID(id)))
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: get failed: %w", err)
	}
	for _, p := range points {
		payload := p.GetPayload()
		if id := payload[qdrantPayloadDocID].GetStringValue(); id != "" {
			out[id] = payload[qdrantPayloadBody].GetStringValue()
		}
	}
	return out, nil
}

// Delete removes documents by their document IDs.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(PointID(id)))
	}

	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil
}

// IDs returns every document ID in the collection.
func (s *QdrantStore) IDs(ctx context.Context) ([]string, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []string{}, nil
	}

	limit := uint32(n)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.cfg.Collection,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: scroll failed: %w", err)
	}

	ids := make([]string, 0, len(points))
	for _, p := range points {
		if id := p.GetPayload()[qdrantPayloadDocID].GetStringValue(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
