package databases

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/docvector/docvector/pkg/config"
)

type qdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore connects to qdrant over gRPC.
func NewQdrantStore(cfg *config.QdrantConfig) (VectorStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &qdrantStore{client: client}, nil
}

func (db *qdrantStore) EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error {
	exists, err := db.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}
	if exists {
		return nil
	}

	err = db.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		// Concurrent creators race; losing the race is fine.
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (db *qdrantStore) Upsert(ctx context.Context, collection string, ids []string, vectors [][]float32, payloads []map[string]interface{}) error {
	if len(ids) != len(vectors) || len(ids) != len(payloads) {
		return fmt.Errorf("upsert length mismatch: %d ids, %d vectors, %d payloads",
			len(ids), len(vectors), len(payloads))
	}
	if len(ids) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(ids))
	for i := range ids {
		payload := make(map[string]*qdrant.Value, len(payloads[i]))
		for key, value := range payloads[i] {
			val, err := qdrant.NewValue(value)
			if err != nil {
				return fmt.Errorf("failed to convert payload value for key %s: %w", key, err)
			}
			payload[key] = val
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(ids[i]),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		}
	}

	_, err := db.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

func (db *qdrantStore) Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]interface{}, scoreThreshold float32) ([]SearchResult, error) {
	searchRequest := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if scoreThreshold > 0 {
		searchRequest.ScoreThreshold = &scoreThreshold
	}
	if f := buildFilter(filter); f != nil {
		searchRequest.Filter = f
	}

	pointsClient := db.client.GetPointsClient()
	searchResult, err := pointsClient.Search(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	return convertScoredPoints(searchResult.Result), nil
}

func (db *qdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}}
	}

	_, err := db.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points from collection %s: %w", collection, err)
	}
	return nil
}

func (db *qdrantStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) error {
	qdrantFilter := buildFilter(filter)
	if qdrantFilter == nil {
		return fmt.Errorf("refusing to delete with an empty filter")
	}

	_, err := db.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: qdrantFilter,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points by filter from collection %s: %w", collection, err)
	}
	return nil
}

func (db *qdrantStore) Get(ctx context.Context, collection string, ids []string) ([]SearchResult, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}}
	}

	points, err := db.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get points: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		metadata := payloadToMap(point.Payload)
		results = append(results, SearchResult{
			ID:       pointIDString(point.Id),
			Content:  metadataContent(metadata),
			Metadata: metadata,
		})
	}
	return results, nil
}

func (db *qdrantStore) Count(ctx context.Context, collection string, filter map[string]interface{}) (uint64, error) {
	count, err := db.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         buildFilter(filter),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}

func (db *qdrantStore) Close() error {
	return db.client.Close()
}

func convertScoredPoints(points []*qdrant.ScoredPoint) []SearchResult {
	var results []SearchResult
	for _, point := range points {
		metadata := payloadToMap(point.Payload)

		var vector []float32
		if point.Vectors != nil {
			if vectorData := point.Vectors.GetVector(); vectorData != nil {
				if dense, ok := vectorData.Vector.(*qdrant.VectorOutput_Dense); ok && dense.Dense != nil {
					vector = dense.Dense.Data
				}
			}
		}

		results = append(results, SearchResult{
			ID:       pointIDString(point.Id),
			Content:  metadataContent(metadata),
			Vector:   vector,
			Metadata: metadata,
			Score:    point.Score,
		})
	}
	return results
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil || id.PointIdOptions == nil {
		return ""
	}
	switch idType := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return idType.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", idType.Num)
	}
	return ""
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]interface{} {
	metadata := make(map[string]interface{}, len(payload))
	for key, value := range payload {
		metadata[key] = valueToInterface(value)
	}
	return metadata
}

func valueToInterface(value *qdrant.Value) interface{} {
	switch v := value.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		if v.ListValue == nil {
			return nil
		}
		list := make([]interface{}, len(v.ListValue.Values))
		for i, item := range v.ListValue.Values {
			list[i] = valueToInterface(item)
		}
		return list
	default:
		return value
	}
}

func metadataContent(metadata map[string]interface{}) string {
	if contentValue, exists := metadata["content"]; exists {
		if contentStr, ok := contentValue.(string); ok {
			return contentStr
		}
	}
	return ""
}
