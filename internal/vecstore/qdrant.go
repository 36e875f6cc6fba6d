package vecstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// Named vectors carried by every collection. The dense vector drives the
// ANN prefetch; the late vector is a multivector compared with MaxSim.
const (
	vectorDense = "dense"
	vectorLate  = "late"
)

// payloadDocument is the payload key the serialized document text lives
// under. Remaining payload keys are treated as metadata.
const payloadDocument = "document"

// QdrantConfig holds connection parameters for a Qdrant-backed collection.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// DenseSize is the dimensionality of the dense embeddings.
	DenseSize uint64

	// LateSize is the per-token dimensionality of the late-interaction
	// embeddings. Zero disables the late vector on this collection.
	LateSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Qdrant implements Collection backed by a Qdrant instance using named
// vectors: "dense" under cosine distance and, when configured, "late" as a
// MaxSim-compared multivector.
type Qdrant struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this collection.
	cfg *QdrantConfig
}

// NewQdrant creates a Qdrant-backed collection, ensuring the target
// collection exists (creating it if necessary).
func NewQdrant(ctx context.Context, cfg *QdrantConfig) (*Qdrant, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vecstore: failed to create qdrant client: %w", err)
	}

	c := &Qdrant{client: client, cfg: cfg}
	if err := c.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (c *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := c.client.CollectionExists(ctx, c.cfg.Collection)
	if err != nil {
		return fmt.Errorf("vecstore: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	params := map[string]*qdrant.VectorParams{
		vectorDense: {
			Size:     c.cfg.DenseSize,
			Distance: qdrant.Distance_Cosine,
		},
	}
	if c.cfg.LateSize > 0 {
		params[vectorLate] = &qdrant.VectorParams{
			Size:     c.cfg.LateSize,
			Distance: qdrant.Distance_Dot,
			MultivectorConfig: &qdrant.MultiVectorConfig{
				Comparator: qdrant.MultiVectorComparator_MaxSim,
			},
		}
	}

	err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.cfg.Collection,
		VectorsConfig:  qdrant.NewVectorsConfigMap(params),
	})
	if err != nil {
		return fmt.Errorf("vecstore: failed to create collection %q: %w", c.cfg.Collection, err)
	}

	return nil
}

// Upsert stores or updates a batch of records. Embeddings must be
// pre-computed. Record IDs must be UUID strings (see PointID).
func (c *Qdrant) Upsert(ctx context.Context, recs []Record) error {
	points := make([]*qdrant.PointStruct, 0, len(recs))
	for _, rec := range recs {
		if c.cfg.DenseSize > 0 && uint64(len(rec.Dense)) != c.cfg.DenseSize {
			return fmt.Errorf("%w: collection has %d, record %q has %d",
				ErrDimensionMismatch, c.cfg.DenseSize, rec.ID, len(rec.Dense))
		}

		payload := map[string]interface{}{
			payloadDocument: rec.Document,
		}
		for k, v := range rec.Metadata {
			payload[k] = v
		}

		vectors := map[string]*qdrant.Vector{
			vectorDense: qdrant.NewVectorDense(rec.Dense),
		}
		if len(rec.Late) > 0 {
			vectors[vectorLate] = qdrant.NewVectorMulti(rec.Late)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(rec.ID),
			Vectors: qdrant.NewVectorsMap(vectors),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vecstore: upsert failed: %w", err)
	}

	return nil
}

// Delete removes records by ID. Unknown IDs are ignored by the server.
func (c *Qdrant) Delete(ctx context.Context, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id))
	}

	_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: c.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("vecstore: delete failed: %w", err)
	}

	return nil
}

// Count returns the exact number of points in the collection.
func (c *Qdrant) Count(ctx context.Context) (uint64, error) {
	n, err := c.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: c.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("vecstore: count failed: %w", err)
	}
	return n, nil
}

// ScrollPage returns up to limit records after the offset token, with
// payloads and vectors, plus the token for the next page. The token is the
// Qdrant next-page point ID.
func (c *Qdrant) ScrollPage(ctx context.Context, limit int, offset string) ([]Record, string, error) {
	if limit <= 0 {
		limit = 100
	}

	req := &qdrant.ScrollPoints{
		CollectionName: c.cfg.Collection,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	}
	if offset != "" {
		req.Offset = qdrant.NewIDUUID(offset)
	}

	resp, err := c.client.GetPointsClient().Scroll(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("vecstore: scroll failed: %w", err)
	}

	recs := make([]Record, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		rec := Record{
			ID:       pt.GetId().GetUuid(),
			Metadata: make(map[string]string),
		}
		fillPayload(&rec, pt.GetPayload())
		fillVectors(&rec, pt.GetVectors())
		recs = append(recs, rec)
	}

	next := ""
	if off := resp.GetNextPageOffset(); off != nil {
		next = off.GetUuid()
	}
	return recs, next, nil
}

// SearchDense performs a cosine similarity search over the dense vector and
// returns the top-limit records.
func (c *Qdrant) SearchDense(ctx context.Context, query []float32, limit int) ([]Scored, error) {
	results, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.cfg.Collection,
		Query:          qdrant.NewQueryDense(query),
		Using:          qdrant.PtrOf(vectorDense),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vecstore: dense search failed: %w", err)
	}

	return scoredFromPoints(results), nil
}

// SearchHybrid retrieves prefetchLimit candidates by dense similarity and
// re-ranks them server-side by MaxSim against the late query matrix. The
// result is a subset of the dense candidate set.
func (c *Qdrant) SearchHybrid(ctx context.Context, dense []float32, late [][]float32, prefetchLimit, limit int) ([]Scored, error) {
	if c.cfg.LateSize == 0 {
		return c.SearchDense(ctx, dense, limit)
	}

	results, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.cfg.Collection,
		Prefetch: []*qdrant.PrefetchQuery{
			{
				Query: qdrant.NewQueryDense(dense),
				Using: qdrant.PtrOf(vectorDense),
				Limit: qdrant.PtrOf(uint64(prefetchLimit)),
			},
		},
		Query:       qdrant.NewQueryMulti(late),
		Using:       qdrant.PtrOf(vectorLate),
		Limit:       qdrant.PtrOf(uint64(limit)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vecstore: hybrid search failed: %w", err)
	}

	return scoredFromPoints(results), nil
}

// Ping checks Qdrant reachability via its native health check RPC.
func (c *Qdrant) Ping(ctx context.Context) error {
	if _, err := c.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("vecstore: qdrant health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (c *Qdrant) Close() error {
	return c.client.Close()
}

// scoredFromPoints converts Qdrant scored points into Scored records.
func scoredFromPoints(points []*qdrant.ScoredPoint) []Scored {
	out := make([]Scored, 0, len(points))
	for _, pt := range points {
		rec := Record{
			ID:       pt.GetId().GetUuid(),
			Metadata: make(map[string]string),
		}
		fillPayload(&rec, pt.GetPayload())
		out = append(out, Scored{Record: rec, Score: pt.GetScore()})
	}
	return out
}

// fillPayload extracts the document text and metadata from a point payload.
func fillPayload(rec *Record, payload map[string]*qdrant.Value) {
	for k, v := range payload {
		if k == payloadDocument {
			rec.Document = v.GetStringValue()
			continue
		}
		rec.Metadata[k] = v.GetStringValue()
	}
}

// fillVectors extracts the named dense and late vectors from a scrolled
// point. Late multivectors arrive flattened with a row count and are
// reshaped back into a matrix.
func fillVectors(rec *Record, vectors *qdrant.VectorsOutput) {
	named := vectors.GetVectors()
	if named == nil {
		return
	}
	for name, vec := range named.GetVectors() {
		switch strings.ToLower(name) {
		case vectorDense:
			rec.Dense = vec.GetData()
		case vectorLate:
			rec.Late = reshapeMulti(vec.GetData(), vec.GetVectorsCount())
		}
	}
}

// reshapeMulti splits a flattened multivector of rows rows back into a
// matrix. A zero row count or uneven data length yields nil.
func reshapeMulti(data []float32, rows uint32) [][]float32 {
	if rows == 0 || len(data) == 0 || len(data)%int(rows) != 0 {
		return nil
	}
	width := len(data) / int(rows)
	out := make([][]float32, 0, rows)
	for i := 0; i < len(data); i += width {
		out = append(out, data[i:i+width])
	}
	return out
}
