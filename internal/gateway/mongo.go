package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roadsync/internal/report"
)

const (
	reportsCollection = "reports"
	mongoConnectWait  = 15 * time.Second
)

// MongoGateway is the document-store backend. Fields arrive loosely
// typed; timestamps may be server-assigned sentinels that resolve
// asynchronously. Everything is normalized on the way out.
type MongoGateway struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

// NewMongoGateway connects to the document store and pings it once so
// a bad URI fails at startup, not mid-drain.
func NewMongoGateway(ctx context.Context, uri, dbName string, logger *slog.Logger) (*MongoGateway, error) {
	dctx, cancel := context.WithTimeout(ctx, mongoConnectWait)
	defer cancel()

	client, err := mongo.Connect(dctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	if err := client.Ping(dctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	return &MongoGateway{
		coll:   client.Database(dbName).Collection(reportsCollection),
		logger: logger,
	}, nil
}

// Close disconnects the underlying client.
func (g *MongoGateway) Close(ctx context.Context) error {
	return g.coll.Database().Client().Disconnect(ctx)
}

// Create inserts the report. When the record carries a client token, a
// prior insert with the same token wins instead of producing a
// duplicate: a drain retried after a crash re-delivers at most the
// queue rewrite, never a second remote record.
func (g *MongoGateway) Create(ctx context.Context, r report.RemoteReport) (string, error) {
	if r.ClientToken != "" {
		var existing bson.M

		err := g.coll.FindOne(ctx, bson.M{"clientToken": r.ClientToken}).Decode(&existing)
		if err == nil {
			id := documentID(existing)
			g.logger.Info("duplicate create suppressed",
				slog.String("clientToken", r.ClientToken),
				slog.String("id", id),
			)

			return id, nil
		}
		if err != mongo.ErrNoDocuments {
			return "", fmt.Errorf("checking client token: %w", err)
		}
	}

	res, err := g.coll.InsertOne(ctx, toDocument(r))
	if err != nil {
		return "", fmt.Errorf("inserting report: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Sprintf("%v", res.InsertedID), nil
	}

	return oid.Hex(), nil
}

// ListAll returns every report, newest first.
func (g *MongoGateway) ListAll(ctx context.Context) ([]report.RemoteReport, error) {
	return g.list(ctx, bson.M{})
}

// ListByOwner returns the owner's reports, newest first.
func (g *MongoGateway) ListByOwner(ctx context.Context, ownerID string) ([]report.RemoteReport, error) {
	return g.list(ctx, bson.M{"ownerId": ownerID})
}

func (g *MongoGateway) list(ctx context.Context, filter bson.M) ([]report.RemoteReport, error) {
	cur, err := g.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer cur.Close(ctx)

	var reports []report.RemoteReport

	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding report: %w", err)
		}

		reports = append(reports, fromDocument(doc))
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}

	return reports, nil
}

// UpdateStatus transitions a report's lifecycle stage.
func (g *MongoGateway) UpdateStatus(ctx context.Context, id string, status report.Status) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: bad report id %q", ErrRejected, id)
	}

	res, err := g.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"status":    status.String(),
		"updatedAt": time.Now().UnixMilli(),
	}})
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: report %s not found", ErrRejected, id)
	}

	return nil
}

// WatchByOwner streams the owner's change events through a change
// stream until ctx is cancelled.
func (g *MongoGateway) WatchByOwner(ctx context.Context, ownerID string, handler func(ChangeEvent)) error {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"$or": bson.A{
				bson.M{"fullDocument.ownerId": ownerID},
				// Deletes carry no full document; let them through and
				// leave eviction to the handler's cache.
				bson.M{"operationType": "delete"},
			},
		}}},
	}

	stream, err := g.coll.Watch(ctx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup),
	)
	if err != nil {
		return fmt.Errorf("opening change stream: %w", err)
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var ev struct {
			OperationType string `bson:"operationType"`
			FullDocument  bson.M `bson:"fullDocument"`
			DocumentKey   bson.M `bson:"documentKey"`
		}

		if err := stream.Decode(&ev); err != nil {
			g.logger.Warn("undecodable change event", slog.String("error", err.Error()))
			continue
		}

		change, ok := toChangeEvent(ev.OperationType, ev.FullDocument, ev.DocumentKey)
		if !ok {
			continue
		}

		handler(change)
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("change stream: %w", err)
	}

	return ctx.Err()
}

func toChangeEvent(op string, doc, key bson.M) (ChangeEvent, bool) {
	switch op {
	case "insert":
		return ChangeEvent{Type: EventAdded, Report: fromDocument(doc)}, true
	case "update", "replace":
		return ChangeEvent{Type: EventModified, Report: fromDocument(doc)}, true
	case "delete":
		return ChangeEvent{
			Type:   EventRemoved,
			Report: report.RemoteReport{RemoteID: documentID(key)},
		}, true
	default:
		return ChangeEvent{}, false
	}
}

// toDocument flattens the record into the collection's field names.
func toDocument(r report.RemoteReport) bson.M {
	doc := bson.M{
		"ownerId":     r.OwnerID,
		"latitude":    r.Latitude,
		"longitude":   r.Longitude,
		"description": r.Description,
		"category":    string(r.Category),
		"status":      r.Status.String(),
		"createdAt":   r.CreatedAt,
		"updatedAt":   r.UpdatedAt,
	}

	if r.PhotoURL != "" {
		doc["photoUrl"] = r.PhotoURL
	}
	if r.ClientToken != "" {
		doc["clientToken"] = r.ClientToken
	}
	if r.AreaM2 != nil {
		doc["area_m2"] = *r.AreaM2
	}
	if r.Budget != nil {
		doc["budget"] = *r.Budget
	}
	if r.Company != nil {
		doc["company"] = *r.Company
	}

	return doc
}

// fromDocument normalizes a loosely-typed document into the canonical
// record shape. Missing or mistyped fields degrade to zero values;
// status and timestamps go through the shared normalizers.
func fromDocument(doc bson.M) report.RemoteReport {
	r := report.RemoteReport{
		RemoteID:    documentID(doc),
		OwnerID:     docString(doc, "ownerId"),
		Latitude:    docFloat(doc, "latitude"),
		Longitude:   docFloat(doc, "longitude"),
		Description: docString(doc, "description"),
		Category:    report.Category(docString(doc, "category")),
		PhotoURL:    docString(doc, "photoUrl"),
		Status:      report.ParseStatus(docString(doc, "status")),
		CreatedAt:   report.MillisFromAny(docTime(doc, "createdAt")),
		UpdatedAt:   report.MillisFromAny(docTime(doc, "updatedAt")),
		ClientToken: docString(doc, "clientToken"),
	}

	if r.Category == "" {
		r.Category = report.CategoryOther
	}

	if v, ok := doc["area_m2"].(float64); ok {
		r.AreaM2 = &v
	}
	if v, ok := doc["budget"].(float64); ok {
		r.Budget = &v
	}
	if v, ok := doc["company"].(string); ok && v != "" {
		r.Company = &v
	}

	return r
}

func documentID(doc bson.M) string {
	switch id := doc["_id"].(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return ""
	}
}

func docString(doc bson.M, key string) string {
	v, _ := doc[key].(string)
	return v
}

func docFloat(doc bson.M, key string) float64 {
	switch v := doc[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	default:
		return 0
	}
}

// docTime unwraps the driver's timestamp representations before the
// shared normalizer runs.
func docTime(doc bson.M, key string) any {
	switch v := doc[key].(type) {
	case primitive.DateTime:
		return v.Time()
	case primitive.Timestamp:
		return time.Unix(int64(v.T), 0)
	default:
		return v
	}
}
