package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"invoicedesk/internal/config"
	"invoicedesk/internal/logging"
	"invoicedesk/internal/models"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrInvalidID       = errors.New("invalid invoice id")
)

// IInvoiceService defines the interface for invoice record operations.
type IInvoiceService interface {
	List(ctx context.Context, term string) ([]models.InvoiceRecord, error)
	FindByID(ctx context.Context, id string) (*models.InvoiceRecord, error)
	Create(ctx context.Context, payload models.InvoicePayload) (*models.InvoiceRecord, error)
	Update(ctx context.Context, id string, payload models.InvoicePayload) (*models.InvoiceRecord, error)
	Delete(ctx context.Context, id string) error
}

const invoicesCollection = "invoices"

// invoiceService implements IInvoiceService.
type invoiceService struct {
	db  *mongo.Database
	now func() time.Time
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(db *mongo.Database) IInvoiceService {
	return &invoiceService{db: db, now: storeNow}
}

// EnsureInvoiceIndexes creates the indexes used by listing and search.
func EnsureInvoiceIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("createdAt_-1"),
		},
		{
			Keys:    bson.D{{Key: "vendor.name", Value: 1}},
			Options: options.Index().SetName("vendor_name_1"),
		},
		{
			Keys:    bson.D{{Key: "invoiceDetails.number", Value: 1}},
			Options: options.Index().SetName("invoiceDetails_number_1"),
		},
	}
	if _, err := db.Collection(invoicesCollection).Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes for '%s' collection: %w", invoicesCollection, err)
	}
	logging.L().WithField("collection", invoicesCollection).Info("ensured indexes")
	return nil
}

func parseInvoiceID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

// searchFilter matches term as a case-insensitive literal substring of the vendor name or invoice number.
func searchFilter(term string) bson.M {
	term = strings.TrimSpace(term)
	if term == "" {
		return bson.M{}
	}
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
	return bson.M{"$or": bson.A{
		bson.M{"vendor.name": pattern},
		bson.M{"invoiceDetails.number": pattern},
	}}
}

// List returns at most one page of records, newest first.
func (s *invoiceService) List(ctx context.Context, term string) ([]models.InvoiceRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(config.ListPageSize)

	cursor, err := s.db.Collection(invoicesCollection).Find(ctx, searchFilter(term), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer cursor.Close(ctx)

	records := []models.InvoiceRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode invoices: %w", err)
	}
	return records, nil
}

func (s *invoiceService) FindByID(ctx context.Context, id string) (*models.InvoiceRecord, error) {
	oid, err := parseInvoiceID(id)
	if err != nil {
		return nil, err
	}
	var rec models.InvoiceRecord
	if err := s.db.Collection(invoicesCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("error finding invoice by ID %s: %w", id, err)
	}
	return &rec, nil
}

// Create stores a new record with a fresh id and timestamps.
func (s *invoiceService) Create(ctx context.Context, payload models.InvoicePayload) (*models.InvoiceRecord, error) {
	rec := payload.ToRecord()
	rec.GenIDIfEmpty()
	rec.Touch(s.now())

	if _, err := s.db.Collection(invoicesCollection).InsertOne(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}
	return &rec, nil
}

// Update replaces every mutable field and returns the stored document. createdAt is never touched.
func (s *invoiceService) Update(ctx context.Context, id string, payload models.InvoicePayload) (*models.InvoiceRecord, error) {
	oid, err := parseInvoiceID(id)
	if err != nil {
		return nil, err
	}
	rec := payload.ToRecord()
	update := bson.M{"$set": bson.M{
		"fileId":         rec.FileID,
		"fileName":       rec.FileName,
		"vendor":         rec.Vendor,
		"invoiceDetails": rec.InvoiceDetails,
		"lineItems":      rec.LineItems,
		"updatedAt":      s.now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.InvoiceRecord
	err = s.db.Collection(invoicesCollection).FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to update invoice %s: %w", id, err)
	}
	return &updated, nil
}

func (s *invoiceService) Delete(ctx context.Context, id string) error {
	oid, err := parseInvoiceID(id)
	if err != nil {
		return err
	}
	res, err := s.db.Collection(invoicesCollection).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete invoice %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// storeNow matches the millisecond precision of BSON dates so returned records equal stored ones.
func storeNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
