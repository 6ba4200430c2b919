// internal/app/store/jobs/jobstore.go

// Package jobstore records every dispatched submission job. The records
// platform owns job outcomes (delivered out of band by email); this store
// is the uploader-side audit trail and powers the job-history view.
package jobstore

import (
	"context"
	"time"

	"github.com/vespahq/uploadhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const collection = "upload_jobs"

// Record is one dispatched job as persisted.
type Record struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	JobID          string             `bson:"job_id" json:"job_id"`
	Status         models.JobStatus   `bson:"status" json:"status"`
	UploadType     models.UploadType  `bson:"upload_type" json:"upload_type"`
	UserID         string             `bson:"user_id" json:"user_id"`
	UserEmail      string             `bson:"user_email" json:"user_email"`
	OrganizationID string             `bson:"organization_id" json:"organization_id"`
	ActingForOther bool               `bson:"acting_for_other" json:"acting_for_other"`
	TotalRows      int                `bson:"total_rows" json:"total_rows"`
	NotifyEmail    string             `bson:"notify_email" json:"notify_email"`

	// PasswordHash is a bcrypt hash of the universal password option, kept
	// so support can confirm one was supplied without storing plaintext.
	PasswordHash string    `bson:"password_hash,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// Store provides access to the upload_jobs collection.
type Store struct {
	c *mongo.Collection
}

// New creates a Store for the given database.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(collection)}
}

// Insert persists a dispatched job. universalPassword may be empty; when
// set, only its bcrypt hash is written.
func (s *Store) Insert(ctx context.Context, rec Record, universalPassword string) error {
	if universalPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(universalPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		rec.PasswordHash = string(hash)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.c.InsertOne(ctx, rec)
	return err
}

// ListByUser returns the caller's dispatched jobs, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int64) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EnsureIndexes creates the indexes the job queries rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(collection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "job_id", Value: 1}}},
	})
	return err
}
