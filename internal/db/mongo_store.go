package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ad/go-telegram-onboarding/internal/fsm"
	"github.com/ad/go-telegram-onboarding/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const usersCollection = "users"

// ConnectMongo opens a client and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	log.Printf("[STORE] Connected to MongoDB database %s", dbName)
	return client, client.Database(dbName), nil
}

type mongoScreenshot struct {
	FileID     string    `bson:"file_id"`
	FileName   string    `bson:"file_name"`
	UploadedAt time.Time `bson:"uploaded_at"`
}

type mongoProgress struct {
	ID              int64              `bson:"_id"`
	Username        string             `bson:"username"`
	FirstName       string             `bson:"first_name"`
	CurrentStep     int                `bson:"current_step"`
	StepsCompleted  map[string]bool    `bson:"steps_completed"`
	BEP20Address    *string            `bson:"bep20_address"`
	SocialUsernames map[string]*string `bson:"social_usernames"`
	Screenshots     []mongoScreenshot  `bson:"screenshots"`
	CreatedAt       time.Time          `bson:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at"`
}

func (d *mongoProgress) toModel() *models.UserProgress {
	progress := &models.UserProgress{
		UserID:         d.ID,
		DisplayName:    d.FirstName,
		Handle:         d.Username,
		CurrentStep:    d.CurrentStep,
		StepsCompleted: map[int]bool{},
		SocialHandles:  map[models.SocialPlatform]string{},
		Screenshots:    make([]models.Screenshot, 0, len(d.Screenshots)),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	for step := fsm.StepDownloadApp; step <= fsm.StepFinalConfirm; step++ {
		if done, ok := d.StepsCompleted[stepKey(step)]; ok {
			progress.StepsCompleted[step] = done
		}
	}
	for platform, handle := range d.SocialUsernames {
		if handle != nil {
			progress.SocialHandles[models.SocialPlatform(platform)] = *handle
		}
	}
	if d.BEP20Address != nil {
		progress.WalletAddress = *d.BEP20Address
	}
	for _, s := range d.Screenshots {
		progress.Screenshots = append(progress.Screenshots, models.Screenshot{
			AssetID:    s.FileID,
			FileName:   s.FileName,
			UploadedAt: s.UploadedAt,
		})
	}
	return progress
}

// MongoProgressStore keeps one document per user in the users collection.
type MongoProgressStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoProgressStore(database *mongo.Database) *MongoProgressStore {
	return &MongoProgressStore{
		collection: database.Collection(usersCollection),
		now:        time.Now,
	}
}

// EnsureIndexes creates the index used by Stats.
func (s *MongoProgressStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "current_step", Value: 1}},
	})
	return err
}

func (s *MongoProgressStore) Get(ctx context.Context, id int64) (*models.UserProgress, error) {
	var doc mongoProgress
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoProgressStore) Create(ctx context.Context, id int64, displayName, handle string) (bool, error) {
	now := s.now()
	doc := mongoProgress{
		ID:             id,
		Username:       handle,
		FirstName:      displayName,
		CurrentStep:    fsm.StepDownloadApp,
		StepsCompleted: map[string]bool{},
		SocialUsernames: map[string]*string{
			string(models.PlatformTwitter):   nil,
			string(models.PlatformInstagram): nil,
		},
		Screenshots: []mongoScreenshot{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *MongoProgressStore) AdvanceStep(ctx context.Context, id int64, step int, completed bool) error {
	return s.applyStep(ctx, id, models.StepChange{Step: step, Completed: completed}, false)
}

func (s *MongoProgressStore) ApplyStep(ctx context.Context, id int64, change models.StepChange) error {
	return s.applyStep(ctx, id, change, true)
}

func (s *MongoProgressStore) applyStep(ctx context.Context, id int64, change models.StepChange, conditional bool) error {
	nextStep := change.Step
	if change.Completed {
		nextStep = change.Step + 1
	}

	set := bson.M{
		"current_step": nextStep,
		"updated_at":   s.now(),
	}
	set["steps_completed."+stepKey(change.Step)] = change.Completed
	if change.Platform != "" {
		set["social_usernames."+string(change.Platform)] = change.Handle
	}
	if change.WalletAddress != "" {
		set["bep20_address"] = change.WalletAddress
	}

	filter := bson.M{"_id": id}
	if conditional {
		filter["current_step"] = change.Step
	}
	return s.updateOne(ctx, id, filter, bson.M{"$set": set}, conditional)
}

func (s *MongoProgressStore) SetSocialHandle(ctx context.Context, id int64, platform models.SocialPlatform, value string) error {
	if !platform.IsValid() {
		return fmt.Errorf("unknown social platform %q", platform)
	}
	set := bson.M{"updated_at": s.now()}
	set["social_usernames."+string(platform)] = value
	return s.updateOne(ctx, id, bson.M{"_id": id}, bson.M{"$set": set}, false)
}

func (s *MongoProgressStore) SetWalletAddress(ctx context.Context, id int64, value string) error {
	return s.updateOne(ctx, id, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"bep20_address": value,
		"updated_at":    s.now(),
	}}, false)
}

func (s *MongoProgressStore) AppendScreenshot(ctx context.Context, id int64, assetID, fileName string) error {
	now := s.now()
	return s.updateOne(ctx, id, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"screenshots": mongoScreenshot{FileID: assetID, FileName: fileName, UploadedAt: now}},
		"$set":  bson.M{"updated_at": now},
	}, false)
}

// Reset returns the user to the first step. Screenshots are kept.
func (s *MongoProgressStore) Reset(ctx context.Context, id int64) error {
	return s.updateOne(ctx, id, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"current_step":    fsm.StepDownloadApp,
		"steps_completed": bson.M{},
		"social_usernames": bson.M{
			string(models.PlatformTwitter):   nil,
			string(models.PlatformInstagram): nil,
		},
		"bep20_address": nil,
		"updated_at":    s.now(),
	}}, false)
}

func (s *MongoProgressStore) Stats(ctx context.Context) (*models.Stats, error) {
	total, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	completed, err := s.collection.CountDocuments(ctx, bson.M{"current_step": bson.M{"$gte": fsm.StepComplete}})
	if err != nil {
		return nil, err
	}
	return models.NewStats(total, completed), nil
}

// updateOne counts matched documents rather than modified ones so a retried
// write that changes nothing still succeeds.
func (s *MongoProgressStore) updateOne(ctx context.Context, id int64, filter, update bson.M, conditional bool) error {
	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}
	if !conditional {
		return ErrNotFound
	}

	count, err := s.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStepConflict
}

func stepKey(step int) string {
	return fmt.Sprintf("step_%d", step)
}
