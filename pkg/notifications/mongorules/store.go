package mongorules

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
)

// DefaultCollection is the collection rules are read from unless overridden.
const DefaultCollection = "notification_rules"

// ErrInvalidRuleDocument is returned for documents that cannot be mapped to a rule.
var ErrInvalidRuleDocument = errors.New("invalid rule document")

// Store is a read-mostly notifications.RuleStore backed by MongoDB.
type Store struct {
	coll *mongo.Collection
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	collection string
}

// WithCollection overrides the rules collection name.
func WithCollection(name string) Option {
	return func(o *storeOptions) {
		if name != "" {
			o.collection = name
		}
	}
}

// New creates a store reading from db.
func New(db *mongo.Database, opts ...Option) *Store {
	o := storeOptions{collection: DefaultCollection}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{coll: db.Collection(o.collection)}
}

var _ notifications.RuleStore = (*Store)(nil)

// EnsureIndexes creates the lookup index used by ActiveRulesFor.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "school_id", Value: 1},
			{Key: "event_type", Value: 1},
			{Key: "active", Value: 1},
			{Key: "priority", Value: -1},
		},
	})
	if err != nil {
		return fmt.Errorf("create rule index: %w", err)
	}
	return nil
}

func (s *Store) ActiveRulesFor(ctx context.Context, schoolID, eventType string) ([]notifications.Rule, error) {
	filter := bson.D{
		{Key: "school_id", Value: schoolID},
		{Key: "event_type", Value: eventType},
		{Key: "active", Value: true},
	}
	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "priority", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find rules: %w", err)
	}

	var docs []ruleDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	rules := make([]notifications.Rule, 0, len(docs))
	for _, doc := range docs {
		r, err := doc.rule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	notifications.SortRules(rules)
	return rules, nil
}

// SaveRule upserts a rule by ID and returns the ID.
func (s *Store) SaveRule(ctx context.Context, r notifications.Rule) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	doc := newRuleDocument(r)
	_, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: r.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return "", fmt.Errorf("save rule: %w", err)
	}
	return r.ID, nil
}
