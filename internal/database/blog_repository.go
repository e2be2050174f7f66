// internal/database/blog_repository.go
package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"inkgate/internal/models"
	"inkgate/internal/utils"
)

// BlogDocument represents the MongoDB schema for a blog post.
//
// Likes is kept raw because two shapes exist in the wild: the canonical
// per-viewer mapping and a legacy plain counter. Normalization happens in
// DocumentToModel, never in callers.
type BlogDocument struct {
	ID        string        `bson:"_id"`
	Title     string        `bson:"title"`
	Content   string        `bson:"content"`
	ImageURL  string        `bson:"imageurl,omitempty"`
	CreatedAt *time.Time    `bson:"createdat,omitempty"`
	Likes     bson.RawValue `bson:"likes,omitempty"`
	PaidUsers []string      `bson:"paidusers,omitempty"`
}

// ModelToDocument converts a BlogPost model to a MongoDB document.
func ModelToDocument(post *models.BlogPost) *BlogDocument {
	likesDoc := bson.M{}
	for viewerID, liked := range post.Likes {
		likesDoc[viewerID] = liked
	}
	likesType, likesData, err := bson.MarshalValue(likesDoc)
	if err != nil {
		// bson.M of string->bool cannot fail to marshal; keep the zero value
		// (treated as an empty mapping) if it somehow does.
		slog.Warn("failed to marshal like mapping", "post", post.ID, "error", err)
	}

	doc := &BlogDocument{
		ID:        post.ID,
		Title:     post.Title,
		Content:   post.Content,
		ImageURL:  post.ImageURL,
		CreatedAt: post.CreatedAt,
		Likes:     bson.RawValue{Type: likesType, Value: likesData},
		PaidUsers: post.PaidUsers,
	}
	if doc.PaidUsers == nil {
		doc.PaidUsers = []string{}
	}
	return doc
}

// DocumentToModel converts a MongoDB document to a BlogPost model, applying
// the normalization rules: missing createdAt stays nil, missing or legacy
// likes become an empty mapping, missing paidUsers become an empty sequence,
// and a missing image falls back to the placeholder. Shape surprises are
// normalized, never errors.
func DocumentToModel(doc *BlogDocument) *models.BlogPost {
	post := &models.BlogPost{
		ID:        doc.ID,
		Title:     doc.Title,
		Content:   doc.Content,
		ImageURL:  doc.ImageURL,
		CreatedAt: doc.CreatedAt,
		Likes:     NormalizeLikes(doc.Likes),
		PaidUsers: doc.PaidUsers,
	}
	if post.ImageURL == "" {
		post.ImageURL = models.PlaceholderImageURL
	}
	if post.PaidUsers == nil {
		post.PaidUsers = []string{}
	}
	return post
}

// NormalizeLikes converts whatever is stored under "likes" into the canonical
// per-viewer mapping. A legacy numeric counter carries no viewer identities,
// so it normalizes to an empty mapping; the migration cost is accepted once
// instead of every caller guessing the shape.
func NormalizeLikes(raw bson.RawValue) map[string]bool {
	if raw.Type != bson.TypeEmbeddedDocument {
		return map[string]bool{}
	}
	likes := map[string]bool{}
	if err := raw.Unmarshal(&likes); err != nil {
		slog.Warn("unreadable like mapping, treating as empty", "error", err)
		return map[string]bool{}
	}
	return likes
}

// CreateBlog inserts a new post. The document id and creation timestamp must
// already be assigned; likes and paidUsers start empty.
func (m *MongoDB) CreateBlog(ctx context.Context, post *models.BlogPost) error {
	_, err := m.Blogs.InsertOne(ctx, ModelToDocument(post))
	if mongo.IsDuplicateKeyError(err) {
		return utils.NewAppError(utils.ErrDuplicate, "Post already exists", err)
	}
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "Failed to save post", err)
	}
	return nil
}

// GetBlog retrieves a post by its ID.
func (m *MongoDB) GetBlog(ctx context.Context, id string) (*models.BlogPost, error) {
	var doc BlogDocument

	err := m.Blogs.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewPostNotFoundError(id)
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "Failed to load post", err)
	}

	return DocumentToModel(&doc), nil
}

// GetAllBlogs retrieves every post in the collection, normalized. No order is
// promised; display ordering is the caller's concern.
func (m *MongoDB) GetAllBlogs(ctx context.Context) ([]*models.BlogPost, error) {
	cursor, err := m.Blogs.Find(ctx, bson.M{})
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "Failed to query posts", err)
	}
	defer cursor.Close(ctx)

	posts := make([]*models.BlogPost, 0)
	for cursor.Next(ctx) {
		var doc BlogDocument
		if err := cursor.Decode(&doc); err != nil {
			slog.Warn("skipping undecodable blog document", "error", err)
			continue
		}
		posts = append(posts, DocumentToModel(&doc))
	}

	if err := cursor.Err(); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "Cursor iteration failed", err)
	}
	return posts, nil
}

// ToggleLike flips the viewer's like flag on a post with a partial field
// update, leaving every other field and every other viewer's entry untouched.
// Returns the new flag value.
//
// The read and the write are not one atomic step; conflicting writers for the
// same (post, viewer) pair can double-toggle. Acceptable for a like flag.
func (m *MongoDB) ToggleLike(ctx context.Context, postID string, viewerID string) (bool, error) {
	if viewerID == "" {
		return false, utils.NewUnauthorizedError("like requires an authenticated viewer")
	}
	if strings.ContainsAny(viewerID, ".$") {
		// Dots and dollars are field-path metacharacters in Mongo.
		return false, utils.NewAppError(utils.ErrInvalidInput, "Invalid viewer identity", nil)
	}

	var doc struct {
		Likes bson.RawValue `bson:"likes,omitempty"`
	}
	opts := options.FindOne().SetProjection(bson.M{"likes": 1})
	err := m.Blogs.FindOne(ctx, bson.M{"_id": postID}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return false, utils.NewPostNotFoundError(postID)
	}
	if err != nil {
		return false, utils.NewAppError(utils.ErrDatabase, "Failed to read like state", err)
	}

	liked := !NormalizeLikes(doc.Likes)[viewerID]
	update := bson.M{"$set": bson.M{fmt.Sprintf("likes.%s", viewerID): liked}}

	result, err := m.Blogs.UpdateOne(ctx, bson.M{"_id": postID}, update)
	if err != nil {
		return false, utils.NewAppError(utils.ErrDatabase, "Failed to write like state", err)
	}
	if result.MatchedCount == 0 {
		return false, utils.NewPostNotFoundError(postID)
	}
	return liked, nil
}

// AddPaidUser grants the viewer access to a post via the store's atomic
// set-union. $addToSet keeps concurrent grants for different viewers from
// overwriting each other and makes replays harmless.
func (m *MongoDB) AddPaidUser(ctx context.Context, postID string, viewerID string) error {
	update := bson.M{"$addToSet": bson.M{"paidusers": viewerID}}

	result, err := m.Blogs.UpdateOne(ctx, bson.M{"_id": postID}, update)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "Failed to update paid users", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewPostNotFoundError(postID)
	}
	return nil
}
