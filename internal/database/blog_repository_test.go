package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"inkgate/internal/models"
)

// rawField marshals a wrapper document and plucks one field, producing the
// same RawValue the driver would hand us when decoding stored data.
func rawField(t *testing.T, value interface{}) bson.RawValue {
	t.Helper()
	data, err := bson.Marshal(bson.M{"likes": value})
	require.NoError(t, err)
	return bson.Raw(data).Lookup("likes")
}

func TestNormalizeLikesMapping(t *testing.T) {
	raw := rawField(t, bson.M{"u1": true, "u2": false})

	likes := NormalizeLikes(raw)
	assert.Equal(t, map[string]bool{"u1": true, "u2": false}, likes)
}

func TestNormalizeLikesLegacyCounter(t *testing.T) {
	// Legacy documents stored a plain numeric counter. It carries no viewer
	// identities, so it normalizes to an empty mapping rather than a guess.
	for _, legacy := range []interface{}{int32(7), int64(7), float64(7)} {
		likes := NormalizeLikes(rawField(t, legacy))
		assert.NotNil(t, likes)
		assert.Empty(t, likes)
	}
}

func TestNormalizeLikesMissing(t *testing.T) {
	likes := NormalizeLikes(bson.RawValue{})
	assert.NotNil(t, likes)
	assert.Empty(t, likes)
}

func TestDocumentToModelDefaults(t *testing.T) {
	post := DocumentToModel(&BlogDocument{
		ID:    "a1",
		Title: "Untitled draft",
	})

	assert.Nil(t, post.CreatedAt)
	assert.NotNil(t, post.Likes)
	assert.Empty(t, post.Likes)
	assert.NotNil(t, post.PaidUsers)
	assert.Empty(t, post.PaidUsers)
	assert.Equal(t, models.PlaceholderImageURL, post.ImageURL)
}

func TestModelDocumentRoundTrip(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	post := &models.BlogPost{
		ID:        "a1",
		Title:     "Launch notes",
		Content:   "<p>hello</p>",
		ImageURL:  "https://cdn.example.com/launch.png",
		CreatedAt: &created,
		Likes:     map[string]bool{"u9": true},
		PaidUsers: []string{"u9"},
	}

	got := DocumentToModel(ModelToDocument(post))
	assert.Equal(t, post.ID, got.ID)
	assert.Equal(t, post.Title, got.Title)
	assert.Equal(t, post.Content, got.Content)
	assert.Equal(t, post.ImageURL, got.ImageURL)
	assert.Equal(t, post.Likes, got.Likes)
	assert.Equal(t, post.PaidUsers, got.PaidUsers)
}
