package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkgate/internal/access"
	"inkgate/internal/engine"
	"inkgate/internal/middleware"
	"inkgate/internal/utils"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	middleware.SetSecret("handlers-test-secret")
	metrics := utils.NewMetricsCollector()
	system := actor.NewActorSystem()
	blogEngine := engine.NewEngine(system, metrics, nil)
	return NewServer(system, blogEngine, metrics, nil, nil, nil, nil)
}

func authedRequest(t *testing.T, method, target, viewerID string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if viewerID != "" {
		token, err := middleware.GenerateToken(viewerID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestIntegrationFlow(t *testing.T) {
	server := newTestServer(t)

	blogsHandler := middleware.WithOptionalViewer(server.HandleBlogs())
	likeHandler := middleware.RequireViewer(server.HandleLike())
	paymentHandler := middleware.RequireViewer(server.HandlePaymentComplete())

	// Step 1: admin a1 publishes a post.
	w1 := httptest.NewRecorder()
	blogsHandler.ServeHTTP(w1, authedRequest(t, "POST", "/blogs", "a1", CreateBlogRequest{
		Title:   "Shipping the paywall",
		Content: "<p>The long form story behind the launch.</p>",
	}))
	require.Equal(t, http.StatusOK, w1.Code)

	var created access.PostView
	require.NoError(t, json.Unmarshal(w1.Body.Bytes(), &created))
	postID := created.ID
	require.NotEmpty(t, postID)
	t.Logf("Post created with ID: %s", postID)

	// Step 2: viewer u2 sees the locked listing with the prompt in place of
	// content, but still gets the excerpt.
	w2 := httptest.NewRecorder()
	blogsHandler.ServeHTTP(w2, authedRequest(t, "GET", "/blogs", "u2", nil))
	require.Equal(t, http.StatusOK, w2.Code)

	var listing []access.PostView
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &listing))
	require.Len(t, listing, 1)
	assert.False(t, listing[0].Unlocked)
	assert.Empty(t, listing[0].Content)
	assert.Equal(t, access.PaymentPrompt, listing[0].PaymentPrompt)
	assert.Contains(t, listing[0].Excerpt, "long form story")

	// Step 3: u2 likes the post.
	w3 := httptest.NewRecorder()
	likeHandler.ServeHTTP(w3, authedRequest(t, "POST", "/blogs/like", "u2", LikeRequest{PostID: postID}))
	require.Equal(t, http.StatusOK, w3.Code)

	var liked access.PostView
	require.NoError(t, json.Unmarshal(w3.Body.Bytes(), &liked))
	assert.Equal(t, 1, liked.LikeCount)
	assert.True(t, liked.LikedByViewer)

	// Step 4: u2 completes a payment and the post unlocks in the response.
	w4 := httptest.NewRecorder()
	paymentHandler.ServeHTTP(w4, authedRequest(t, "POST", "/payment/complete", "u2", PaymentCompleteRequest{
		PostID:   postID,
		Amount:   500,
		Currency: "USD",
	}))
	require.Equal(t, http.StatusOK, w4.Code)

	var paid PaymentCompleteResponse
	require.NoError(t, json.Unmarshal(w4.Body.Bytes(), &paid))
	assert.NotEmpty(t, paid.ReceiptID)
	assert.True(t, paid.Post.Unlocked)
	assert.Equal(t, "<p>The long form story behind the launch.</p>", paid.Post.Content)

	// Step 5: the listing now renders unlocked for u2 but stays locked for
	// everyone else.
	w5 := httptest.NewRecorder()
	blogsHandler.ServeHTTP(w5, authedRequest(t, "GET", "/blogs", "u2", nil))
	require.Equal(t, http.StatusOK, w5.Code)
	require.NoError(t, json.Unmarshal(w5.Body.Bytes(), &listing))
	require.Len(t, listing, 1)
	assert.True(t, listing[0].Unlocked)

	w6 := httptest.NewRecorder()
	blogsHandler.ServeHTTP(w6, authedRequest(t, "GET", "/blogs", "u9", nil))
	require.Equal(t, http.StatusOK, w6.Code)
	require.NoError(t, json.Unmarshal(w6.Body.Bytes(), &listing))
	require.Len(t, listing, 1)
	assert.False(t, listing[0].Unlocked)
}

func TestAnonymousListingStaysLocked(t *testing.T) {
	server := newTestServer(t)
	blogsHandler := middleware.WithOptionalViewer(server.HandleBlogs())

	w := httptest.NewRecorder()
	blogsHandler.ServeHTTP(w, authedRequest(t, "POST", "/blogs", "a1", CreateBlogRequest{
		Title:   "Members only",
		Content: "Secret body",
	}))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	blogsHandler.ServeHTTP(w, authedRequest(t, "GET", "/blogs", "", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var listing []access.PostView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	require.Len(t, listing, 1)
	assert.False(t, listing[0].Unlocked)
	assert.Empty(t, listing[0].Content)
}

func TestLikeRequiresAuthentication(t *testing.T) {
	server := newTestServer(t)
	likeHandler := middleware.RequireViewer(server.HandleLike())

	w := httptest.NewRecorder()
	likeHandler.ServeHTTP(w, authedRequest(t, "POST", "/blogs/like", "", LikeRequest{PostID: "whatever"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLikeToggleTwiceRestoresCount(t *testing.T) {
	server := newTestServer(t)
	blogsHandler := middleware.WithOptionalViewer(server.HandleBlogs())
	likeHandler := middleware.RequireViewer(server.HandleLike())

	w := httptest.NewRecorder()
	blogsHandler.ServeHTTP(w, authedRequest(t, "POST", "/blogs", "a1", CreateBlogRequest{
		Title:   "Toggle test",
		Content: "Body",
	}))
	require.Equal(t, http.StatusOK, w.Code)
	var created access.PostView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	var view access.PostView
	for i := 0; i < 2; i++ {
		w = httptest.NewRecorder()
		likeHandler.ServeHTTP(w, authedRequest(t, "POST", "/blogs/like", "u2", LikeRequest{PostID: created.ID}))
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	}
	assert.Equal(t, 0, view.LikeCount)
	assert.False(t, view.LikedByViewer)
}

func TestPaymentForUnknownPostIsNotFound(t *testing.T) {
	server := newTestServer(t)
	paymentHandler := middleware.RequireViewer(server.HandlePaymentComplete())

	w := httptest.NewRecorder()
	paymentHandler.ServeHTTP(w, authedRequest(t, "POST", "/payment/complete", "u2", PaymentCompleteRequest{
		PostID:   "missing-post",
		Amount:   500,
		Currency: "USD",
	}))
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, utils.ErrNotFound, body["code"])
}

func TestPaymentReceiptsRequireAuthentication(t *testing.T) {
	server := newTestServer(t)
	handler := middleware.RequireViewer(server.HandlePaymentReceipts())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(t, "GET", "/payment/receipts", "", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentReceiptsEmptyWithoutStore(t *testing.T) {
	server := newTestServer(t)
	handler := middleware.RequireViewer(server.HandlePaymentReceipts())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(t, "GET", "/payment/receipts", "u2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var receipts []ReceiptView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receipts))
	assert.Empty(t, receipts)
}

func TestImageEndpointUnavailableWithoutStorage(t *testing.T) {
	server := newTestServer(t)
	handler := server.HandleBlogImage()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/blogs/image", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// Image removal degrades the same way when no storage is configured.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("DELETE", "/blogs/image?key=posts/a.png", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
