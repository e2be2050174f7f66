package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"inkgate/internal/middleware"
)

type SimConfig struct {
	NumViewers       int
	NumPosts         int
	SimulationTime   time.Duration
	LikeFrequency    float64 // like toggles per viewer per minute
	PaymentRate      float64 // chance per cycle that an unpaid viewer buys a post
	ReadFrequency    float64 // listing reads per viewer per minute
	ZipfS            float64
	ServerURL        string
	AdminViewerID    string
	PaymentStormSize int // concurrent payers aimed at one post during the storm phase
}

type SimulationStats struct {
	mu               sync.RWMutex
	StartTime        time.Time
	TotalRequests    int64
	SuccessRequests  int64
	FailedRequests   int64
	AverageLatency   time.Duration
	TotalLikes       int
	TotalPayments    int
	TotalReads       int
	LockedReads      int
	UnlockedReads    int
	RequestLatencies []time.Duration
}

// SimulatedViewer is one reader of the site, carrying its own token.
type SimulatedViewer struct {
	ID        string
	Token     string
	PaidPosts map[string]bool
	Liked     map[string]bool
}

type Simulator struct {
	config  SimConfig
	stats   *SimulationStats
	viewers []*SimulatedViewer
	posts   []string
	client  *http.Client
	mu      sync.RWMutex
}

func NewSimulator(config SimConfig) *Simulator {
	return &Simulator{
		config: config,
		stats: &SimulationStats{
			StartTime:        time.Now(),
			RequestLatencies: make([]time.Duration, 0),
		},
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *Simulator) Run(ctx context.Context) error {
	log.Printf("Starting paywall simulation...")

	if err := s.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %v", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.SimulateActivities(ctx); err != nil {
			log.Printf("Activities simulation error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.collectMetrics(ctx)
	}()

	wg.Wait()
	return nil
}

func (s *Simulator) initialize(ctx context.Context) error {
	log.Printf("Starting initialization...")

	// Phase 1: Mint viewer identities. Tokens are self-issued because the
	// simulator shares the server's signing secret in test environments.
	log.Printf("Phase 1: Minting %d viewer tokens...", s.config.NumViewers)
	s.viewers = make([]*SimulatedViewer, 0, s.config.NumViewers)
	for i := 0; i < s.config.NumViewers; i++ {
		viewerID := fmt.Sprintf("viewer_%d", i)
		token, err := middleware.GenerateToken(viewerID)
		if err != nil {
			return fmt.Errorf("failed to mint token for %s: %v", viewerID, err)
		}
		s.viewers = append(s.viewers, &SimulatedViewer{
			ID:        viewerID,
			Token:     token,
			PaidPosts: make(map[string]bool),
			Liked:     make(map[string]bool),
		})
	}

	// Phase 2: Publish the premium catalogue as the admin author.
	log.Printf("Phase 2: Publishing %d posts...", s.config.NumPosts)
	if err := s.publishPosts(ctx); err != nil {
		return fmt.Errorf("failed to publish posts: %v", err)
	}

	log.Printf("Initialization completed successfully")
	return nil
}

func (s *Simulator) publishPosts(ctx context.Context) error {
	adminToken, err := middleware.GenerateToken(s.config.AdminViewerID)
	if err != nil {
		return fmt.Errorf("failed to mint admin token: %v", err)
	}

	s.posts = make([]string, 0, s.config.NumPosts)
	topics := []string{
		"engineering", "design", "lifecycle", "pricing", "retention",
		"launch", "interview", "postmortem", "roadmap", "teardown",
	}

	for i := 0; i < s.config.NumPosts; i++ {
		topic := topics[i%len(topics)]
		data := map[string]interface{}{
			"title":   fmt.Sprintf("Deep dive %d: %s", i, topic),
			"content": fmt.Sprintf("<p>The full %s story, issue %d. Paying readers only.</p>", topic, i),
		}

		resp, err := s.makeRequest("POST", "/blogs", adminToken, data)
		if err != nil {
			log.Printf("Failed to publish post %d: %v", i, err)
			continue
		}

		var result struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(resp, &result); err != nil || result.ID == "" {
			log.Printf("Failed to parse publish response for post %d: %v", i, err)
			continue
		}
		s.posts = append(s.posts, result.ID)

		time.Sleep(50 * time.Millisecond)
	}

	log.Printf("Published %d posts", len(s.posts))
	return nil
}

// pickPost skews reads toward the head of the catalogue with a Zipf draw,
// matching the few-posts-get-most-traffic shape of a real blog.
func (s *Simulator) pickPost(zipf *rand.Zipf) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.posts) == 0 {
		return ""
	}
	return s.posts[int(zipf.Uint64())%len(s.posts)]
}

// makeRequest performs one HTTP call with the viewer's bearer token and
// records its latency.
func (s *Simulator) makeRequest(method, endpoint, token string, data interface{}) ([]byte, error) {
	var body []byte
	var err error

	if data != nil {
		body, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequest(method, s.config.ServerURL+endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	s.recordRequestMetrics(start, err)

	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("request failed with status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (s *Simulator) recordRequestMetrics(start time.Time, err error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	latency := time.Since(start)
	s.stats.TotalRequests++
	s.stats.RequestLatencies = append(s.stats.RequestLatencies, latency)

	if err != nil {
		s.stats.FailedRequests++
	} else {
		s.stats.SuccessRequests++
	}

	totalLatency := s.stats.AverageLatency * time.Duration(s.stats.TotalRequests-1)
	s.stats.AverageLatency = (totalLatency + latency) / time.Duration(s.stats.TotalRequests)
}

func (s *Simulator) collectMetrics(ctx context.Context) {
	log.Printf("Starting metrics collection...")
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.stats.mu.RLock()
			elapsed := time.Since(s.stats.StartTime)
			requestRate := float64(s.stats.TotalRequests) / elapsed.Seconds()
			successRate := 0.0
			if s.stats.TotalRequests > 0 {
				successRate = float64(s.stats.SuccessRequests) / float64(s.stats.TotalRequests) * 100
			}

			log.Printf("\nSimulation Metrics (%.1f seconds elapsed):", elapsed.Seconds())
			log.Printf("- Request Rate: %.2f req/sec", requestRate)
			log.Printf("- Success Rate: %.1f%%", successRate)
			log.Printf("- Average Latency: %v", s.stats.AverageLatency)
			log.Printf("- Like Toggles: %d", s.stats.TotalLikes)
			log.Printf("- Payments Completed: %d", s.stats.TotalPayments)
			log.Printf("- Listing Reads: %d (locked views: %d, unlocked views: %d)",
				s.stats.TotalReads, s.stats.LockedReads, s.stats.UnlockedReads)
			log.Printf("- Failed Requests: %d", s.stats.FailedRequests)

			s.stats.mu.RUnlock()
		}
	}
}

// SimulationMetrics holds the metrics of the simulation
type SimulationMetrics struct {
	TotalViewers      int
	TotalPosts        int
	TotalLikes        int
	TotalPayments     int
	TotalReads        int
	AverageLatency    time.Duration
	ErrorCount        int
	RequestsPerSecond float64
}

// GetMetrics returns the current simulation metrics
func (s *Simulator) GetMetrics() SimulationMetrics {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()

	elapsed := time.Since(s.stats.StartTime)
	requestRate := float64(s.stats.TotalRequests) / elapsed.Seconds()

	return SimulationMetrics{
		TotalViewers:      len(s.viewers),
		TotalPosts:        len(s.posts),
		TotalLikes:        s.stats.TotalLikes,
		TotalPayments:     s.stats.TotalPayments,
		TotalReads:        s.stats.TotalReads,
		AverageLatency:    s.stats.AverageLatency,
		ErrorCount:        int(s.stats.FailedRequests),
		RequestsPerSecond: requestRate,
	}
}
