package simulator

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

type postView struct {
	ID       string `json:"id"`
	Unlocked bool   `json:"unlocked"`
}

func (s *Simulator) SimulateActivities(ctx context.Context) error {
	log.Printf("Starting activities simulation...")

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.simulateReads(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.simulateLikes(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.simulatePayments(ctx)
	}()

	// One concentrated burst against a single post, to watch many viewers
	// pay for the same thing at the same moment.
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
		case <-time.After(15 * time.Second):
			s.runPaymentStorm(ctx)
		}
	}()

	wg.Wait()
	return nil
}

func (s *Simulator) simulateReads(ctx context.Context) {
	log.Printf("Starting listing read simulation...")

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, viewer := range s.viewers {
				if rand.Float64() >= s.config.ReadFrequency/120.0 {
					continue
				}

				resp, err := s.makeRequest("GET", "/blogs", viewer.Token, nil)
				if err != nil {
					log.Printf("Debug: listing read failed for %s: %v", viewer.ID, err)
					continue
				}

				var listing []postView
				if err := json.Unmarshal(resp, &listing); err != nil {
					log.Printf("Debug: bad listing payload for %s: %v", viewer.ID, err)
					continue
				}

				locked, unlocked := 0, 0
				s.mu.RLock()
				for _, view := range listing {
					if view.Unlocked {
						unlocked++
					} else {
						locked++
					}
					// The server must never unlock a post the viewer has
					// not paid for.
					if view.Unlocked && !viewer.PaidPosts[view.ID] {
						log.Printf("GATING VIOLATION: post %s unlocked for %s without payment",
							view.ID, viewer.ID)
					}
				}
				s.mu.RUnlock()

				s.stats.mu.Lock()
				s.stats.TotalReads++
				s.stats.LockedReads += locked
				s.stats.UnlockedReads += unlocked
				s.stats.mu.Unlock()
			}
		}
	}
}

func (s *Simulator) simulateLikes(ctx context.Context) {
	log.Printf("Starting like simulation...")

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	zipf := rand.NewZipf(rand.New(rand.NewSource(time.Now().UnixNano())),
		s.config.ZipfS, 1, uint64(max(s.config.NumPosts, 1)))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, viewer := range s.viewers {
				if rand.Float64() >= s.config.LikeFrequency/120.0 {
					continue
				}

				postID := s.pickPost(zipf)
				if postID == "" {
					continue
				}

				data := map[string]interface{}{"postId": postID}
				if _, err := s.makeRequest("POST", "/blogs/like", viewer.Token, data); err != nil {
					log.Printf("Debug: like toggle failed for %s: %v", viewer.ID, err)
					continue
				}

				s.mu.Lock()
				viewer.Liked[postID] = !viewer.Liked[postID]
				s.mu.Unlock()

				s.stats.mu.Lock()
				s.stats.TotalLikes++
				s.stats.mu.Unlock()
			}
		}
	}
}

func (s *Simulator) simulatePayments(ctx context.Context) {
	log.Printf("Starting payment simulation...")

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	zipf := rand.NewZipf(rand.New(rand.NewSource(time.Now().UnixNano())),
		s.config.ZipfS, 1, uint64(max(s.config.NumPosts, 1)))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, viewer := range s.viewers {
				if rand.Float64() >= s.config.PaymentRate {
					continue
				}

				postID := s.pickPost(zipf)
				if postID == "" {
					continue
				}
				s.mu.RLock()
				alreadyPaid := viewer.PaidPosts[postID]
				s.mu.RUnlock()
				if alreadyPaid {
					continue
				}

				if err := s.completePayment(viewer, postID); err != nil {
					log.Printf("Debug: payment failed for %s on %s: %v", viewer.ID, postID, err)
				}
			}
		}
	}
}

// completePayment posts the success callback and retries once on a
// retryable failure, the way the real payment page would.
func (s *Simulator) completePayment(viewer *SimulatedViewer, postID string) error {
	data := map[string]interface{}{
		"postId":   postID,
		"amount":   500,
		"currency": "USD",
	}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if _, err = s.makeRequest("POST", "/payment/complete", viewer.Token, data); err == nil {
			s.mu.Lock()
			viewer.PaidPosts[postID] = true
			s.mu.Unlock()

			s.stats.mu.Lock()
			s.stats.TotalPayments++
			s.stats.mu.Unlock()
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return err
}

// runPaymentStorm fires many viewers at the same post simultaneously. Every
// payer must end up in the paid set; none of the grants may overwrite another.
func (s *Simulator) runPaymentStorm(ctx context.Context) {
	s.mu.RLock()
	if len(s.posts) == 0 {
		s.mu.RUnlock()
		return
	}
	target := s.posts[0]
	s.mu.RUnlock()

	stormSize := s.config.PaymentStormSize
	if stormSize > len(s.viewers) {
		stormSize = len(s.viewers)
	}
	log.Printf("Payment storm: %d viewers buying post %s concurrently...", stormSize, target)

	var wg sync.WaitGroup
	for i := 0; i < stormSize; i++ {
		viewer := s.viewers[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.completePayment(viewer, target); err != nil {
				log.Printf("Storm payment failed for %s: %v", viewer.ID, err)
			}
		}()
	}
	wg.Wait()

	// Every payer should now see the post unlocked.
	violations := 0
	for i := 0; i < stormSize; i++ {
		viewer := s.viewers[i]
		resp, err := s.makeRequest("GET", "/blogs", viewer.Token, nil)
		if err != nil {
			continue
		}
		var listing []postView
		if err := json.Unmarshal(resp, &listing); err != nil {
			continue
		}
		unlocked := false
		for _, view := range listing {
			if view.ID == target && view.Unlocked {
				unlocked = true
			}
		}
		if !unlocked {
			violations++
			log.Printf("STORM VIOLATION: %s paid for %s but still sees it locked", viewer.ID, target)
		}
	}
	log.Printf("Payment storm complete: %d/%d grants verified, %d lost",
		stormSize-violations, stormSize, violations)
}
