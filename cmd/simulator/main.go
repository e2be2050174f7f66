package main

import (
	"context"
	"log"
	"os"
	"time"

	"inkgate/internal/middleware"
	"inkgate/simulator"
)

func main() {
	// The simulator mints its own viewer tokens, so it needs the same
	// signing secret as the server under test.
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		middleware.SetSecret(secret)
	}

	config := simulator.SimConfig{
		NumViewers:       50,
		NumPosts:         20,
		SimulationTime:   5 * time.Minute,
		LikeFrequency:    30.0,
		PaymentRate:      0.02,
		ReadFrequency:    60.0,
		ZipfS:            1.07,
		ServerURL:        "http://localhost:8080",
		AdminViewerID:    "admin_sim",
		PaymentStormSize: 25,
	}

	sim := simulator.NewSimulator(config)
	ctx, cancel := context.WithTimeout(context.Background(), config.SimulationTime)
	defer cancel()

	log.Printf("Starting simulation with configuration:")
	log.Printf("- Server URL: %s", config.ServerURL)
	log.Printf("- Number of viewers: %d", config.NumViewers)
	log.Printf("- Number of posts: %d", config.NumPosts)
	log.Printf("- Simulation time: %v", config.SimulationTime)
	log.Printf("- Like frequency: %.2f toggles/viewer/minute", config.LikeFrequency)
	log.Printf("- Read frequency: %.2f reads/viewer/minute", config.ReadFrequency)
	log.Printf("- Payment rate: %.2f per cycle", config.PaymentRate)
	log.Printf("- Payment storm size: %d", config.PaymentStormSize)
	log.Printf("- Zipf parameter: %.2f", config.ZipfS)

	if err := sim.Run(ctx); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	metrics := sim.GetMetrics()
	log.Printf("\nSimulation completed. Final metrics:")
	log.Printf("- Total viewers: %d", metrics.TotalViewers)
	log.Printf("- Total posts: %d", metrics.TotalPosts)
	log.Printf("- Like toggles: %d", metrics.TotalLikes)
	log.Printf("- Payments completed: %d", metrics.TotalPayments)
	log.Printf("- Listing reads: %d", metrics.TotalReads)
	log.Printf("- Error count: %d", metrics.ErrorCount)
	log.Printf("- Requests per second: %.2f", metrics.RequestsPerSecond)
}
