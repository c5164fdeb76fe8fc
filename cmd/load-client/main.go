// Small load client: registers (or reuses) the demo origin, then pushes a
// stream of tracked events through the SDK so a dashboard stream has
// something to show.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/veilstats/veil-analytics/pkg/client"
)

var pages = []string{"/", "/pricing", "/docs", "/blog", "/signup"}

func main() {
	endpoint := flag.String("endpoint", "http://localhost:8080", "server base URL")
	events := flag.Int("events", 50, "number of events to send")
	flag.Parse()

	token, err := demoToken(*endpoint)
	if err != nil {
		log.Fatalf("Failed to get demo origin: %v", err)
	}
	fmt.Printf("Using demo origin token %s...\n", token[:12])

	tracker, err := client.New(client.Config{
		Endpoint: *endpoint,
		Token:    token,
	})
	if err != nil {
		log.Fatalf("Failed to create tracker: %v", err)
	}

	for i := 0; i < *events; i++ {
		page := pages[rand.Intn(len(pages))]

		switch {
		case i%10 == 0:
			tracker.Session(page)
		case i%25 == 0:
			tracker.Conversion(page, float64(10+rand.Intn(90)), map[string]any{"plan": "pro"})
		default:
			tracker.Pageview(page)
		}

		time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := tracker.Close(ctx); err != nil {
		log.Fatalf("Failed to flush tracker: %v", err)
	}
	fmt.Printf("Sent %d events\n", *events)
}

func demoToken(endpoint string) (string, error) {
	resp, err := http.Get(endpoint + "/api/demo/origin")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}

	return body.Token, nil
}
