// Command smoke exercises a running server: it times cached reads and races
// concurrent seat locks to show that exactly one client wins each seat.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
)

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     json.RawMessage `json:"errors"`
}

type CacheTestResult struct {
	Endpoint     string        `json:"endpoint"`
	CacheStatus  string        `json:"cache_status"`
	ResponseTime time.Duration `json:"response_time"`
	DataSize     int           `json:"data_size"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
}

type LockRaceResult struct {
	SeatID    string        `json:"seat_id"`
	Clients   int           `json:"clients"`
	Winners   int           `json:"winners"`
	Conflicts int           `json:"conflicts"`
	Other     map[int]int   `json:"other_statuses,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

type SmokeSuite struct {
	BaseURL string
	client  *http.Client
	Cache   []CacheTestResult `json:"cache"`
	Races   []LockRaceResult  `json:"races"`
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080/api/v1", "API base URL")
	clients := flag.IntP("clients", "c", 20, "concurrent clients per seat race")
	races := flag.IntP("races", "r", 3, "number of seats to race for")
	password := flag.String("password", "qwerty", "password for the throwaway accounts")
	report := flag.StringP("output", "o", "", "write a JSON report to this file")
	flag.Parse()

	suite := &SmokeSuite{
		BaseURL: *baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}

	fmt.Println("🧪 Starting smoke run against", suite.BaseURL)
	fmt.Println("===================================")

	eventID, err := suite.firstBookableEvent()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	fmt.Printf("✅ Using event %s\n", eventID)

	suite.runCacheChecks(eventID)

	tokens, err := suite.registerClients(*clients, *password)
	if err != nil {
		log.Fatalf("❌ registering clients: %v", err)
	}

	seatIDs, err := suite.availableSeats(eventID, *races)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	for _, seatID := range seatIDs {
		suite.Races = append(suite.Races, suite.raceForSeat(eventID, seatID, tokens))
	}

	if !suite.generateReport(*report) {
		os.Exit(1)
	}
	fmt.Println("\n🎉 Smoke run complete!")
}

func (s *SmokeSuite) do(method, path, token string, body interface{}) (int, *envelope, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.BaseURL+path, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, time.Since(start), err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return resp.StatusCode, nil, elapsed, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return resp.StatusCode, nil, elapsed, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return resp.StatusCode, &env, elapsed, nil
}

func (s *SmokeSuite) firstBookableEvent() (string, error) {
	status, env, _, err := s.do(http.MethodGet, "/events?page=1&limit=20&status=published", "", nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("listing events: HTTP %d", status)
	}

	var page struct {
		Events []struct {
			ID       string `json:"id"`
			Bookable bool   `json:"bookable"`
		} `json:"events"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		return "", err
	}
	for _, e := range page.Events {
		if e.Bookable {
			return e.ID, nil
		}
	}
	return "", fmt.Errorf("no bookable event found, run cmd/seed first")
}

// runCacheChecks requests each endpoint twice; the second read should be
// served from Redis.
func (s *SmokeSuite) runCacheChecks(eventID string) {
	endpoints := []struct {
		name string
		path string
	}{
		{"Event List", "/events?page=1&limit=10"},
		{"Event List - Published", "/events?page=1&limit=10&status=published"},
		{"Event Detail", "/events/" + eventID},
		{"Seat Map", "/events/" + eventID + "/seats"},
	}

	for _, e := range endpoints {
		fmt.Printf("\n🔍 Testing: %s\n", e.name)
		first := s.timeEndpoint(e.path, "MISS")
		time.Sleep(100 * time.Millisecond)
		second := s.timeEndpoint(e.path, "HIT")
		s.Cache = append(s.Cache, first, second)

		if first.Success && second.Success && first.ResponseTime > 0 {
			improvement := float64(first.ResponseTime-second.ResponseTime) / float64(first.ResponseTime) * 100
			fmt.Printf("   📈 Performance improvement: %.1f%% (%v -> %v)\n",
				improvement, first.ResponseTime, second.ResponseTime)
		}
	}
}

func (s *SmokeSuite) timeEndpoint(path, expected string) CacheTestResult {
	status, env, elapsed, err := s.do(http.MethodGet, path, "", nil)
	result := CacheTestResult{Endpoint: path, CacheStatus: expected, ResponseTime: elapsed}
	if err != nil {
		result.CacheStatus = "ERROR"
		result.Error = err.Error()
		fmt.Printf("   ❌ %v\n", err)
		return result
	}

	result.Success = status == http.StatusOK
	result.DataSize = len(env.Data)
	if !result.Success {
		result.Error = fmt.Sprintf("HTTP %d", status)
	}
	// Cache hits should be significantly faster
	if expected == "HIT" && elapsed >= 50*time.Millisecond {
		result.CacheStatus = "MISS"
	}

	icon := "✅"
	if !result.Success {
		icon = "❌"
	}
	fmt.Printf("   %s [%s] %v (%d bytes)\n", icon, result.CacheStatus, elapsed, result.DataSize)
	return result
}

func (s *SmokeSuite) registerClients(n int, password string) ([]string, error) {
	fmt.Printf("\n👤 Registering %d throwaway clients...\n", n)
	tokens := make([]string, 0, n)
	for i := 0; i < n; i++ {
		status, env, _, err := s.do(http.MethodPost, "/auth/register", "", map[string]string{
			"first_name": "Smoke",
			"last_name":  fmt.Sprintf("Client%02d", i),
			"email":      fmt.Sprintf("smoke-%s@eventix.dev", uuid.NewString()[:8]),
			"password":   password,
		})
		if err != nil {
			return nil, err
		}
		if status != http.StatusCreated {
			return nil, fmt.Errorf("register: HTTP %d %s", status, env.Message)
		}
		var auth struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(env.Data, &auth); err != nil {
			return nil, err
		}
		tokens = append(tokens, auth.AccessToken)
	}
	return tokens, nil
}

func (s *SmokeSuite) availableSeats(eventID string, n int) ([]string, error) {
	status, env, _, err := s.do(http.MethodGet, "/events/"+eventID+"/seats", "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("seat map: HTTP %d", status)
	}
	var seatMap struct {
		Seats []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"seats"`
	}
	if err := json.Unmarshal(env.Data, &seatMap); err != nil {
		return nil, err
	}

	var ids []string
	for _, seat := range seatMap.Seats {
		if seat.Status == "available" {
			ids = append(ids, seat.ID)
			if len(ids) == n {
				break
			}
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("event %s has no available seats", eventID)
	}
	return ids, nil
}

// raceForSeat fires one lock request per client at the same instant.
// Exactly one must succeed; the rest must see a conflict.
func (s *SmokeSuite) raceForSeat(eventID, seatID string, tokens []string) LockRaceResult {
	fmt.Printf("\n🏁 Racing %d clients for seat %s\n", len(tokens), seatID)

	result := LockRaceResult{SeatID: seatID, Clients: len(tokens), Other: map[int]int{}}
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	path := "/events/" + eventID + "/seats/lock"
	body := map[string][]string{"seat_ids": {seatID}}

	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			<-start
			status, _, _, err := s.do(http.MethodPost, path, token, body)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Other[0]++
			case status == http.StatusOK:
				result.Winners++
			case status == http.StatusConflict:
				result.Conflicts++
			default:
				result.Other[status]++
			}
		}(token)
	}

	began := time.Now()
	close(start)
	wg.Wait()
	result.Elapsed = time.Since(began)

	icon := "✅"
	if result.Winners != 1 {
		icon = "❌"
	}
	fmt.Printf("   %s winners=%d conflicts=%d other=%v in %v\n",
		icon, result.Winners, result.Conflicts, result.Other, result.Elapsed)
	return result
}

// generateReport prints the summary and reports whether every race had
// exactly one winner.
func (s *SmokeSuite) generateReport(path string) bool {
	fmt.Println("\n📊 SMOKE REPORT")
	fmt.Println("==========================")

	hits, misses := 0, 0
	var hitTime, missTime time.Duration
	for _, r := range s.Cache {
		switch r.CacheStatus {
		case "HIT":
			hits++
			hitTime += r.ResponseTime
		case "MISS":
			misses++
			missTime += r.ResponseTime
		}
	}
	fmt.Printf("Cache Hits: %d\n", hits)
	fmt.Printf("Cache Misses: %d\n", misses)
	if hits > 0 && misses > 0 {
		avgHit := hitTime / time.Duration(hits)
		avgMiss := missTime / time.Duration(misses)
		fmt.Printf("Average Hit/Miss: %v / %v\n", avgHit, avgMiss)
	}

	ok := true
	for _, r := range s.Races {
		if r.Winners != 1 {
			ok = false
		}
	}
	fmt.Printf("Seat races: %d, all single-winner: %t\n", len(s.Races), ok)

	if path != "" {
		data, err := json.MarshalIndent(s, "", "  ")
		if err == nil {
			err = os.WriteFile(path, data, 0o644)
		}
		if err != nil {
			fmt.Printf("⚠️  Could not write report: %v\n", err)
		} else {
			fmt.Printf("\n💾 Detailed results saved to %s\n", path)
		}
	}
	return ok
}
