// README: Simulated device gateway for local development.
//
// Serves the /fix endpoint the agent's position source expects, walking
// a jittered path around a starting coordinate. Higher requested
// accuracy tightens the jitter and lengthens the simulated fix delay.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

type fixResponse struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	TsMs      int64   `json:"ts_ms"`
	AccuracyM float64 `json:"accuracy_m"`
}

type simulator struct {
	mu  sync.Mutex
	lat float64
	lng float64
}

// step drifts the simulated position, roughly city-driving speed.
func (s *simulator) step() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lat += (rand.Float64() - 0.5) * 0.0010
	s.lng += (rand.Float64() - 0.5) * 0.0010
	return s.lat, s.lng
}

func accuracyParams(accuracy string) (jitter float64, delay time.Duration, meters float64) {
	switch accuracy {
	case "high":
		return 0.00005, 800 * time.Millisecond, 8
	case "balanced":
		return 0.0002, 300 * time.Millisecond, 30
	default:
		return 0.001, 50 * time.Millisecond, 150
	}
}

func main() {
	addr := flag.String("addr", ":8091", "listen address")
	lat := flag.Float64("lat", 25.0330, "starting latitude")
	lng := flag.Float64("lng", 121.5654, "starting longitude")
	failRate := flag.Float64("fail-rate", 0, "fraction of requests answered 503")
	denyAll := flag.Bool("deny", false, "answer every request 403 (permission revoked)")
	flag.Parse()

	sim := &simulator{lat: *lat, lng: *lng}

	http.HandleFunc("/fix", func(w http.ResponseWriter, r *http.Request) {
		if *denyAll {
			http.Error(w, "location permission revoked", http.StatusForbidden)
			return
		}
		if rand.Float64() < *failRate {
			http.Error(w, "no fix available", http.StatusServiceUnavailable)
			return
		}

		jitter, delay, meters := accuracyParams(r.URL.Query().Get("accuracy"))
		time.Sleep(delay)

		la, ln := sim.step()
		resp := fixResponse{
			Lat:       la + (rand.Float64()-0.5)*jitter,
			Lng:       ln + (rand.Float64()-0.5)*jitter,
			TsMs:      time.Now().UnixMilli(),
			AccuracyM: meters,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	log.Printf("device simulator listening on %s (start %f,%f)", *addr, *lat, *lng)
	log.Fatal(http.ListenAndServe(*addr, nil))
}
